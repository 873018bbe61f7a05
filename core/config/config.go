package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Calendar  CalendarConfig  `mapstructure:"calendar"`
	LiveSync  LiveSyncConfig  `mapstructure:"livesync"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Queue     QueueConfig     `mapstructure:"queue"`
	S3        S3Config        `mapstructure:"s3"`
	Store     StoreConfig     `mapstructure:"store"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	BaseURL         string        `mapstructure:"base_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
	ConnectTimeout  int    `mapstructure:"connect_timeout"`   // seconds
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CalendarConfig holds defaults applied when an organizer omits a field.
type CalendarConfig struct {
	DefaultTimeSlots     []string `mapstructure:"default_time_slots"`
	DefaultMaxSelections int      `mapstructure:"default_max_selections"`
	TopN                 int      `mapstructure:"top_n"`
	SlotMinutes          int      `mapstructure:"slot_minutes"`
}

type LiveSyncConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

type RateLimitConfig struct {
	SubmitLimit  int           `mapstructure:"submit_limit"`
	SubmitWindow time.Duration `mapstructure:"submit_window"`
}

type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type StoreConfig struct {
	ReadRetries int           `mapstructure:"read_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

var (
	mu       sync.RWMutex
	instance *Config
)

// DefaultTimeSlots is the half-hourly menu from 09:00 to 17:30.
func DefaultTimeSlots() []string {
	slots := make([]string, 0, 18)
	for h := 9; h < 18; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return slots
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 7070)
	v.SetDefault("server.base_url", "http://localhost:7070")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "availability")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.connect_timeout", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("calendar.default_time_slots", DefaultTimeSlots())
	v.SetDefault("calendar.default_max_selections", 5)
	v.SetDefault("calendar.top_n", 5)
	v.SetDefault("calendar.slot_minutes", 30)

	v.SetDefault("livesync.debounce", "250ms")

	v.SetDefault("rate_limit.submit_limit", 20)
	v.SetDefault("rate_limit.submit_window", "1m")

	v.SetDefault("queue.concurrency", 5)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.presign_ttl", "15m")

	v.SetDefault("store.read_retries", 2)
	v.SetDefault("store.retry_delay", "200ms")
}

// Load reads configuration with priority env > file > defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("AVAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Calendar.DefaultMaxSelections < 1 {
		return fmt.Errorf("calendar.default_max_selections must be >= 1")
	}
	if c.Calendar.TopN < 1 {
		return fmt.Errorf("calendar.top_n must be >= 1")
	}
	if c.Calendar.SlotMinutes < 1 {
		return fmt.Errorf("calendar.slot_minutes must be >= 1")
	}
	if c.Store.ReadRetries < 0 {
		return fmt.Errorf("store.read_retries must be >= 0")
	}
	return nil
}

// Init loads the configuration and installs it as the process-wide instance.
func Init(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	Set(cfg)
	return cfg, nil
}

func Set(cfg *Config) {
	mu.Lock()
	instance = cfg
	mu.Unlock()
}

// Get panics when called before Init.
func Get() *Config {
	cfg, ok := GetSafe()
	if !ok {
		panic("config: Get called before Init")
	}
	return cfg
}

func GetSafe() (*Config, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return instance, instance != nil
}
