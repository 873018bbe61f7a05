package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go-availability/core/config"
	"go-availability/core/logger"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) (*Subscription, error)
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

type redisCache struct {
	rdb *redis.Client
}

func NewRedisCache(cfg config.RedisConfig) (Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis connected", "addr", cfg.Addr)
	return &redisCache{rdb: rdb}, nil
}

func (c *redisCache) Publish(ctx context.Context, channel, message string) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe blocks until the subscription is confirmed by the server.
func (c *redisCache) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &Subscription{ps: ps}, nil
}

// CheckRateLimit implements a sliding window over a sorted set.
func (c *redisCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	member := strconv.FormatInt(now.UnixNano(), 10)
	windowStart := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", windowStart)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() <= int64(limit), nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *redisCache) Close() error {
	return c.rdb.Close()
}

// Subscription is a live pub/sub subscription on one channel.
type Subscription struct {
	ps *redis.PubSub
}

// Messages yields payloads until Close is called.
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.ps.Channel()
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
