package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init builds the process-wide logger. format is "json" or "console".
func Init(level, format string) error {
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// normalize lets callers pass a bare error after the message, e.g.
// logger.Error("Repo:Method", err).
func normalize(args []any) []any {
	if len(args)%2 == 1 {
		if err, ok := args[0].(error); ok {
			return append([]any{"error", err}, args[1:]...)
		}
		return append([]any{"detail", args[0]}, args[1:]...)
	}
	return args
}

func Debug(msg string, args ...any) {
	current().Debugw(msg, normalize(args)...)
}

func Info(msg string, args ...any) {
	current().Infow(msg, normalize(args)...)
}

func Warn(msg string, args ...any) {
	current().Warnw(msg, normalize(args)...)
}

func Error(msg string, args ...any) {
	current().Errorw(msg, normalize(args)...)
}
