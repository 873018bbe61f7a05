package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go-availability/core/cache"
	"go-availability/core/config"
	"go-availability/core/constants"
	"go-availability/core/database"
	"go-availability/core/logger"
	"go-availability/core/middleware"
	"go-availability/core/queue"
	"go-availability/core/storage"
	"go-availability/core/utils"
	"go-availability/modules/calendar"
	"go-availability/modules/export"
	"go-availability/modules/response"
	"go-availability/modules/response/livesync"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// bootstrap loads configuration and installs the global logger.
func bootstrap(configPath string) (*config.Config, error) {
	cfg, err := config.Init(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// Run starts the HTTP API and blocks until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, configPath string, migrate bool) error {
	cfg, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if migrate {
		if err := database.RunMigrations(db.SQLx().DB); err != nil {
			return err
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	notifier := livesync.NewRedisNotifier(redisCache)
	mw := middleware.NewMiddleware(redisCache)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = constants.DefaultRequestTimeout
	cancelOnShutdown(e.Server)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, constants.HeaderParticipantID},
		ExposeHeaders: []string{constants.HeaderRetryAfter},
	}))
	e.Use(mw.RequestLogger())

	e.GET("/health", healthHandler(db, redisCache))

	// Export routes are only useful when both the queue and the bucket are
	// configured; the ICS feed works without them.
	var enqueuer queue.Enqueuer
	var objectStore storage.ObjectStore
	if cfg.S3.Bucket != "" {
		store, err := storage.NewS3Store(cfg.S3)
		if err != nil {
			return err
		}
		queueClient := queue.NewClient(cfg.Redis)
		defer queueClient.Close()
		enqueuer, objectStore = queueClient, store
	} else {
		logger.Warn("Server:Run:ExportsDisabled", "reason", "s3.bucket is empty")
	}

	calendar.Init(e, db, notifier, mw)
	responseSvc := response.Init(e, db, notifier, mw)
	export.Init(e, responseSvc, enqueuer, objectStore, mw)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Server:Run:ShuttingDown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server:Run:Shutdown", err)
		return err
	}
	return nil
}

// cancelOnShutdown derives every request context from one base context that
// is cancelled as soon as Shutdown starts, so long-lived handlers such as the
// results stream return instead of holding shutdown until its deadline.
func cancelOnShutdown(srv *http.Server) {
	base, cancel := context.WithCancel(context.Background())
	srv.BaseContext = func(net.Listener) context.Context { return base }
	srv.RegisterOnShutdown(cancel)
}

func healthHandler(db *database.Database, c cache.Cache) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := db.SQLx().PingContext(reqCtx); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := c.Ping(reqCtx); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		return ctx.JSON(code, status)
	}
}

// RunWorker processes background export tasks until ctx is cancelled.
func RunWorker(ctx context.Context, configPath string) error {
	cfg, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := storage.NewS3Store(cfg.S3)
	if err != nil {
		return err
	}

	// the worker only reads; it never publishes changes
	responseSvc := response.NewService(db, nil)
	exportSvc := export.NewService(responseSvc, nil, store)

	srv, mux := queue.NewServer(cfg.Redis, cfg.Queue)
	mux.HandleFunc(constants.TaskExportResults, exportSvc.HandleExportResults)

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("Server:RunWorker:Started", "concurrency", cfg.Queue.Concurrency)

	<-ctx.Done()
	logger.Info("Server:RunWorker:ShuttingDown")
	srv.Shutdown()
	return nil
}

// Migrate applies pending migrations, or rolls back the last n when n > 0.
func Migrate(configPath string, rollback int) error {
	cfg, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if rollback > 0 {
		return database.RollbackMigrations(db.SQLx().DB, rollback)
	}
	return database.RunMigrations(db.SQLx().DB)
}

// MintToken signs a bearer token with the configured secret, for local
// development against a running API without an identity provider.
func MintToken(configPath, subject, name, email string, ttl time.Duration) (string, error) {
	if _, err := bootstrap(configPath); err != nil {
		return "", err
	}
	defer logger.Sync()

	token, appErr := utils.GenerateToken(subject, name, email, ttl)
	if appErr != nil {
		return "", appErr
	}
	return token, nil
}
