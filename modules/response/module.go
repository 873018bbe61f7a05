package response

import (
	"go-availability/core/config"
	"go-availability/core/database"
	"go-availability/core/middleware"
	calRepository "go-availability/modules/calendar/repository"
	"go-availability/modules/response/controller"
	"go-availability/modules/response/livesync"
	"go-availability/modules/response/repository"
	"go-availability/modules/response/router"
	"go-availability/modules/response/service"

	"github.com/labstack/echo/v4"
)

// NewService wires the response service from configuration. The export
// worker builds one the same way without any HTTP routes.
func NewService(db database.IDatabase, notifier livesync.Notifier) *service.ResponseService {
	cfg := config.Get()
	return service.NewResponseService(
		repository.NewResponseRepository(db),
		calRepository.NewCalendarRepository(db),
		notifier,
		service.Options{
			TopN:        cfg.Calendar.TopN,
			ReadRetries: cfg.Store.ReadRetries,
			RetryDelay:  cfg.Store.RetryDelay,
			Debounce:    cfg.LiveSync.Debounce,
		},
	)
}

// Init initializes the response module and registers routes
func Init(e *echo.Echo, db database.IDatabase, notifier livesync.Notifier, mw *middleware.Middleware) *service.ResponseService {
	cfg := config.Get()

	svc := NewService(db, notifier)
	ctrl := controller.NewResponseController(svc)
	rtr := router.NewResponseRouter(ctrl, mw.RateLimit(cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow))

	rtr.Setup(e, mw)
	return svc
}
