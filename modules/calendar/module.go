package calendar

import (
	"go-availability/core/config"
	"go-availability/core/database"
	"go-availability/core/middleware"
	"go-availability/modules/calendar/controller"
	"go-availability/modules/calendar/repository"
	"go-availability/modules/calendar/router"
	"go-availability/modules/calendar/service"
	"go-availability/modules/response/livesync"
	respRepository "go-availability/modules/response/repository"

	"github.com/labstack/echo/v4"
)

// Init initializes the calendar module and registers routes
func Init(e *echo.Echo, db database.IDatabase, notifier livesync.Notifier, mw *middleware.Middleware) {
	cfg := config.Get()

	repo := repository.NewCalendarRepository(db)
	responseRepo := respRepository.NewResponseRepository(db)
	svc := service.NewCalendarService(repo, responseRepo, notifier, cfg.Calendar, cfg.Server.BaseURL)
	ctrl := controller.NewCalendarController(svc)
	rtr := router.NewCalendarRouter(ctrl)

	rtr.Setup(e, mw)
}
