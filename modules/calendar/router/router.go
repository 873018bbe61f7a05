package router

import (
	"go-availability/core/middleware"
	"go-availability/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

// CalendarRouter handles calendar routes
type CalendarRouter struct {
	CalendarController *controller.CalendarController
}

// NewCalendarRouter creates a new router
func NewCalendarRouter(calendarController *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{
		CalendarController: calendarController,
	}
}

// Setup registers calendar routes
func (r *CalendarRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Share link (public)
	v1.GET("/public/share/:code", r.CalendarController.GetPublicCalendar)

	// Organizer routes
	calendarRoutes := v1.Group("/private/calendars", mw.AuthMiddleware())
	calendarRoutes.POST("", r.CalendarController.CreateCalendar)
	calendarRoutes.GET("", r.CalendarController.GetMyCalendars)
	calendarRoutes.GET("/:id", r.CalendarController.GetCalendar)
	calendarRoutes.PUT("/:id", r.CalendarController.UpdateCalendar)
	calendarRoutes.PUT("/:id/disable", r.CalendarController.DisableCalendar)
	calendarRoutes.PUT("/:id/enable", r.CalendarController.EnableCalendar)
	calendarRoutes.DELETE("/:id", r.CalendarController.DeleteCalendar)
}
