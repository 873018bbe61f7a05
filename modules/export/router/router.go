package router

import (
	"go-availability/core/middleware"
	"go-availability/modules/export/controller"

	"github.com/labstack/echo/v4"
)

// ExportRouter handles export routes
type ExportRouter struct {
	ExportController *controller.ExportController
}

// NewExportRouter creates a new router
func NewExportRouter(exportController *controller.ExportController) *ExportRouter {
	return &ExportRouter{
		ExportController: exportController,
	}
}

// Setup registers export routes
func (r *ExportRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	v1.GET("/public/calendars/:id/results.ics", r.ExportController.ResultsICS)

	exports := v1.Group("/private/calendars/:id/exports", mw.AuthMiddleware())
	exports.POST("", r.ExportController.RequestExport)
	exports.GET("/:exportId", r.ExportController.GetExport)
}
