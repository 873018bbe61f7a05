package controller

import (
	"fmt"
	"net/http"
	"strconv"

	"go-availability/core/controller"
	"go-availability/core/errors"
	"go-availability/core/middleware"
	"go-availability/modules/export/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ExportController handles result exports
type ExportController struct {
	controller.BaseController
	ExportService service.ExportServiceInterface
}

// NewExportController creates a new controller
func NewExportController(svc service.ExportServiceInterface) *ExportController {
	return &ExportController{
		BaseController: controller.NewBaseController(),
		ExportService:  svc,
	}
}

// ResultsICS handles GET /public/calendars/:id/results.ics
func (c *ExportController) ResultsICS(ctx echo.Context) error {
	calendarID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}
	top, _ := strconv.Atoi(ctx.QueryParam("top"))

	data, filename, appErr := c.ExportService.ResultsICS(ctx.Request().Context(), calendarID, top)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// RequestExport handles POST /private/calendars/:id/exports
func (c *ExportController) RequestExport(ctx echo.Context) error {
	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	calendarID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	result, appErr := c.ExportService.RequestExport(ctx.Request().Context(), calendarID, identity.ID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return ctx.JSON(http.StatusAccepted, controller.NewSuccessResponse(http.StatusAccepted, result, "Export queued"))
}

// GetExport handles GET /private/calendars/:id/exports/:exportId
func (c *ExportController) GetExport(ctx echo.Context) error {
	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	calendarID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}
	exportID, err := uuid.Parse(ctx.Param("exportId"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid export ID")
	}

	result, appErr := c.ExportService.GetExport(ctx.Request().Context(), calendarID, exportID, identity.ID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}
