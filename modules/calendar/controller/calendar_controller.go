package controller

import (
	"strings"

	"go-availability/core/controller"
	"go-availability/core/errors"
	"go-availability/core/middleware"
	"go-availability/core/params"
	"go-availability/modules/calendar/dto"
	"go-availability/modules/calendar/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CalendarController handles calendar HTTP requests
type CalendarController struct {
	controller.BaseController
	CalendarService service.CalendarServiceInterface
}

// NewCalendarController creates a new controller
func NewCalendarController(svc service.CalendarServiceInterface) *CalendarController {
	return &CalendarController{
		BaseController:  controller.NewBaseController(),
		CalendarService: svc,
	}
}

// getOwnerID extracts the organizer from the token installed by AuthMiddleware
func (c *CalendarController) getOwnerID(ctx echo.Context) (string, bool) {
	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok || !identity.Authenticated || identity.ID == "" {
		return "", false
	}
	return identity.ID, true
}

// CreateCalendar handles POST /private/calendars
func (c *CalendarController) CreateCalendar(ctx echo.Context) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	var req dto.CreateCalendarRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	result, appErr := c.CalendarService.CreateCalendar(ctx.Request().Context(), ownerID, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.CreatedResponse(ctx, result, "Calendar created successfully")
}

// GetMyCalendars handles GET /private/calendars
func (c *CalendarController) GetMyCalendars(ctx echo.Context) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	queryParams := params.NewQueryParams(ctx)
	result, appErr := c.CalendarService.GetMyCalendars(ctx.Request().Context(), ownerID, *queryParams)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// GetCalendar handles GET /private/calendars/:id
func (c *CalendarController) GetCalendar(ctx echo.Context) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	result, appErr := c.CalendarService.GetCalendar(ctx.Request().Context(), id, ownerID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// UpdateCalendar handles PUT /private/calendars/:id
func (c *CalendarController) UpdateCalendar(ctx echo.Context) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	var req dto.UpdateCalendarRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	result, appErr := c.CalendarService.UpdateCalendar(ctx.Request().Context(), id, ownerID, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Calendar updated successfully")
}

// DisableCalendar handles PUT /private/calendars/:id/disable
func (c *CalendarController) DisableCalendar(ctx echo.Context) error {
	return c.setDisabled(ctx, true)
}

// EnableCalendar handles PUT /private/calendars/:id/enable
func (c *CalendarController) EnableCalendar(ctx echo.Context) error {
	return c.setDisabled(ctx, false)
}

func (c *CalendarController) setDisabled(ctx echo.Context, disabled bool) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	result, appErr := c.CalendarService.SetDisabled(ctx.Request().Context(), id, ownerID, disabled)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	msg := "Calendar enabled"
	if disabled {
		msg = "Calendar disabled"
	}
	return c.SuccessResponse(ctx, result, msg)
}

// DeleteCalendar handles DELETE /private/calendars/:id
func (c *CalendarController) DeleteCalendar(ctx echo.Context) error {
	ownerID, ok := c.getOwnerID(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	if appErr := c.CalendarService.DeleteCalendar(ctx.Request().Context(), id, ownerID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Calendar deleted successfully")
}

// GetPublicCalendar handles GET /public/share/:code
func (c *CalendarController) GetPublicCalendar(ctx echo.Context) error {
	code := strings.TrimSpace(ctx.Param("code"))
	if code == "" {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid share code")
	}

	result, appErr := c.CalendarService.GetPublicCalendar(ctx.Request().Context(), code)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}
