package controller

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-availability/core/controller"
	"go-availability/core/errors"
	"go-availability/core/logger"
	"go-availability/core/middleware"
	"go-availability/modules/response/dto"
	"go-availability/modules/response/entity"
	"go-availability/modules/response/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const streamKeepAlive = 25 * time.Second

// ResponseController handles participant submissions and results
type ResponseController struct {
	controller.BaseController
	ResponseService service.ResponseServiceInterface
}

// NewResponseController creates a new controller
func NewResponseController(svc service.ResponseServiceInterface) *ResponseController {
	return &ResponseController{
		BaseController:  controller.NewBaseController(),
		ResponseService: svc,
	}
}

func parseCalendarID(ctx echo.Context) (uuid.UUID, error) {
	return uuid.Parse(ctx.Param("id"))
}

func parseTop(ctx echo.Context) int {
	top, err := strconv.Atoi(ctx.QueryParam("top"))
	if err != nil || top < 0 {
		return 0
	}
	return top
}

// SubmitResponse handles PUT /public/calendars/:id/responses
func (c *ResponseController) SubmitResponse(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "participant identity required")
	}

	var req dto.SubmitResponseRequest
	if err := ctx.Bind(&req); err != nil {
		return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
	}

	participant := entity.Participant{ID: identity.ID, Name: identity.Name, Email: identity.Email}
	result, appErr := c.ResponseService.Submit(ctx.Request().Context(), calendarID, participant, &req)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Response saved")
}

// GetMyResponse handles GET /public/calendars/:id/responses/me
func (c *ResponseController) GetMyResponse(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "participant identity required")
	}

	result, appErr := c.ResponseService.GetMyResponse(ctx.Request().Context(), calendarID, identity.ID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// GetResults handles GET /public/calendars/:id/results
func (c *ResponseController) GetResults(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	result, appErr := c.ResponseService.GetResults(ctx.Request().Context(), calendarID, parseTop(ctx))
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// StreamResults handles GET /public/calendars/:id/results/stream as
// Server-Sent Events. The client gets the current results immediately and a
// new "results" event after each burst of changes.
func (c *ResponseController) StreamResults(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	reqCtx := ctx.Request().Context()
	w := ctx.Response()

	// Held until the stream headers are out, so an early snapshot cannot
	// race ahead of them.
	var mu sync.Mutex
	mu.Lock()

	onChange := func(results *dto.ResultsResponse) {
		payload, err := json.Marshal(results)
		if err != nil {
			logger.Error("ResponseController:StreamResults:Marshal", err, "calendar_id", calendarID)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := fmt.Fprintf(w, "event: results\ndata: %s\n\n", payload); err != nil {
			logger.Warn("ResponseController:StreamResults:Write", "error", err, "calendar_id", calendarID)
			return
		}
		w.Flush()
	}

	unsubscribe, done, appErr := c.ResponseService.Subscribe(reqCtx, calendarID, parseTop(ctx), onChange)
	if appErr != nil {
		mu.Unlock()
		return c.ErrorResponse(ctx, appErr)
	}
	defer unsubscribe()

	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()
	mu.Unlock()

	logger.Info("ResponseController:StreamResults:Open", "calendar_id", calendarID)

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			logger.Info("ResponseController:StreamResults:Closed", "calendar_id", calendarID)
			return nil
		case <-done:
			logger.Warn("ResponseController:StreamResults:Ended", "calendar_id", calendarID)
			return nil
		case <-ticker.C:
			mu.Lock()
			_, err := fmt.Fprint(w, ": keep-alive\n\n")
			if err == nil {
				w.Flush()
			}
			mu.Unlock()
			if err != nil {
				return nil
			}
		}
	}
}

// ListResponses handles GET /private/calendars/:id/responses
func (c *ResponseController) ListResponses(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	result, appErr := c.ResponseService.ListResponses(ctx.Request().Context(), calendarID, identity.ID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, result, "Success")
}

// DeleteResponse handles DELETE /private/calendars/:id/responses/:responseId
func (c *ResponseController) DeleteResponse(ctx echo.Context) error {
	calendarID, err := parseCalendarID(ctx)
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid calendar ID")
	}
	responseID, err := uuid.Parse(ctx.Param("responseId"))
	if err != nil {
		return c.BadRequest(errors.ErrInvalidInput, "Invalid response ID")
	}

	identity, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "User not authenticated")
	}

	if appErr := c.ResponseService.DeleteResponse(ctx.Request().Context(), calendarID, responseID, identity.ID); appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}

	return c.SuccessResponse(ctx, nil, "Response deleted")
}
