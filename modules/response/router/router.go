package router

import (
	"go-availability/core/middleware"
	"go-availability/modules/response/controller"

	"github.com/labstack/echo/v4"
)

// ResponseRouter handles response and results routes
type ResponseRouter struct {
	ResponseController *controller.ResponseController
	RateLimit          echo.MiddlewareFunc
}

// NewResponseRouter creates a new router. rateLimit guards submissions and
// may be nil.
func NewResponseRouter(responseController *controller.ResponseController, rateLimit echo.MiddlewareFunc) *ResponseRouter {
	return &ResponseRouter{
		ResponseController: responseController,
		RateLimit:          rateLimit,
	}
}

// Setup registers response routes
func (r *ResponseRouter) Setup(e *echo.Echo, mw *middleware.Middleware) {
	v1 := e.Group("/api/v1")

	// Participant routes
	public := v1.Group("/public/calendars/:id")
	submit := []echo.MiddlewareFunc{mw.ParticipantMiddleware()}
	if r.RateLimit != nil {
		submit = append(submit, r.RateLimit)
	}
	public.PUT("/responses", r.ResponseController.SubmitResponse, submit...)
	public.GET("/responses/me", r.ResponseController.GetMyResponse, mw.ParticipantMiddleware())
	public.GET("/results", r.ResponseController.GetResults)
	public.GET("/results/stream", r.ResponseController.StreamResults)

	// Organizer routes
	private := v1.Group("/private/calendars/:id", mw.AuthMiddleware())
	private.GET("/responses", r.ResponseController.ListResponses)
	private.DELETE("/responses/:responseId", r.ResponseController.DeleteResponse)
}
