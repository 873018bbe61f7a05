package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-availability/core/cache"
	"go-availability/core/constants"
	"go-availability/core/controller"
	"go-availability/core/errors"
	"go-availability/core/logger"
	"go-availability/core/utils"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	cache cache.Cache
}

func NewMiddleware(c cache.Cache) *Middleware {
	return &Middleware{cache: c}
}

// Identity is the caller as seen by the API. ID is the upsert key for responses.
type Identity struct {
	ID            string
	Name          string
	Email         string
	Authenticated bool
}

// AuthMiddleware requires a valid bearer token.
func (m *Middleware) AuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return controller.NewErrorResponse(http.StatusUnauthorized, errors.ErrMissingAuthorizationHeader, "missing authorization header")
			}
			token, ok := utils.BearerToken(header)
			if !ok {
				return controller.NewErrorResponse(http.StatusUnauthorized, errors.ErrInvalidTokenFormat, "invalid authorization header")
			}

			claims, appErr := utils.ValidateAndParseToken(token)
			if appErr != nil {
				return controller.NewErrorResponse(http.StatusUnauthorized, appErr.Code, appErr.Message)
			}

			c.Set(constants.ContextTokenData, claims)
			c.Set(constants.ContextParticipant, &Identity{
				ID:            claims.ParticipantID(),
				Name:          claims.Name,
				Email:         claims.Email,
				Authenticated: true,
			})
			return next(c)
		}
	}
}

// ParticipantMiddleware accepts either a bearer token or an anonymous
// X-Participant-ID header. A present but invalid token is rejected rather than
// silently downgraded to the header.
func (m *Middleware) ParticipantMiddleware() echo.MiddlewareFunc {
	auth := m.AuthMiddleware()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := auth(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
				return withToken(c)
			}

			id := strings.TrimSpace(c.Request().Header.Get(constants.HeaderParticipantID))
			if id == "" {
				return controller.NewErrorResponse(http.StatusUnauthorized, errors.ErrUnauthorized, "participant identity required")
			}
			if len(id) > 255 {
				return controller.NewErrorResponse(http.StatusBadRequest, errors.ErrInvalidInput, "participant id too long")
			}
			c.Set(constants.ContextParticipant, &Identity{ID: id})
			return next(c)
		}
	}
}

// IdentityFromContext returns the identity installed by AuthMiddleware or
// ParticipantMiddleware.
func IdentityFromContext(c echo.Context) (*Identity, bool) {
	id, ok := c.Get(constants.ContextParticipant).(*Identity)
	return id, ok && id != nil
}

// RateLimit limits requests per client IP and route. Redis failures let the
// request through.
func (m *Middleware) RateLimit(limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.cache == nil || limit <= 0 {
				return next(c)
			}

			key := fmt.Sprintf(constants.RedisKeyRateLimit, c.RealIP(), c.Path())
			allowed, err := m.cache.CheckRateLimit(c.Request().Context(), key, limit, window)
			if err != nil {
				logger.Warn("Middleware:RateLimit:CacheError", "error", err)
				return next(c)
			}
			if !allowed {
				c.Response().Header().Set(constants.HeaderRetryAfter, fmt.Sprintf("%d", int(window.Seconds())))
				return controller.NewErrorResponse(http.StatusTooManyRequests, errors.ErrTooManyRequests, "too many requests, please retry later")
			}
			return next(c)
		}
	}
}

// RequestLogger logs one line per request.
func (m *Middleware) RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			logger.Info("HTTP",
				"method", req.Method,
				"path", c.Path(),
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
			return nil
		}
	}
}
