package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-availability/core/cache"
	"go-availability/core/config"
	"go-availability/core/constants"
	"go-availability/core/utils"

	"github.com/labstack/echo/v4"
)

type fakeCache struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeCache) Publish(ctx context.Context, channel, message string) error { return nil }

func (f *fakeCache) Subscribe(ctx context.Context, channel string) (*cache.Subscription, error) {
	return nil, nil
}

func (f *fakeCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.err
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }
func (f *fakeCache) Close() error                   { return nil }

func withSecret(t *testing.T) {
	t.Helper()
	prev, had := config.GetSafe()
	config.Set(&config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", Issuer: "availability-test"}})
	t.Cleanup(func() {
		if had {
			config.Set(prev)
		} else {
			config.Set(nil)
		}
	})
}

// serve runs a single request through mw and reports the identity the
// handler saw, if any.
func serve(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	e := echo.New()
	var seen *Identity
	e.GET("/", func(c echo.Context) error {
		seen, _ = IdentityFromContext(c)
		return c.NoContent(http.StatusNoContent)
	}, mw)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestParticipantMiddleware_Header(t *testing.T) {
	m := NewMiddleware(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderParticipantID, " device-42 ")

	rec, id := serve(t, m.ParticipantMiddleware(), req)
	if rec.Code != http.StatusNoContent || id == nil || id.ID != "device-42" || id.Authenticated {
		t.Fatalf("status = %d identity = %+v", rec.Code, id)
	}
}

func TestParticipantMiddleware_MissingIdentity(t *testing.T) {
	rec, id := serve(t, NewMiddleware(nil).ParticipantMiddleware(), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized || id != nil {
		t.Fatalf("status = %d identity = %+v", rec.Code, id)
	}
}

func TestParticipantMiddleware_Token(t *testing.T) {
	withSecret(t)
	token, appErr := utils.GenerateToken("user-7", "Grace", "grace@example.com", time.Hour)
	if appErr != nil {
		t.Fatalf("GenerateToken: %v", appErr)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(constants.HeaderParticipantID, "ignored")

	rec, id := serve(t, NewMiddleware(nil).ParticipantMiddleware(), req)
	if rec.Code != http.StatusNoContent || id == nil {
		t.Fatalf("status = %d", rec.Code)
	}
	if id.ID != "user-7" || id.Name != "Grace" || id.Email != "grace@example.com" || !id.Authenticated {
		t.Errorf("identity = %+v", id)
	}
}

func TestParticipantMiddleware_BadTokenIsNotDowngraded(t *testing.T) {
	withSecret(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-jwt")
	req.Header.Set(constants.HeaderParticipantID, "device-42")

	rec, id := serve(t, NewMiddleware(nil).ParticipantMiddleware(), req)
	if rec.Code != http.StatusUnauthorized || id != nil {
		t.Fatalf("status = %d identity = %+v", rec.Code, id)
	}
}

func TestAuthMiddleware_RequiresToken(t *testing.T) {
	withSecret(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderParticipantID, "device-42")

	rec, _ := serve(t, NewMiddleware(nil).AuthMiddleware(), req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	fc := &fakeCache{allowed: false}
	m := NewMiddleware(fc)

	rec, _ := serve(t, m.RateLimit(5, time.Minute), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(constants.HeaderRetryAfter) != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get(constants.HeaderRetryAfter))
	}

	fc.allowed = true
	if rec, _ := serve(t, m.RateLimit(5, time.Minute), httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusNoContent {
		t.Fatalf("allowed request status = %d", rec.Code)
	}
	if len(fc.keys) != 2 {
		t.Errorf("rate limit checks = %d", len(fc.keys))
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	fc := &fakeCache{err: context.DeadlineExceeded}
	rec, _ := serve(t, NewMiddleware(fc).RateLimit(1, time.Minute), httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}
