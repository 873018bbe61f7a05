package database

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"net"
	"strings"
	"time"

	"go-availability/core/errors"
	"go-availability/core/logger"

	"github.com/lib/pq"
)

// IsUnavailable reports whether err is a transport or connectivity failure
// rather than a query or constraint error.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, driver.ErrBadConn) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		class := string(pqErr.Code.Class())
		// 08: connection exception, 57: operator intervention (admin shutdown, crash), 53: insufficient resources
		return class == "08" || class == "57" || class == "53"
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "bad connection")
}

// IsUniqueViolation reports a unique constraint failure (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// IsForeignKeyViolation reports a foreign key failure (23503), e.g. a write
// referencing a calendar deleted concurrently.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// RetryRead runs an idempotent read, retrying up to retries more times with
// linear backoff while the failure is a connectivity one. Writes must not go
// through here.
func RetryRead(ctx context.Context, retries int, delay time.Duration, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(time.Duration(attempt) * delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
		err = fn(ctx)
		if err == nil || !IsUnavailable(err) {
			return err
		}
		logger.Warn("Database:RetryRead", "attempt", attempt+1, "error", err)
	}
	return err
}

// StoreError converts a repository error into an AppError, separating
// connectivity failures (retryable) from everything else.
func StoreError(err error, code errors.ErrorCode, message string) *errors.AppError {
	if IsUnavailable(err) {
		return errors.NewAppError(errors.ErrStoreUnavailable, "storage is temporarily unavailable, please retry", err)
	}
	return errors.NewAppError(code, message, err)
}
