package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorCode string

const (
	ErrInternalServer             ErrorCode = "INTERNAL_SERVER"
	ErrInvalidInput               ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData         ErrorCode = "INVALID_REQUEST_DATA"
	ErrUnauthorized               ErrorCode = "UNAUTHORIZED"
	ErrTokenExpired               ErrorCode = "TOKEN_EXPIRED"
	ErrInvalidTokenFormat         ErrorCode = "INVALID_TOKEN_FORMAT"
	ErrMissingAuthorizationHeader ErrorCode = "MISSING_AUTHORIZATION_HEADER"
	ErrForbidden                  ErrorCode = "FORBIDDEN"
	ErrNotFound                   ErrorCode = "NOT_FOUND"
	ErrAlreadyExists              ErrorCode = "ALREADY_EXISTS"
	ErrCreateFailed               ErrorCode = "CREATE_FAILED"
	ErrGetFailed                  ErrorCode = "GET_FAILED"
	ErrUpdateFailed               ErrorCode = "UPDATE_FAILED"
	ErrDeleteFailed               ErrorCode = "DELETE_FAILED"
	ErrTooManyRequests            ErrorCode = "TOO_MANY_REQUESTS"

	// Submission validation
	ErrCalendarDisabled       ErrorCode = "CALENDAR_DISABLED"
	ErrEmptySelection         ErrorCode = "EMPTY_SELECTION"
	ErrSelectionLimitExceeded ErrorCode = "SELECTION_LIMIT_EXCEEDED"
	ErrUnknownSlot            ErrorCode = "UNKNOWN_SLOT"
	ErrInvalidRange           ErrorCode = "INVALID_RANGE"

	// Transport or connectivity failure talking to the store. Always retryable.
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

// SelectionLimitDetails is attached to ErrSelectionLimitExceeded.
type SelectionLimitDetails struct {
	Limit     int `json:"limit"`
	Attempted int `json:"attempted"`
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether code belongs to the submission validation family.
// Validation failures are surfaced to the participant verbatim and never retried.
func IsValidation(code ErrorCode) bool {
	switch code {
	case ErrCalendarDisabled, ErrEmptySelection, ErrSelectionLimitExceeded, ErrUnknownSlot, ErrInvalidRange:
		return true
	}
	return false
}

// IsRetryable reports whether the caller may retry the operation that produced code.
func IsRetryable(code ErrorCode) bool {
	return code == ErrStoreUnavailable
}

// Is reports whether err is (or wraps) an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var ae *AppError
	if stderrors.As(err, &ae) && ae != nil {
		return ae.Code == code
	}
	return false
}

// As extracts the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if stderrors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}
