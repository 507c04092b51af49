package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Detail returns a detail value or an empty string.
func (e *Error) Detail(key string) string {
	if e == nil || e.Details == nil {
		return ""
	}
	return e.Details[key]
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrInvalidTransition  = New("INVALID_TRANSITION", http.StatusConflict, "this action is no longer available")
	ErrPlotNotFound       = New("PLOT_NOT_FOUND", http.StatusNotFound, "plot not registered")
	ErrNotificationFailed = New("NOTIFICATION_FAILED", http.StatusAccepted, "action completed but notification failed")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Validation reports a bad or missing input field.
func Validation(field, reason string) *Error {
	clone := Clone(ErrValidation, fmt.Sprintf("%s: %s", field, reason))
	clone.Details = map[string]string{"field": field, "reason": reason}
	return clone
}

// InvalidTransition reports a state machine violation.
func InvalidTransition(from, to string) *Error {
	clone := Clone(ErrInvalidTransition, "")
	clone.Details = map[string]string{"from": from, "attempted_to": to}
	return clone
}

// PlotNotFound reports a plot that is absent from the registry.
func PlotNotFound(plotID string) *Error {
	clone := Clone(ErrPlotNotFound, "")
	clone.Details = map[string]string{"plot_id": plotID}
	return clone
}

// NotificationFailed wraps a notifier failure. It is never returned as an operation error.
func NotificationFailed(err error) *Error {
	return Wrap(err, ErrNotificationFailed.Code, ErrNotificationFailed.Status, ErrNotificationFailed.Message)
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	if err.Details != nil {
		clone.Details = make(map[string]string, len(err.Details))
		for k, v := range err.Details {
			clone.Details[k] = v
		}
	}
	return &clone
}
