package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Codes surfaced to clients in the "code" field of error bodies.
const (
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeNotFound     = "NOT_FOUND"
	CodeStoreFailure = "STORE_FAILURE"
)

// Error is the engine's single error type. Expected business outcomes
// (already credited, invalid referral code, excluded user) are never Errors.
type Error struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

func AuthRequired(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return New(http.StatusUnauthorized, CodeAuthRequired, message, nil)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "insufficient role"
	}
	return New(http.StatusForbidden, CodeForbidden, message, nil)
}

// Validation reports malformed input. fields maps a field name to its problem.
func Validation(message string, fields map[string]string) *Error {
	if message == "" {
		message = "invalid input"
	}
	e := New(http.StatusBadRequest, CodeValidation, message, nil)
	e.Fields = fields
	return e
}

// Field is shorthand for a single-field validation error.
func Field(field, problem string) *Error {
	return Validation(field+" "+problem, map[string]string{field: problem})
}

func Conflict(message string, err error) *Error {
	return New(http.StatusConflict, CodeConflict, message, err)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, CodeNotFound, message, nil)
}

// StoreFailure wraps an unexpected store error. Callers may retry; the engine does not.
func StoreFailure(err error) *Error {
	return New(http.StatusInternalServerError, CodeStoreFailure, "store failure", err)
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	if ae, ok := As(err); ok && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}
