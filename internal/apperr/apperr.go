// Package apperr defines the application error taxonomy. Errors are either
// operational (anticipated, safe to surface verbatim) or internal
// (programming or infrastructure faults that must stay hidden in production).
package apperr

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeDeliveryFailed  Code = "DELIVERY_FAILED"
	CodeInternal        Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	// Fields holds field-level validation messages, keyed by input field.
	Fields map[string]string
	// Err is the wrapped cause, kept out of client responses.
	Err error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Operational reports whether the error is safe to surface to the caller.
func (e *Error) Operational() bool { return e.Code != CodeInternal }

// HTTPStatus maps the taxonomy onto response status codes.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeDeliveryFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// ValidationFields builds a validation error carrying per-field messages.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "Invalid input data", Fields: fields}
}

func Unauthenticated(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

func DeliveryFailed(message string, err error) *Error {
	return &Error{Code: CodeDeliveryFailed, Message: message, Err: err}
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: "Something went very wrong", Err: err}
}

// From normalizes any error into an *Error; unrecognized errors become
// internal faults.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
