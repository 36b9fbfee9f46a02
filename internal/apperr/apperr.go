// Package apperr carries errors that cross the service boundary with an
// HTTP status attached. Handlers render them as the standard failure
// envelope; anything that is not an *Error becomes a 500.
package apperr

import (
	"errors"
	"net/http"
)

type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthenticated(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, message)
}

func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

func Unavailable(message string) *Error {
	return New(http.StatusServiceUnavailable, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, message)
}

// From extracts the *Error from err, or wraps err as a 500.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("internal error")
}
