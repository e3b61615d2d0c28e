// Package apperror defines the domain error type shared by every tollgate
// component. Errors carry an HTTP-shaped status kind and, when a target
// resource has been resolved, the offending table name as a namespace for
// observability.
package apperror

import (
	"errors"
	"net/http"
)

// Error is the domain error for validation, permission, lookup and
// constraint failures. Namespace is empty when the failure happened before
// a target resource was identified (e.g. query deserialization).
type Error struct {
	Status    int
	Message   string
	Namespace string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error with an explicit status.
func New(status int, message, namespace string) *Error {
	return &Error{Status: status, Message: message, Namespace: namespace}
}

// BadRequest creates a 400 error.
func BadRequest(message, namespace string) *Error {
	return New(http.StatusBadRequest, message, namespace)
}

// Unauthorized creates a 401 error.
func Unauthorized(message, namespace string) *Error {
	return New(http.StatusUnauthorized, message, namespace)
}

// Forbidden creates a 403 error.
func Forbidden(message, namespace string) *Error {
	return New(http.StatusForbidden, message, namespace)
}

// NotFound creates a 404 error.
func NotFound(message, namespace string) *Error {
	return New(http.StatusNotFound, message, namespace)
}

// Internal creates a 500 error.
func Internal(message, namespace string) *Error {
	return New(http.StatusInternalServerError, message, namespace)
}

// As unwraps err into an *Error, or nil if err is not one.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// StatusOf returns the status of err, or 500 for errors that are not
// domain errors. Unknown failure modes must surface as server errors,
// never be reclassified.
func StatusOf(err error) int {
	if appErr := As(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
