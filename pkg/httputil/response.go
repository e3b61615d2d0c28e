// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/apperror"
)

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Namespace string `json:"namespace,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteAppError maps a domain error to its HTTP response. Unknown errors
// and explicit 500s are logged and answered with a generic body so
// internal details never leak.
func WriteAppError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	appErr := apperror.As(err)
	if appErr == nil || appErr.Status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		WriteErrorMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	WriteJSON(w, appErr.Status, ErrorResponse{
		Error:     appErr.Message,
		Namespace: appErr.Namespace,
	})
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
