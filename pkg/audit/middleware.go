package audit

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/contextkeys"
)

// statusFor maps a response code to an event outcome.
func statusFor(code int) EventStatus {
	switch {
	case code == http.StatusForbidden:
		return EventStatusDenied
	case code < 400:
		return EventStatusSuccess
	default:
		return EventStatusFailure
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status int
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware records every mutating request against an entity's routes.
// Recording failures are logged and swallowed; the trail never blocks
// the write it describes.
type Middleware struct {
	store *Store
	log   logrus.FieldLogger
}

// NewMiddleware creates an audit middleware
func NewMiddleware(store *Store, log logrus.FieldLogger) *Middleware {
	return &Middleware{store: store, log: log.WithField("component", "audit")}
}

// Handler wraps an entity route tree mounted under /api/v1/<entity>.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		recorder := &recordingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		principalID, ok := contextkeys.Principal(r.Context())
		if !ok {
			return
		}

		event := Event{
			PrincipalID: principalID,
			Action:      r.Method,
			Entity:      entityFromPath(r.URL.Path),
			Path:        r.URL.Path,
			Status:      statusFor(recorder.status),
			StatusCode:  recorder.status,
		}
		if err := m.store.Record(r.Context(), event); err != nil {
			m.log.WithError(err).Warn("failed to record audit event")
		}
	})
}

// entityFromPath extracts the entity segment from /api/v1/<entity>/...
func entityFromPath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "v1" {
		return parts[2]
	}
	return ""
}
