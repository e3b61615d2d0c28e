package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/contextkeys"
	"github.com/tollgate-io/tollgate/pkg/observability"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware emits one structured log line per request
type LoggingMiddleware struct {
	log logrus.FieldLogger
}

// NewLoggingMiddleware creates a request logging middleware
func NewLoggingMiddleware(log logrus.FieldLogger) *LoggingMiddleware {
	return &LoggingMiddleware{log: log}
}

// Handler logs method, path, status and latency after each request.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		observability.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(recorder.status)).Inc()

		fields := logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start).String(),
		}
		if requestID := contextkeys.RequestID(r.Context()); requestID != "" {
			fields["request_id"] = requestID
		}

		entry := m.log.WithFields(fields)
		if recorder.status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	})
}
