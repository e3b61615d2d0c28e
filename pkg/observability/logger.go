// Package observability provides structured logging and Prometheus
// metrics for the tollgate service.
package observability

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// NewLogger creates the application logger. Output is JSON unless plain
// text is requested (useful for local development).
func NewLogger(level string, plainText bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if plainText {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// NewTestLogger creates a silenced logger for tests.
func NewTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
