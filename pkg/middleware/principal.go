package middleware

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/contextkeys"
	"github.com/tollgate-io/tollgate/pkg/httputil"
)

// PrincipalHeader identifies the acting principal. Authentication itself
// happens upstream (gateway or sidecar); this service trusts the header.
const PrincipalHeader = "X-Principal-ID"

// PrincipalMiddleware extracts the principal id from request headers
type PrincipalMiddleware struct {
	log logrus.FieldLogger
}

// NewPrincipalMiddleware creates a principal extraction middleware
func NewPrincipalMiddleware(log logrus.FieldLogger) *PrincipalMiddleware {
	return &PrincipalMiddleware{log: log}
}

// Handler mounts the principal id on the request context. Requests
// without a parseable principal are rejected before any handler runs.
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(PrincipalHeader)
		if header == "" {
			httputil.WriteAppError(w, m.log, apperror.Unauthorized("No authenticated principal", "auth"))
			return
		}

		principalID, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			httputil.WriteAppError(w, m.log, apperror.Unauthorized("Invalid principal id", "auth"))
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principalID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
