// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

import (
	"context"

	"github.com/tollgate-io/tollgate/pkg/resourcequery"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the acting principal's id (int64).
	// Set by: middleware.Principal (pkg/middleware/principal.go)
	// Required by: the access gate and audit logging
	PrincipalKey Key = "principal_id"

	// QueryKey contains the parsed *resourcequery.Query for the request.
	// Set by: api resource handlers before the gate runs, so read
	// authorization can expand the requested relation traversal
	QueryKey Key = "resource_query"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestID
	// Used by: request logging
	RequestIDKey Key = "request_id"
)

// WithPrincipal adds the acting principal's id to the context.
func WithPrincipal(ctx context.Context, principalID int64) context.Context {
	return context.WithValue(ctx, PrincipalKey, principalID)
}

// Principal extracts the acting principal's id from the context.
func Principal(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(PrincipalKey).(int64)
	return id, ok
}

// WithQuery adds the parsed resource query to the context.
func WithQuery(ctx context.Context, q *resourcequery.Query) context.Context {
	return context.WithValue(ctx, QueryKey, q)
}

// Query extracts the parsed resource query from the context, or nil when
// the request carried no query.
func Query(ctx context.Context) *resourcequery.Query {
	q, _ := ctx.Value(QueryKey).(*resourcequery.Query)
	return q
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID extracts the request ID from the context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
