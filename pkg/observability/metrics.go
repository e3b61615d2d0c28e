package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PermissionChecksTotal counts access-gate decisions by outcome.
	PermissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tollgate_permission_checks_total",
			Help: "Total access gate decisions by outcome",
		},
		[]string{"outcome"},
	)

	// PermissionCacheHits counts permission cache hits.
	PermissionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tollgate_permission_cache_hits_total",
			Help: "Permission cache hits",
		},
	)

	// PermissionCacheMisses counts permission cache misses, including
	// partially populated entries treated as misses.
	PermissionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tollgate_permission_cache_misses_total",
			Help: "Permission cache misses",
		},
	)

	// HTTPRequestsTotal counts requests by method and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tollgate_http_requests_total",
			Help: "Total HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)
)

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
