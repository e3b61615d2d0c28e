package api

import (
	"database/sql"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/audit"
	"github.com/tollgate-io/tollgate/pkg/httputil"
	"github.com/tollgate-io/tollgate/pkg/middleware"
	"github.com/tollgate-io/tollgate/pkg/observability"
	"github.com/tollgate-io/tollgate/pkg/rbac"
	"github.com/tollgate-io/tollgate/pkg/resource"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// Server mounts the CRUD surface for every registered entity behind the
// access control gate.
type Server struct {
	router   *mux.Router
	registry *schema.Registry
	log      logrus.FieldLogger

	db    *sql.DB
	redis *redis.Client
}

// ServerOptions configures optional server features.
type ServerOptions struct {
	MetricsEnabled bool
}

// NewServer wires the handler chain for every entity in the registry.
func NewServer(registry *schema.Registry, db *sql.DB, redisClient *redis.Client, log logrus.FieldLogger, opts ServerOptions) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		registry: registry,
		log:      log,
		db:       db,
		redis:    redisClient,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.NewLoggingMiddleware(log).Handler)

	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	if opts.MetricsEnabled {
		s.router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	}

	store := rbac.NewStore(db)
	cache := rbac.NewCache(redisClient)
	resolver := rbac.NewResolver(store, cache, log)
	gate := rbac.NewGate(resolver, store, log)

	principal := middleware.NewPrincipalMiddleware(log)
	resourceStore := resource.NewPostgresStore(db)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(principal.Handler)
	api.Use(audit.NewMiddleware(audit.NewStore(db), log).Handler)

	for _, entity := range registry.Entities() {
		meta, _ := registry.Metadata(entity)
		service := resource.NewService(resourceStore, meta, log)
		handlers := NewResourceHandlers(service, gate, log)
		handlers.RegisterRoutes(api, entity)
	}

	return s
}

// Router returns the configured route tree.
func (s *Server) Router() http.Handler {
	return s.router
}

// healthz verifies both backing stores are reachable.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.db.PingContext(ctx); err != nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "cache unreachable")
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
