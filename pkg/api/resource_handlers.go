package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/contextkeys"
	"github.com/tollgate-io/tollgate/pkg/httputil"
	"github.com/tollgate-io/tollgate/pkg/rbac"
	"github.com/tollgate-io/tollgate/pkg/resource"
	"github.com/tollgate-io/tollgate/pkg/resourcequery"
)

// ResourceHandlers exposes one entity's CRUD surface. A new instance is
// mounted per registered entity; all of them share the same code path.
type ResourceHandlers struct {
	service *resource.Service
	gate    *rbac.Gate
	log     logrus.FieldLogger
}

// NewResourceHandlers creates handlers for one entity
func NewResourceHandlers(service *resource.Service, gate *rbac.Gate, log logrus.FieldLogger) *ResourceHandlers {
	return &ResourceHandlers{
		service: service,
		gate:    gate,
		log:     log.WithField("resource", service.Metadata().TableName),
	}
}

// RegisterRoutes mounts the entity's routes on the versioned API router.
// The resource query middleware runs before the gate so read
// authorization sees the requested relation traversal.
func (h *ResourceHandlers) RegisterRoutes(router *mux.Router, entity string) {
	sub := router.PathPrefix("/" + entity).Subrouter()
	sub.Use(h.queryMiddleware)
	sub.Use(h.gate.Middleware(h.service.Metadata()))

	sub.HandleFunc("", h.getMany).Methods("GET")
	sub.HandleFunc("", h.create).Methods("POST")
	sub.HandleFunc("", h.updateMany).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", h.getOne).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", h.update).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", h.patch).Methods("PATCH")
	sub.HandleFunc("/{id:[0-9]+}", h.delete).Methods("DELETE")
}

// queryMiddleware parses the q parameter and mounts the result on the
// request context. A request without q gets an empty query.
func (h *ResourceHandlers) queryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := &resourcequery.Query{}

		if raw := r.URL.Query().Get("q"); raw != "" {
			parsed, err := resourcequery.Parse(raw, h.service.Metadata())
			if err != nil {
				httputil.WriteAppError(w, h.log, err)
				return
			}
			q = parsed
		}

		ctx := contextkeys.WithQuery(r.Context(), q)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *ResourceHandlers) getMany(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.GetMany(r.Context(), contextkeys.Query(r.Context()))
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *ResourceHandlers) getOne(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	row, err := h.service.GetByID(r.Context(), id, contextkeys.Query(r.Context()))
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteSuccess(w, row)
}

// create accepts a single object or an array and mirrors the input shape
// in the response.
func (h *ResourceHandlers) create(w http.ResponseWriter, r *http.Request) {
	var payload interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteAppError(w, h.log, apperror.BadRequest("cannot deserialize request body", h.namespace()))
		return
	}

	switch body := payload.(type) {
	case map[string]interface{}:
		row, err := h.service.CreateOne(r.Context(), resource.Row(body))
		if err != nil {
			httputil.WriteAppError(w, h.log, err)
			return
		}
		httputil.WriteCreated(w, row)
	case []interface{}:
		rows, err := asRows(body, h.namespace())
		if err != nil {
			httputil.WriteAppError(w, h.log, err)
			return
		}
		created, err := h.service.Create(r.Context(), rows)
		if err != nil {
			httputil.WriteAppError(w, h.log, err)
			return
		}
		httputil.WriteCreated(w, created)
	default:
		httputil.WriteAppError(w, h.log, apperror.BadRequest("request body must be an object or an array", h.namespace()))
	}
}

func (h *ResourceHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	row, err := h.decodeRow(r)
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	updated, err := h.service.Update(r.Context(), id, row)
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (h *ResourceHandlers) patch(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	row, err := h.decodeRow(r)
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	patched, err := h.service.Patch(r.Context(), id, row)
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteSuccess(w, patched)
}

func (h *ResourceHandlers) updateMany(w http.ResponseWriter, r *http.Request) {
	var payload []interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteAppError(w, h.log, apperror.BadRequest("request body must be an array", h.namespace()))
		return
	}

	rows, err := asRows(payload, h.namespace())
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	updated, err := h.service.UpdateMany(r.Context(), rows)
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

func (h *ResourceHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ResourceHandlers) decodeRow(r *http.Request) (resource.Row, error) {
	var row resource.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		return nil, apperror.BadRequest("cannot deserialize request body", h.namespace())
	}
	return row, nil
}

func (h *ResourceHandlers) namespace() string {
	return h.service.Metadata().TableName
}

func asRows(payload []interface{}, namespace string) ([]resource.Row, error) {
	rows := make([]resource.Row, 0, len(payload))
	for _, item := range payload {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, apperror.BadRequest("array elements must be objects", namespace)
		}
		rows = append(rows, resource.Row(obj))
	}
	return rows, nil
}
