package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tollgate-io/tollgate/pkg/contextkeys"
	"github.com/tollgate-io/tollgate/pkg/observability"
)

func newTestAudit(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db), mock
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, EventStatusSuccess, statusFor(http.StatusOK))
	assert.Equal(t, EventStatusSuccess, statusFor(http.StatusCreated))
	assert.Equal(t, EventStatusDenied, statusFor(http.StatusForbidden))
	assert.Equal(t, EventStatusFailure, statusFor(http.StatusBadRequest))
	assert.Equal(t, EventStatusFailure, statusFor(http.StatusInternalServerError))
}

func TestEntityFromPath(t *testing.T) {
	assert.Equal(t, "widget", entityFromPath("/api/v1/widget"))
	assert.Equal(t, "widget", entityFromPath("/api/v1/widget/12"))
	assert.Equal(t, "", entityFromPath("/healthz"))
}

func TestStore_Record(t *testing.T) {
	store, mock := newTestAudit(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events (principal_id, action, entity, path, status, status_code) VALUES ($1, $2, $3, $4, $5, $6)`)).
		WithArgs(int64(9), "DELETE", "widget", "/api/v1/widget/1", string(EventStatusSuccess), 204).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Record(context.Background(), Event{
		PrincipalID: 9,
		Action:      "DELETE",
		Entity:      "widget",
		Path:        "/api/v1/widget/1",
		Status:      EventStatusSuccess,
		StatusCode:  204,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Recent(t *testing.T) {
	store, mock := newTestAudit(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, principal_id, action, entity, path, status, status_code, created_at FROM audit_events WHERE entity = $1 ORDER BY created_at DESC, id DESC LIMIT $2`)).
		WithArgs("widget", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "principal_id", "action", "entity", "path", "status", "status_code", "created_at"}).
			AddRow(2, 9, "PATCH", "widget", "/api/v1/widget/1", "success", 200, now).
			AddRow(1, 9, "POST", "widget", "/api/v1/widget", "success", 201, now.Add(-time.Minute)))

	events, err := store.Recent(context.Background(), "widget", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "PATCH", events[0].Action)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware_RecordsMutations(t *testing.T) {
	store, mock := newTestAudit(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events`)).
		WithArgs(int64(9), "DELETE", "widget", "/api/v1/widget/1", string(EventStatusDenied), 403).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewMiddleware(store, observability.NewTestLogger()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/widget/1", nil)
	req = req.WithContext(contextkeys.WithPrincipal(req.Context(), 9))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware_SkipsReads(t *testing.T) {
	store, mock := newTestAudit(t)

	handler := NewMiddleware(store, observability.NewTestLogger()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widget", nil)
	req = req.WithContext(contextkeys.WithPrincipal(req.Context(), 9))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddleware_RecordFailureDoesNotFailRequest(t *testing.T) {
	store, mock := newTestAudit(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_events`)).
		WillReturnError(assert.AnError)

	handler := NewMiddleware(store, observability.NewTestLogger()).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widget", nil)
	req = req.WithContext(contextkeys.WithPrincipal(req.Context(), 9))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
}
