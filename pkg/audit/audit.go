// Package audit records who changed what through the resource API. Every
// mutating request produces one event row; reads are not recorded.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is one recorded mutation attempt.
type Event struct {
	ID          int64
	PrincipalID int64
	Action      string
	Entity      string
	Path        string
	Status      EventStatus
	StatusCode  int
	CreatedAt   time.Time
}

// Store persists audit events in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a new audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			principal_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			status_code INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit_events table: %w", err)
	}
	return nil
}

// Record writes one event. Failures are returned to the caller for
// logging but must never fail the request that triggered them.
func (s *Store) Record(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (principal_id, action, entity, path, status, status_code)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		event.PrincipalID,
		event.Action,
		event.Entity,
		event.Path,
		event.Status,
		event.StatusCode,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Recent returns the newest events for an entity, newest first.
func (s *Store) Recent(ctx context.Context, entity string, limit int) ([]Event, error) {
	query := `
		SELECT id, principal_id, action, entity, path, status, status_code, created_at
		FROM audit_events
		WHERE entity = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, entity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.Action, &e.Entity, &e.Path, &e.Status, &e.StatusCode, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
