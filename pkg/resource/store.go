// Package resource implements the generic CRUD engine. A single Service
// executes validated operations against any registered entity; the entity
// "type" is a runtime value (schema metadata plus a storage capability),
// not a compile-time hierarchy.
package resource

import (
	"context"

	"github.com/tollgate-io/tollgate/pkg/resourcequery"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// Row is a single entity record, keyed by column name.
type Row map[string]interface{}

// Store is the storage capability consumed by the CRUD engine. Constraint
// violations surface as driver errors and are classified by the engine's
// error translator, not by the store.
type Store interface {
	// FindOne returns the row with the given id, or nil when absent.
	FindOne(ctx context.Context, meta *schema.Metadata, id int64, q *resourcequery.Query) (Row, error)

	// FindMany returns all rows matching the query. No match is an empty
	// result, not an error.
	FindMany(ctx context.Context, meta *schema.Metadata, q *resourcequery.Query) ([]Row, error)

	// Insert writes one or more rows and returns them as stored.
	Insert(ctx context.Context, meta *schema.Metadata, rows []Row) ([]Row, error)

	// Save upserts rows by primary key (insert-or-update).
	Save(ctx context.Context, meta *schema.Metadata, rows []Row) ([]Row, error)

	// UpdateByID applies the given fields to the row with the given id
	// and returns the updated row.
	UpdateByID(ctx context.Context, meta *schema.Metadata, id int64, row Row) (Row, error)

	// DeleteByID removes the row with the given id. Zero rows affected is
	// not an error.
	DeleteByID(ctx context.Context, meta *schema.Metadata, id int64) error

	// ExistsByID reports whether a row with the given id exists. A single
	// boolean round trip; it never fetches the row.
	ExistsByID(ctx context.Context, meta *schema.Metadata, id int64) (bool, error)
}
