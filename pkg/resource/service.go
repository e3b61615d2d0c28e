package resource

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/tollgate-io/tollgate/pkg/apperror"
	"github.com/tollgate-io/tollgate/pkg/resourcequery"
	"github.com/tollgate-io/tollgate/pkg/schema"
)

// updateManyChunkSize bounds single-statement size for very large bulk
// saves.
const updateManyChunkSize = 10000

// Service executes CRUD operations against one entity type. It is generic
// over entity shape: construct one per registered entity with that
// entity's metadata handle.
type Service struct {
	store Store
	meta  *schema.Metadata
	log   logrus.FieldLogger
}

// NewService creates a CRUD service for the entity described by meta.
func NewService(store Store, meta *schema.Metadata, log logrus.FieldLogger) *Service {
	return &Service{
		store: store,
		meta:  meta,
		log:   log.WithField("resource", meta.TableName),
	}
}

// Metadata returns the entity metadata the service operates on.
func (s *Service) Metadata() *schema.Metadata {
	return s.meta
}

func (s *Service) namespace() string {
	return s.meta.TableName
}

// GetByID fetches a single row, honoring select/relations from the query.
func (s *Service) GetByID(ctx context.Context, id int64, q *resourcequery.Query) (Row, error) {
	row, err := s.store.FindOne(ctx, s.meta, id, q)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperror.NotFound("Entity not found", s.namespace())
	}
	return row, nil
}

// GetMany fetches all rows matching the query. An empty result is valid.
func (s *Service) GetMany(ctx context.Context, q *resourcequery.Query) ([]Row, error) {
	rows, err := s.store.FindMany(ctx, s.meta, q)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []Row{}
	}
	return rows, nil
}

// CreateOne inserts a single row and returns it as stored.
func (s *Service) CreateOne(ctx context.Context, row Row) (Row, error) {
	created, err := s.Create(ctx, []Row{row})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// Create inserts a batch of rows, returning them in input order.
// Constraint violations are translated once, here at the engine boundary.
func (s *Service) Create(ctx context.Context, rows []Row) ([]Row, error) {
	created, err := s.store.Insert(ctx, s.meta, rows)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return created, nil
}

// Update replaces a row. A full replace is a patch with the complete
// payload.
func (s *Service) Update(ctx context.Context, id int64, row Row) (Row, error) {
	return s.Patch(ctx, id, row)
}

// Patch applies a partial payload to an existing row. The row must exist
// before the mutation is attempted, and a caller-supplied id field is
// stripped so the primary key cannot be overwritten by patch content.
func (s *Service) Patch(ctx context.Context, id int64, row Row) (Row, error) {
	exists, err := s.store.ExistsByID(ctx, s.meta, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.NotFound("Entity doesn't exist", s.namespace())
	}

	delete(row, "id")

	updated, err := s.store.UpdateByID(ctx, s.meta, id, row)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return updated, nil
}

// UpdateMany upserts rows in bulk, chunked to bound statement size.
func (s *Service) UpdateMany(ctx context.Context, rows []Row) ([]Row, error) {
	saved := make([]Row, 0, len(rows))
	for start := 0; start < len(rows); start += updateManyChunkSize {
		end := start + updateManyChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk, err := s.store.Save(ctx, s.meta, rows[start:end])
		if err != nil {
			return nil, translateStoreError(err)
		}
		saved = append(saved, chunk...)
	}
	return saved, nil
}

// Delete removes a row after verifying it exists. A concurrent delete
// between the existence check and the delete is an accepted race; the
// delete itself does not fail on zero rows.
func (s *Service) Delete(ctx context.Context, id int64) error {
	exists, err := s.store.ExistsByID(ctx, s.meta, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.NotFound("Entity not found", s.namespace())
	}
	return s.store.DeleteByID(ctx, s.meta, id)
}
