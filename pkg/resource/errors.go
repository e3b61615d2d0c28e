package resource

import (
	"errors"

	"github.com/lib/pq"

	"github.com/tollgate-io/tollgate/pkg/apperror"
)

// Postgres constraint-violation classes translated to domain errors.
const (
	pgNotNullViolation    = pq.ErrorCode("23502")
	pgForeignKeyViolation = pq.ErrorCode("23503")
	pgUniqueViolation     = pq.ErrorCode("23505")
	pgCheckViolation      = pq.ErrorCode("23514")
)

// translateStoreError maps storage constraint violations to a 400 carrying
// the violating table as namespace. Any other storage error propagates
// unchanged so unknown failure modes surface instead of turning into a
// generic bad request.
func translateStoreError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pgNotNullViolation, pgForeignKeyViolation, pgUniqueViolation, pgCheckViolation:
		message := pqErr.Detail
		if message == "" {
			message = pqErr.Message
		}
		return apperror.BadRequest(message, pqErr.Table)
	}
	return err
}
