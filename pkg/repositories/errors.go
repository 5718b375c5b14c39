package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
)

// PostgreSQL SQLSTATE codes surfaced as application errors.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateInvalidText         = "22P02"
)

// mapWriteError converts constraint violations from an INSERT or UPDATE into
// apperrors sentinels. Other errors are wrapped with the failed operation.
func mapWriteError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %s already exists", apperrors.ErrConflict, op)
		case sqlStateForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing record", apperrors.ErrValidation, op)
		case sqlStateCheckViolation, sqlStateInvalidText:
			return fmt.Errorf("%w: %s: %s", apperrors.ErrValidation, op, pgErr.Message)
		}
	}
	return fmt.Errorf("failed to write %s: %w", op, err)
}
