package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/database"
	"github.com/ekaya-inc/scorecard/pkg/models"
)

// IdentifierRepository defines data access for external project identifiers.
type IdentifierRepository interface {
	Create(ctx context.Context, identifier *models.ExternalIdentifier) error
	ListForProject(ctx context.Context, projectID int64) ([]*models.ExternalIdentifier, error)
	// Resolve returns the identifier registered for externalID by the
	// integration, or apperrors.ErrNotFound.
	Resolve(ctx context.Context, integrationName, externalID string) (*models.ExternalIdentifier, error)
}

type identifierRepository struct {
	db *database.DB
}

// NewIdentifierRepository creates a new identifier repository.
func NewIdentifierRepository(db *database.DB) IdentifierRepository {
	return &identifierRepository{db: db}
}

func (r *identifierRepository) Create(ctx context.Context, identifier *models.ExternalIdentifier) error {
	query := `
		INSERT INTO project_identifiers (project_id, integration_name, external_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		identifier.ProjectID,
		identifier.IntegrationName,
		identifier.ExternalID,
		identifier.CreatedBy,
	).Scan(&identifier.CreatedAt)
	if err != nil {
		return mapWriteError(err, "project identifier")
	}
	return nil
}

func (r *identifierRepository) ListForProject(ctx context.Context, projectID int64) ([]*models.ExternalIdentifier, error) {
	query := `
		SELECT project_id, integration_name, external_id, created_at, created_by
		  FROM project_identifiers
		 WHERE project_id = $1
		 ORDER BY integration_name`

	rows, err := r.db.Querier(ctx).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project identifiers: %w", err)
	}
	identifiers, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.ExternalIdentifier])
	if err != nil {
		return nil, fmt.Errorf("failed to scan project identifiers: %w", err)
	}
	return identifiers, nil
}

func (r *identifierRepository) Resolve(ctx context.Context, integrationName, externalID string) (*models.ExternalIdentifier, error) {
	query := `
		SELECT project_id, integration_name, external_id, created_at, created_by
		  FROM project_identifiers
		 WHERE integration_name = $1
		   AND external_id = $2`

	var id models.ExternalIdentifier
	err := r.db.Querier(ctx).QueryRow(ctx, query, integrationName, externalID).Scan(
		&id.ProjectID, &id.IntegrationName, &id.ExternalID, &id.CreatedAt, &id.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to resolve identifier: %w", err)
	}
	return &id, nil
}
