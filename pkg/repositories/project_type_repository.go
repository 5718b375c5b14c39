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

// ProjectTypeRepository defines data access for project types.
type ProjectTypeRepository interface {
	Create(ctx context.Context, projectType *models.ProjectType) error
	Get(ctx context.Context, id int64) (*models.ProjectType, error)
	List(ctx context.Context) ([]*models.ProjectType, error)
}

type projectTypeRepository struct {
	db *database.DB
}

// NewProjectTypeRepository creates a new project type repository.
func NewProjectTypeRepository(db *database.DB) ProjectTypeRepository {
	return &projectTypeRepository{db: db}
}

func (r *projectTypeRepository) Create(ctx context.Context, projectType *models.ProjectType) error {
	query := `
		INSERT INTO project_types (name, slug, icon_class, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		projectType.Name,
		projectType.Slug,
		projectType.IconClass,
		projectType.CreatedBy,
	).Scan(&projectType.ID, &projectType.CreatedAt)
	if err != nil {
		return mapWriteError(err, "project type")
	}
	return nil
}

func (r *projectTypeRepository) Get(ctx context.Context, id int64) (*models.ProjectType, error) {
	query := `
		SELECT id, name, slug, icon_class, created_at, created_by
		  FROM project_types
		 WHERE id = $1`

	var pt models.ProjectType
	err := r.db.Querier(ctx).QueryRow(ctx, query, id).Scan(
		&pt.ID, &pt.Name, &pt.Slug, &pt.IconClass, &pt.CreatedAt, &pt.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project type: %w", err)
	}
	return &pt, nil
}

func (r *projectTypeRepository) List(ctx context.Context) ([]*models.ProjectType, error) {
	query := `
		SELECT id, name, slug, icon_class, created_at, created_by
		  FROM project_types
		 ORDER BY name`

	rows, err := r.db.Querier(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list project types: %w", err)
	}
	defer rows.Close()

	var types []*models.ProjectType
	for rows.Next() {
		var pt models.ProjectType
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Slug, &pt.IconClass, &pt.CreatedAt, &pt.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan project type: %w", err)
		}
		types = append(types, &pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project types: %w", err)
	}
	return types, nil
}
