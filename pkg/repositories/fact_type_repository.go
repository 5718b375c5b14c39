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

// FactTypeRepository defines data access for fact types and their scoring options.
type FactTypeRepository interface {
	Create(ctx context.Context, factType *models.FactType) error
	Get(ctx context.Context, id int64) (*models.FactType, error)
	ListForProjectType(ctx context.Context, projectTypeID int64) ([]*models.FactType, error)
	GetEnumOptions(ctx context.Context, factTypeIDs []int64) ([]*models.EnumOption, error)
	GetRangeOptions(ctx context.Context, factTypeIDs []int64) ([]*models.RangeOption, error)
	SaveEnumOption(ctx context.Context, opt *models.EnumOption, createdBy string) error
	CreateRangeOption(ctx context.Context, opt *models.RangeOption, createdBy string) error
}

type factTypeRepository struct {
	db *database.DB
}

// NewFactTypeRepository creates a new fact type repository.
func NewFactTypeRepository(db *database.DB) FactTypeRepository {
	return &factTypeRepository{db: db}
}

const factTypeColumns = `
		id, name, project_type_ids, data_type, fact_type, description,
		ui_options, weight::float8, created_at, created_by`

func scanFactType(row pgx.Row) (*models.FactType, error) {
	var ft models.FactType
	err := row.Scan(
		&ft.ID,
		&ft.Name,
		&ft.ProjectTypeIDs,
		&ft.DataType,
		&ft.FactType,
		&ft.Description,
		&ft.UIOptions,
		&ft.Weight,
		&ft.CreatedAt,
		&ft.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &ft, nil
}

func (r *factTypeRepository) Create(ctx context.Context, factType *models.FactType) error {
	if factType.ProjectTypeIDs == nil {
		factType.ProjectTypeIDs = []int64{}
	}
	if factType.UIOptions == nil {
		factType.UIOptions = []string{}
	}

	query := `
		INSERT INTO project_fact_types
		       (name, project_type_ids, data_type, fact_type, description, ui_options, weight, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		factType.Name,
		factType.ProjectTypeIDs,
		factType.DataType,
		factType.FactType,
		factType.Description,
		factType.UIOptions,
		factType.Weight,
		factType.CreatedBy,
	).Scan(&factType.ID, &factType.CreatedAt)
	if err != nil {
		return mapWriteError(err, "fact type")
	}
	return nil
}

func (r *factTypeRepository) Get(ctx context.Context, id int64) (*models.FactType, error) {
	query := `SELECT` + factTypeColumns + ` FROM project_fact_types WHERE id = $1`

	ft, err := scanFactType(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fact type: %w", err)
	}
	return ft, nil
}

func (r *factTypeRepository) ListForProjectType(ctx context.Context, projectTypeID int64) ([]*models.FactType, error) {
	query := `SELECT` + factTypeColumns + `
		  FROM project_fact_types
		 WHERE $1 = ANY (project_type_ids)
		 ORDER BY name`

	rows, err := r.db.Querier(ctx).Query(ctx, query, projectTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fact types: %w", err)
	}
	defer rows.Close()

	var factTypes []*models.FactType
	for rows.Next() {
		ft, err := scanFactType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fact type: %w", err)
		}
		factTypes = append(factTypes, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fact types: %w", err)
	}
	return factTypes, nil
}

// GetEnumOptions returns the enum options of the given fact types.
func (r *factTypeRepository) GetEnumOptions(ctx context.Context, factTypeIDs []int64) ([]*models.EnumOption, error) {
	if len(factTypeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, fact_type_id, value, icon_class, score::float8
		  FROM project_fact_type_enums
		 WHERE fact_type_id = ANY ($1)
		 ORDER BY fact_type_id, value`

	rows, err := r.db.Querier(ctx).Query(ctx, query, factTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get enum options: %w", err)
	}
	defer rows.Close()

	var options []*models.EnumOption
	for rows.Next() {
		var opt models.EnumOption
		if err := rows.Scan(&opt.ID, &opt.FactTypeID, &opt.Value, &opt.IconClass, &opt.Score); err != nil {
			return nil, fmt.Errorf("failed to scan enum option: %w", err)
		}
		options = append(options, &opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enum options: %w", err)
	}
	return options, nil
}

// GetRangeOptions returns the range options of the given fact types.
func (r *factTypeRepository) GetRangeOptions(ctx context.Context, factTypeIDs []int64) ([]*models.RangeOption, error) {
	if len(factTypeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, fact_type_id, min_value::float8, max_value::float8, score::float8
		  FROM project_fact_type_ranges
		 WHERE fact_type_id = ANY ($1)
		 ORDER BY fact_type_id, min_value`

	rows, err := r.db.Querier(ctx).Query(ctx, query, factTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get range options: %w", err)
	}
	defer rows.Close()

	var options []*models.RangeOption
	for rows.Next() {
		var opt models.RangeOption
		if err := rows.Scan(&opt.ID, &opt.FactTypeID, &opt.MinValue, &opt.MaxValue, &opt.Score); err != nil {
			return nil, fmt.Errorf("failed to scan range option: %w", err)
		}
		options = append(options, &opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate range options: %w", err)
	}
	return options, nil
}

// SaveEnumOption creates an enum option or updates the score and icon of an
// existing one with the same value.
func (r *factTypeRepository) SaveEnumOption(ctx context.Context, opt *models.EnumOption, createdBy string) error {
	query := `
		INSERT INTO project_fact_type_enums (fact_type_id, value, icon_class, score, created_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fact_type_id, value) DO UPDATE
		SET icon_class = EXCLUDED.icon_class,
		    score = EXCLUDED.score
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		opt.FactTypeID,
		opt.Value,
		opt.IconClass,
		opt.Score,
		createdBy,
	).Scan(&opt.ID)
	if err != nil {
		return mapWriteError(err, "enum option")
	}
	return nil
}

func (r *factTypeRepository) CreateRangeOption(ctx context.Context, opt *models.RangeOption, createdBy string) error {
	query := `
		INSERT INTO project_fact_type_ranges (fact_type_id, min_value, max_value, score, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		opt.FactTypeID,
		opt.MinValue,
		opt.MaxValue,
		opt.Score,
		createdBy,
	).Scan(&opt.ID)
	if err != nil {
		return mapWriteError(err, "range option")
	}
	return nil
}
