package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/scorecard/pkg/database"
	"github.com/ekaya-inc/scorecard/pkg/models"
)

// FactRepository defines data access for recorded project fact values.
type FactRepository interface {
	// ListForProject returns every fact type applicable to the project,
	// with the project's value when one is recorded, ordered by name.
	ListForProject(ctx context.Context, projectID int64) ([]*models.ProjectFact, error)
	// ListRecorded returns only the facts the project has a value for.
	ListRecorded(ctx context.Context, projectID int64) ([]*models.ProjectFact, error)
	ListByFactType(ctx context.Context, factTypeID int64) ([]*models.FactValue, error)
	Upsert(ctx context.Context, value *models.FactValue) error
	UpdateScore(ctx context.Context, projectID, factTypeID int64, score float64) error
}

type factRepository struct {
	db *database.DB
}

// NewFactRepository creates a new fact repository.
func NewFactRepository(db *database.DB) FactRepository {
	return &factRepository{db: db}
}

const projectFactsSQL = `
		SELECT ft.id,
		       ft.name,
		       f.recorded_at,
		       f.recorded_by,
		       f.value,
		       ft.data_type,
		       ft.fact_type,
		       ft.ui_options,
		       ft.weight::float8,
		       COALESCE(f.score, 0)::float8,
		       e.icon_class
		  FROM projects AS p
		  JOIN project_fact_types AS ft
		    ON p.project_type_id = ANY (ft.project_type_ids)
		  %s JOIN project_facts AS f
		    ON f.fact_type_id = ft.id
		   AND f.project_id = p.id
		  LEFT JOIN project_fact_type_enums AS e
		    ON ft.fact_type = 'enum'
		   AND e.fact_type_id = ft.id
		   AND e.value = f.value
		 WHERE p.id = $1
		 ORDER BY ft.name`

func (r *factRepository) ListForProject(ctx context.Context, projectID int64) ([]*models.ProjectFact, error) {
	return r.listFacts(ctx, fmt.Sprintf(projectFactsSQL, "LEFT"), projectID)
}

func (r *factRepository) ListRecorded(ctx context.Context, projectID int64) ([]*models.ProjectFact, error) {
	return r.listFacts(ctx, fmt.Sprintf(projectFactsSQL, "INNER"), projectID)
}

func (r *factRepository) listFacts(ctx context.Context, query string, projectID int64) ([]*models.ProjectFact, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project facts: %w", err)
	}
	defer rows.Close()

	facts := []*models.ProjectFact{}
	for rows.Next() {
		var f models.ProjectFact
		err := rows.Scan(
			&f.FactTypeID,
			&f.Name,
			&f.RecordedAt,
			&f.RecordedBy,
			&f.Value,
			&f.DataType,
			&f.FactType,
			&f.UIOptions,
			&f.Weight,
			&f.Score,
			&f.IconClass,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project fact: %w", err)
		}
		facts = append(facts, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project facts: %w", err)
	}
	return facts, nil
}

func (r *factRepository) ListByFactType(ctx context.Context, factTypeID int64) ([]*models.FactValue, error) {
	query := `
		SELECT project_id, fact_type_id, value, score::float8, recorded_at, recorded_by
		  FROM project_facts
		 WHERE fact_type_id = $1
		 ORDER BY project_id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, factTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fact values: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.FactValue])
	if err != nil {
		return nil, fmt.Errorf("failed to scan fact values: %w", err)
	}
	return values, nil
}

// Upsert records the value of a fact, replacing any previous value.
func (r *factRepository) Upsert(ctx context.Context, value *models.FactValue) error {
	query := `
		INSERT INTO project_facts (project_id, fact_type_id, value, score, recorded_at, recorded_by)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, $5)
		ON CONFLICT (project_id, fact_type_id) DO UPDATE
		SET value = EXCLUDED.value,
		    score = EXCLUDED.score,
		    recorded_at = EXCLUDED.recorded_at,
		    recorded_by = EXCLUDED.recorded_by
		RETURNING recorded_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		value.ProjectID,
		value.FactTypeID,
		value.Value,
		value.Score,
		value.RecordedBy,
	).Scan(&value.RecordedAt)
	if err != nil {
		return mapWriteError(err, "project fact")
	}
	return nil
}

func (r *factRepository) UpdateScore(ctx context.Context, projectID, factTypeID int64, score float64) error {
	query := `
		UPDATE project_facts
		   SET score = $3
		 WHERE project_id = $1
		   AND fact_type_id = $2`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, projectID, factTypeID, score); err != nil {
		return fmt.Errorf("failed to update fact score: %w", err)
	}
	return nil
}
