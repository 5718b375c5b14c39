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

// IntegrationRepository defines data access for integrations, their
// notifications, and the rules and filters of each notification.
type IntegrationRepository interface {
	Create(ctx context.Context, integration *models.Integration) error
	Get(ctx context.Context, name string) (*models.Integration, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, integrationName, name string) (*models.Notification, error)
	UpdateNotification(ctx context.Context, n *models.Notification, modifiedBy string) error

	CreateRule(ctx context.Context, rule *models.NotificationRule, createdBy string) error
	// ListRules returns the notification's rules, in creation order, whose fact
	// type applies to projectTypeID.
	ListRules(ctx context.Context, integrationName, notificationName string, projectTypeID int64) ([]*models.NotificationRule, error)

	CreateFilter(ctx context.Context, filter *models.NotificationFilter, createdBy string) error
	// ListFilters returns the notification's filters in creation order.
	ListFilters(ctx context.Context, integrationName, notificationName string) ([]*models.NotificationFilter, error)
}

type integrationRepository struct {
	db *database.DB
}

// NewIntegrationRepository creates a new integration repository.
func NewIntegrationRepository(db *database.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (name, api_endpoint, created_by)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		integration.Name,
		integration.APIEndpoint,
		integration.CreatedBy,
	).Scan(&integration.CreatedAt)
	if err != nil {
		return mapWriteError(err, "integration")
	}
	return nil
}

func (r *integrationRepository) Get(ctx context.Context, name string) (*models.Integration, error) {
	query := `
		SELECT name, api_endpoint, created_at, created_by
		  FROM integrations
		 WHERE name = $1`

	var i models.Integration
	err := r.db.Querier(ctx).QueryRow(ctx, query, name).Scan(&i.Name, &i.APIEndpoint, &i.CreatedAt, &i.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return &i, nil
}

func (r *integrationRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO integration_notifications
		       (integration_name, notification_name, id_pattern, documentation, default_action, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		n.IntegrationName,
		n.Name,
		n.IDPattern,
		n.Documentation,
		n.DefaultAction,
		n.CreatedBy,
	).Scan(&n.CreatedAt)
	if err != nil {
		return mapWriteError(err, "notification")
	}
	return nil
}

func (r *integrationRepository) GetNotification(ctx context.Context, integrationName, name string) (*models.Notification, error) {
	query := `
		SELECT integration_name, notification_name, id_pattern, default_action,
		       documentation, created_at, created_by
		  FROM integration_notifications
		 WHERE integration_name = $1
		   AND notification_name = $2`

	var n models.Notification
	err := r.db.Querier(ctx).QueryRow(ctx, query, integrationName, name).Scan(
		&n.IntegrationName,
		&n.Name,
		&n.IDPattern,
		&n.DefaultAction,
		&n.Documentation,
		&n.CreatedAt,
		&n.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *integrationRepository) UpdateNotification(ctx context.Context, n *models.Notification, modifiedBy string) error {
	query := `
		UPDATE integration_notifications
		   SET id_pattern = $3,
		       documentation = $4,
		       default_action = $5,
		       last_modified_at = CURRENT_TIMESTAMP,
		       last_modified_by = $6
		 WHERE integration_name = $1
		   AND notification_name = $2`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		n.IntegrationName,
		n.Name,
		n.IDPattern,
		n.Documentation,
		n.DefaultAction,
		modifiedBy,
	)
	if err != nil {
		return mapWriteError(err, "notification")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *integrationRepository) CreateRule(ctx context.Context, rule *models.NotificationRule, createdBy string) error {
	query := `
		INSERT INTO notification_rules (integration_name, notification_name, fact_type_id, pattern, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		rule.IntegrationName,
		rule.Notification,
		rule.FactTypeID,
		rule.Pattern,
		createdBy,
	).Scan(&rule.ID)
	if err != nil {
		return mapWriteError(err, "notification rule")
	}
	return nil
}

func (r *integrationRepository) ListRules(ctx context.Context, integrationName, notificationName string, projectTypeID int64) ([]*models.NotificationRule, error) {
	query := `
		SELECT r.id, r.integration_name, r.notification_name, r.fact_type_id, r.pattern
		  FROM notification_rules AS r
		  JOIN project_fact_types AS ft ON ft.id = r.fact_type_id
		 WHERE r.integration_name = $1
		   AND r.notification_name = $2
		   AND $3 = ANY (ft.project_type_ids)
		 ORDER BY r.id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, integrationName, notificationName, projectTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification rules: %w", err)
	}
	rules, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.NotificationRule])
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification rules: %w", err)
	}
	return rules, nil
}

func (r *integrationRepository) CreateFilter(ctx context.Context, filter *models.NotificationFilter, createdBy string) error {
	query := `
		INSERT INTO notification_filters
		       (integration_name, notification_name, filter_name, pattern, operation, value, action, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		filter.IntegrationName,
		filter.Notification,
		filter.Name,
		filter.Pattern,
		filter.Operation,
		filter.Value,
		filter.Action,
		createdBy,
	).Scan(&filter.ID)
	if err != nil {
		return mapWriteError(err, "notification filter")
	}
	return nil
}

func (r *integrationRepository) ListFilters(ctx context.Context, integrationName, notificationName string) ([]*models.NotificationFilter, error) {
	query := `
		SELECT id, integration_name, notification_name, filter_name, pattern, operation, value, action
		  FROM notification_filters
		 WHERE integration_name = $1
		   AND notification_name = $2
		 ORDER BY id`

	rows, err := r.db.Querier(ctx).Query(ctx, query, integrationName, notificationName)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification filters: %w", err)
	}
	filters, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[models.NotificationFilter])
	if err != nil {
		return nil, fmt.Errorf("failed to scan notification filters: %w", err)
	}
	return filters, nil
}
