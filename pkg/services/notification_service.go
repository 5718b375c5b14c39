package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/logging"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/notification"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
	"github.com/ekaya-inc/scorecard/pkg/search"
)

const (
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
)

// NotificationEvent is an inbound notification from an integration. Verb is
// the last path segment of the route and Method the HTTP method it was
// called with.
type NotificationEvent struct {
	Integration  string
	Notification string
	Verb         models.Verb
	Method       string
	Payload      any
}

// NotificationService turns integration notifications into fact updates.
type NotificationService interface {
	Process(ctx context.Context, event *NotificationEvent) (*models.NotificationResult, error)
}

type notificationService struct {
	integrationRepo  repositories.IntegrationRepository
	identifierRepo   repositories.IdentifierRepository
	projectRepo      repositories.ProjectRepository
	factService      FactService
	indexer          search.Indexer
	recordedByPrefix string
	logger           *zap.Logger
}

// NewNotificationService creates a new notification service. Facts it writes
// are recorded by recordedByPrefix followed by the integration name.
func NewNotificationService(
	integrationRepo repositories.IntegrationRepository,
	identifierRepo repositories.IdentifierRepository,
	projectRepo repositories.ProjectRepository,
	factService FactService,
	indexer search.Indexer,
	recordedByPrefix string,
	logger *zap.Logger,
) NotificationService {
	return &notificationService{
		integrationRepo:  integrationRepo,
		identifierRepo:   identifierRepo,
		projectRepo:      projectRepo,
		factService:      factService,
		indexer:          indexer,
		recordedByPrefix: recordedByPrefix,
		logger:           logger.Named("notifications"),
	}
}

func ignored(reason string) *models.NotificationResult {
	return &models.NotificationResult{Status: StatusIgnored, Reason: reason}
}

func (s *notificationService) Process(ctx context.Context, event *NotificationEvent) (*models.NotificationResult, error) {
	n, err := s.integrationRepo.GetNotification(ctx, event.Integration, event.Notification)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(string(event.Verb), event.Method) {
		return nil, fmt.Errorf("%w: %s route called with %s", apperrors.ErrValidation, event.Verb, event.Method)
	}

	logger := s.logger.With(
		zap.String("integration", event.Integration),
		zap.String("notification", event.Notification))

	externalID, ok := notification.ExtractString(event.Payload, n.IDPattern)
	if !ok {
		logger.Debug("Notification has no project identifier", zap.String("id_pattern", n.IDPattern))
		return ignored("identifier not found in payload"), nil
	}

	identifier, err := s.identifierRepo.Resolve(ctx, event.Integration, externalID)
	if errors.Is(err, apperrors.ErrNotFound) {
		logger.Debug("Notification for unknown project", zap.String("external_id", logging.TruncateValue(externalID)))
		return ignored("unknown project"), nil
	}
	if err != nil {
		return nil, err
	}

	project, err := s.projectRepo.Get(ctx, identifier.ProjectID)
	if err != nil {
		return nil, err
	}
	defer refreshIndex(ctx, s.indexer, logger, project.ID)

	filters, err := s.integrationRepo.ListFilters(ctx, event.Integration, event.Notification)
	if err != nil {
		return nil, err
	}
	if notification.Evaluate(filters, n.DefaultAction, event.Payload) == models.ActionIgnore {
		logger.Debug("Notification ignored by filters", zap.Int64("project_id", project.ID))
		result := ignored("filtered")
		result.ProjectID = &project.ID
		return result, nil
	}

	rules, err := s.integrationRepo.ListRules(ctx, event.Integration, event.Notification, project.ProjectTypeID)
	if err != nil {
		return nil, err
	}

	recordedBy := s.recordedByPrefix + event.Integration
	updated := make([]int64, 0, len(rules))
	for _, rule := range rules {
		value, ok := notification.ExtractString(event.Payload, rule.Pattern)
		if !ok {
			continue
		}
		_, err := s.factService.RecordValue(ctx, project, rule.FactTypeID, value, recordedBy)
		if errors.Is(err, apperrors.ErrValidation) {
			logger.Warn("Skipping notification rule",
				zap.Int64("project_id", project.ID),
				zap.Int64("rule_id", rule.ID),
				zap.String("value", logging.TruncateValue(value)),
				zap.Error(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		updated = append(updated, rule.FactTypeID)
	}

	logger.Info("Processed notification",
		zap.Int64("project_id", project.ID),
		zap.Int("rules", len(rules)),
		zap.Int("updated", len(updated)))

	return &models.NotificationResult{
		Status:    StatusProcessed,
		ProjectID: &project.ID,
		Updated:   updated,
	}, nil
}

var _ NotificationService = (*notificationService)(nil)
