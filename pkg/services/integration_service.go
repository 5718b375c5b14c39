package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/notification"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
)

// IntegrationService manages integrations, their notifications, rules,
// filters and the external identifiers of projects.
type IntegrationService interface {
	Create(ctx context.Context, integration *models.Integration) error

	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, integrationName, name string) (*models.Notification, error)
	// PatchNotification applies a JSON Patch to the id_pattern,
	// default_action and documentation of a notification.
	PatchNotification(ctx context.Context, integrationName, name string, patch jsonpatch.Patch, modifiedBy string) (*models.Notification, error)

	AddRule(ctx context.Context, rule *models.NotificationRule, createdBy string) error
	AddFilter(ctx context.Context, filter *models.NotificationFilter, createdBy string) error

	AddIdentifier(ctx context.Context, identifier *models.ExternalIdentifier) error
	ListIdentifiers(ctx context.Context, projectID int64) ([]*models.ExternalIdentifier, error)
}

type integrationService struct {
	integrationRepo repositories.IntegrationRepository
	identifierRepo  repositories.IdentifierRepository
	projectRepo     repositories.ProjectRepository
	factTypeRepo    repositories.FactTypeRepository
	logger          *zap.Logger
}

// NewIntegrationService creates a new integration service.
func NewIntegrationService(
	integrationRepo repositories.IntegrationRepository,
	identifierRepo repositories.IdentifierRepository,
	projectRepo repositories.ProjectRepository,
	factTypeRepo repositories.FactTypeRepository,
	logger *zap.Logger,
) IntegrationService {
	return &integrationService{
		integrationRepo: integrationRepo,
		identifierRepo:  identifierRepo,
		projectRepo:     projectRepo,
		factTypeRepo:    factTypeRepo,
		logger:          logger.Named("integrations"),
	}
}

func (s *integrationService) Create(ctx context.Context, integration *models.Integration) error {
	integration.Name = strings.TrimSpace(integration.Name)
	if integration.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if err := s.integrationRepo.Create(ctx, integration); err != nil {
		return err
	}
	s.logger.Info("Created integration", zap.String("integration", integration.Name))
	return nil
}

func validatePointer(field, pointer string) error {
	if pointer == "" {
		return fmt.Errorf("%w: %s is required", apperrors.ErrValidation, field)
	}
	if !notification.ValidPointer(pointer) {
		return fmt.Errorf("%w: %s %q is not a JSON pointer", apperrors.ErrValidation, field, pointer)
	}
	return nil
}

func (s *integrationService) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if err := validatePointer("id_pattern", n.IDPattern); err != nil {
		return err
	}
	if n.DefaultAction == "" {
		n.DefaultAction = models.ActionProcess
	}
	if !n.DefaultAction.Valid() {
		return fmt.Errorf("%w: unknown default action %q", apperrors.ErrValidation, n.DefaultAction)
	}

	if _, err := s.integrationRepo.Get(ctx, n.IntegrationName); err != nil {
		return err
	}
	if err := s.integrationRepo.CreateNotification(ctx, n); err != nil {
		return err
	}

	s.logger.Info("Created notification",
		zap.String("integration", n.IntegrationName),
		zap.String("notification", n.Name))
	return nil
}

func (s *integrationService) GetNotification(ctx context.Context, integrationName, name string) (*models.Notification, error) {
	return s.integrationRepo.GetNotification(ctx, integrationName, name)
}

// notificationPatch is the editable part of a notification.
type notificationPatch struct {
	IDPattern     string        `json:"id_pattern"`
	DefaultAction models.Action `json:"default_action"`
	Documentation *string       `json:"documentation"`
}

func (s *integrationService) PatchNotification(ctx context.Context, integrationName, name string, patch jsonpatch.Patch, modifiedBy string) (*models.Notification, error) {
	n, err := s.integrationRepo.GetNotification(ctx, integrationName, name)
	if err != nil {
		return nil, err
	}

	doc := notificationPatch{IDPattern: n.IDPattern, DefaultAction: n.DefaultAction, Documentation: n.Documentation}
	if err := applyPatch(&doc, patch); err != nil {
		return nil, err
	}
	if err := validatePointer("id_pattern", doc.IDPattern); err != nil {
		return nil, err
	}
	if !doc.DefaultAction.Valid() {
		return nil, fmt.Errorf("%w: unknown default action %q", apperrors.ErrValidation, doc.DefaultAction)
	}
	n.IDPattern, n.DefaultAction, n.Documentation = doc.IDPattern, doc.DefaultAction, doc.Documentation

	if err := s.integrationRepo.UpdateNotification(ctx, n, modifiedBy); err != nil {
		return nil, err
	}

	s.logger.Info("Updated notification",
		zap.String("integration", integrationName),
		zap.String("notification", name),
		zap.String("default_action", string(n.DefaultAction)))
	return n, nil
}

func (s *integrationService) AddRule(ctx context.Context, rule *models.NotificationRule, createdBy string) error {
	if err := validatePointer("pattern", rule.Pattern); err != nil {
		return err
	}
	if _, err := s.integrationRepo.GetNotification(ctx, rule.IntegrationName, rule.Notification); err != nil {
		return err
	}
	if _, err := s.factTypeRepo.Get(ctx, rule.FactTypeID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown fact type %d", apperrors.ErrValidation, rule.FactTypeID)
		}
		return err
	}
	return s.integrationRepo.CreateRule(ctx, rule, createdBy)
}

func (s *integrationService) AddFilter(ctx context.Context, filter *models.NotificationFilter, createdBy string) error {
	switch {
	case filter.Name == "":
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	case !filter.Operation.Valid():
		return fmt.Errorf("%w: unsupported operation %q", apperrors.ErrValidation, filter.Operation)
	case !filter.Action.Valid():
		return fmt.Errorf("%w: unknown action %q", apperrors.ErrValidation, filter.Action)
	}
	if err := validatePointer("pattern", filter.Pattern); err != nil {
		return err
	}
	if _, err := s.integrationRepo.GetNotification(ctx, filter.IntegrationName, filter.Notification); err != nil {
		return err
	}
	return s.integrationRepo.CreateFilter(ctx, filter, createdBy)
}

func (s *integrationService) AddIdentifier(ctx context.Context, identifier *models.ExternalIdentifier) error {
	if identifier.ExternalID == "" || identifier.IntegrationName == "" {
		return fmt.Errorf("%w: integration_name and external_id are required", apperrors.ErrValidation)
	}
	if _, err := s.projectRepo.Get(ctx, identifier.ProjectID); err != nil {
		return err
	}
	if _, err := s.integrationRepo.Get(ctx, identifier.IntegrationName); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown integration %q", apperrors.ErrValidation, identifier.IntegrationName)
		}
		return err
	}
	return s.identifierRepo.Create(ctx, identifier)
}

func (s *integrationService) ListIdentifiers(ctx context.Context, projectID int64) ([]*models.ExternalIdentifier, error) {
	if _, err := s.projectRepo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.identifierRepo.ListForProject(ctx, projectID)
}

var _ IntegrationService = (*integrationService)(nil)
