package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
	"github.com/ekaya-inc/scorecard/pkg/scoring"
	"github.com/ekaya-inc/scorecard/pkg/search"
)

// FactTypeService manages project types, fact types and their scoring options.
type FactTypeService interface {
	CreateProjectType(ctx context.Context, projectType *models.ProjectType) error
	ListProjectTypes(ctx context.Context) ([]*models.ProjectType, error)

	Create(ctx context.Context, factType *models.FactType) error
	Get(ctx context.Context, id int64) (*models.FactType, error)

	// SaveEnumOption adds an option to an enum fact type, or changes the
	// score of an existing one, and rescores recorded values.
	SaveEnumOption(ctx context.Context, opt *models.EnumOption, createdBy string) error
	// AddRangeOption adds a range to a range fact type and rescores recorded
	// values. Ranges overlapping an existing one are rejected.
	AddRangeOption(ctx context.Context, opt *models.RangeOption, createdBy string) error
}

type factTypeService struct {
	factTypeRepo    repositories.FactTypeRepository
	projectTypeRepo repositories.ProjectTypeRepository
	factService     FactService
	tx              Transactor
	indexer         search.Indexer
	logger          *zap.Logger
}

// NewFactTypeService creates a new fact type service.
func NewFactTypeService(
	factTypeRepo repositories.FactTypeRepository,
	projectTypeRepo repositories.ProjectTypeRepository,
	factService FactService,
	tx Transactor,
	indexer search.Indexer,
	logger *zap.Logger,
) FactTypeService {
	return &factTypeService{
		factTypeRepo:    factTypeRepo,
		projectTypeRepo: projectTypeRepo,
		factService:     factService,
		tx:              tx,
		indexer:         indexer,
		logger:          logger.Named("fact-types"),
	}
}

func (s *factTypeService) CreateProjectType(ctx context.Context, projectType *models.ProjectType) error {
	projectType.Name = strings.TrimSpace(projectType.Name)
	if projectType.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if projectType.Slug == "" {
		projectType.Slug = slug.Make(projectType.Name)
	}
	if projectType.Slug == "" {
		return fmt.Errorf("%w: slug is required", apperrors.ErrValidation)
	}
	return s.projectTypeRepo.Create(ctx, projectType)
}

func (s *factTypeService) ListProjectTypes(ctx context.Context) ([]*models.ProjectType, error) {
	return s.projectTypeRepo.List(ctx)
}

func (s *factTypeService) Create(ctx context.Context, factType *models.FactType) error {
	factType.Name = strings.TrimSpace(factType.Name)
	switch {
	case factType.Name == "":
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	case !factType.DataType.Valid():
		return fmt.Errorf("%w: unknown data type %q", apperrors.ErrValidation, factType.DataType)
	case factType.Weight < 0:
		return fmt.Errorf("%w: weight must not be negative", apperrors.ErrValidation)
	}

	if factType.FactType == "" {
		factType.FactType = models.FactKindFree
	}
	if !factType.FactType.Valid() {
		return fmt.Errorf("%w: unknown fact type %q", apperrors.ErrValidation, factType.FactType)
	}
	if factType.FactType == models.FactKindRange && !factType.DataType.Numeric() {
		return fmt.Errorf("%w: range fact types need a decimal or integer data type", apperrors.ErrValidation)
	}

	for _, id := range factType.ProjectTypeIDs {
		if _, err := s.projectTypeRepo.Get(ctx, id); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: unknown project type %d", apperrors.ErrValidation, id)
			}
			return err
		}
	}

	if err := s.factTypeRepo.Create(ctx, factType); err != nil {
		return err
	}

	s.logger.Info("Created fact type",
		zap.Int64("fact_type_id", factType.ID),
		zap.String("name", factType.Name),
		zap.String("fact_type", string(factType.FactType)),
		zap.Float64("weight", factType.Weight))
	return nil
}

func (s *factTypeService) Get(ctx context.Context, id int64) (*models.FactType, error) {
	return s.factTypeRepo.Get(ctx, id)
}

func validScore(score float64) bool {
	return score >= 0 && score <= 100
}

func (s *factTypeService) SaveEnumOption(ctx context.Context, opt *models.EnumOption, createdBy string) error {
	if opt.Value == "" {
		return fmt.Errorf("%w: value is required", apperrors.ErrValidation)
	}
	if !validScore(opt.Score) {
		return fmt.Errorf("%w: score must be between 0 and 100", apperrors.ErrValidation)
	}

	ft, err := s.factTypeRepo.Get(ctx, opt.FactTypeID)
	if err != nil {
		return err
	}
	if ft.FactType != models.FactKindEnum {
		return fmt.Errorf("%w: fact type %d is not an enum", apperrors.ErrValidation, ft.ID)
	}
	if _, err := scoring.Coerce(&opt.Value, ft.DataType); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	return s.saveAndRescore(ctx, ft, func(ctx context.Context) error {
		return s.factTypeRepo.SaveEnumOption(ctx, opt, createdBy)
	})
}

func (s *factTypeService) AddRangeOption(ctx context.Context, opt *models.RangeOption, createdBy string) error {
	if !validScore(opt.Score) {
		return fmt.Errorf("%w: score must be between 0 and 100", apperrors.ErrValidation)
	}

	ft, err := s.factTypeRepo.Get(ctx, opt.FactTypeID)
	if err != nil {
		return err
	}
	if ft.FactType != models.FactKindRange {
		return fmt.Errorf("%w: fact type %d is not a range", apperrors.ErrValidation, ft.ID)
	}

	return s.saveAndRescore(ctx, ft, func(ctx context.Context) error {
		existing, err := s.factTypeRepo.GetRangeOptions(ctx, []int64{ft.ID})
		if err != nil {
			return err
		}
		candidate := make([]models.RangeOption, 0, len(existing)+1)
		for _, r := range existing {
			candidate = append(candidate, *r)
		}
		candidate = append(candidate, *opt)

		if _, err := scoring.NewIntervals(candidate); err != nil {
			switch {
			case errors.Is(err, scoring.ErrOverlappingRanges):
				return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
			case errors.Is(err, scoring.ErrEmptyRange):
				return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
			}
			return err
		}
		return s.factTypeRepo.CreateRangeOption(ctx, opt, createdBy)
	})
}

// saveAndRescore runs save and the rescore of ft's values in one
// transaction, then queues the affected projects for indexing.
func (s *factTypeService) saveAndRescore(ctx context.Context, ft *models.FactType, save func(ctx context.Context) error) error {
	var changed []int64
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := save(ctx); err != nil {
			return err
		}
		var err error
		changed, err = s.factService.Rescore(ctx, ft.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("Updated fact type options",
		zap.Int64("fact_type_id", ft.ID),
		zap.Int("rescored_projects", len(changed)))

	for _, projectID := range changed {
		refreshIndex(ctx, s.indexer, s.logger, projectID)
	}
	return nil
}

var _ FactTypeService = (*factTypeService)(nil)
