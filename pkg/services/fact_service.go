package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
	"github.com/ekaya-inc/scorecard/pkg/scoring"
	"github.com/ekaya-inc/scorecard/pkg/search"
)

// FactService reads, scores and records project fact values.
type FactService interface {
	// List returns every fact type applicable to the project with its value.
	// With detail, each fact carries its score breakdown.
	List(ctx context.Context, projectID int64, detail bool) ([]*models.ProjectFact, error)
	// ListRecorded returns only the facts the project has a value for.
	ListRecorded(ctx context.Context, projectID int64) ([]*models.ProjectFact, error)
	// Record writes several fact values of a project in one transaction.
	Record(ctx context.Context, projectID int64, updates []models.FactUpdate, recordedBy string) ([]*models.FactValue, error)
	// RecordValue writes a single fact value. The fact type must apply to
	// the project's type. It does not refresh the search index.
	RecordValue(ctx context.Context, project *models.Project, factTypeID int64, value, recordedBy string) (*models.FactValue, error)
	// Rescore recomputes the stored score of every value of a fact type and
	// returns the ids of projects whose score changed.
	Rescore(ctx context.Context, factTypeID int64) ([]int64, error)
}

type factService struct {
	factRepo     repositories.FactRepository
	factTypeRepo repositories.FactTypeRepository
	projectRepo  repositories.ProjectRepository
	tx           Transactor
	indexer      search.Indexer
	logger       *zap.Logger
}

// NewFactService creates a new fact service.
func NewFactService(
	factRepo repositories.FactRepository,
	factTypeRepo repositories.FactTypeRepository,
	projectRepo repositories.ProjectRepository,
	tx Transactor,
	indexer search.Indexer,
	logger *zap.Logger,
) FactService {
	return &factService{
		factRepo:     factRepo,
		factTypeRepo: factTypeRepo,
		projectRepo:  projectRepo,
		tx:           tx,
		indexer:      indexer,
		logger:       logger.Named("facts"),
	}
}

func (s *factService) List(ctx context.Context, projectID int64, detail bool) ([]*models.ProjectFact, error) {
	facts, err := s.factRepo.ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !detail {
		return facts, nil
	}

	enumIDs, rangeIDs := scoring.OptionIDs(facts)
	catalog, err := s.loadCatalog(ctx, enumIDs, rangeIDs)
	if err != nil {
		return nil, err
	}

	details, err := scoring.ComputeDetail(facts, catalog)
	if err != nil {
		var coerceErr *scoring.CoercionError
		if errors.As(err, &coerceErr) {
			for _, f := range facts {
				if f.FactTypeID == coerceErr.FactTypeID {
					s.logger.Error("Failed to convert stored fact value",
						zap.Int64("project_id", projectID),
						zap.Any("fact", f),
						zap.Error(err))
				}
			}
		}
		return nil, err
	}

	for i, f := range facts {
		f.Detail = details[i]
	}
	return facts, nil
}

func (s *factService) loadCatalog(ctx context.Context, enumIDs, rangeIDs []int64) (*scoring.Catalog, error) {
	enums, err := s.factTypeRepo.GetEnumOptions(ctx, enumIDs)
	if err != nil {
		return nil, err
	}
	ranges, err := s.factTypeRepo.GetRangeOptions(ctx, rangeIDs)
	if err != nil {
		return nil, err
	}
	return scoring.NewCatalog(enumIDs, rangeIDs, enums, ranges)
}

// catalogFor loads the options needed to score values of the given fact types.
func (s *factService) catalogFor(ctx context.Context, factTypes ...*models.FactType) (*scoring.Catalog, error) {
	var enumIDs, rangeIDs []int64
	for _, ft := range factTypes {
		if ft.DataType == models.DataTypeBoolean {
			continue
		}
		switch ft.FactType {
		case models.FactKindEnum:
			enumIDs = append(enumIDs, ft.ID)
		case models.FactKindRange:
			rangeIDs = append(rangeIDs, ft.ID)
		}
	}
	return s.loadCatalog(ctx, enumIDs, rangeIDs)
}

func (s *factService) ListRecorded(ctx context.Context, projectID int64) ([]*models.ProjectFact, error) {
	if _, err := s.projectRepo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.factRepo.ListRecorded(ctx, projectID)
}

func (s *factService) Record(ctx context.Context, projectID int64, updates []models.FactUpdate, recordedBy string) ([]*models.FactValue, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fact values given", apperrors.ErrValidation)
	}

	project, err := s.projectRepo.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	applicable, err := s.factTypeRepo.ListForProjectType(ctx, project.ProjectTypeID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.FactType, len(applicable))
	for _, ft := range applicable {
		byID[ft.ID] = ft
	}

	requested := make([]*models.FactType, 0, len(updates))
	for _, u := range updates {
		ft, ok := byID[u.FactTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: fact type %d does not apply to project %d",
				apperrors.ErrValidation, u.FactTypeID, projectID)
		}
		requested = append(requested, ft)
	}

	catalog, err := s.catalogFor(ctx, requested...)
	if err != nil {
		return nil, err
	}

	values := make([]*models.FactValue, 0, len(updates))
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		for i, u := range updates {
			fv, err := s.write(ctx, project, requested[i], catalog, u.Value, recordedBy)
			if err != nil {
				return err
			}
			values = append(values, fv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Recorded project facts",
		zap.Int64("project_id", projectID),
		zap.Int("count", len(values)),
		zap.String("recorded_by", recordedBy))

	refreshIndex(ctx, s.indexer, s.logger, projectID)
	return values, nil
}

func (s *factService) RecordValue(ctx context.Context, project *models.Project, factTypeID int64, value, recordedBy string) (*models.FactValue, error) {
	ft, err := s.factTypeRepo.Get(ctx, factTypeID)
	if err != nil {
		return nil, err
	}
	if !ft.AppliesTo(project.ProjectTypeID) {
		return nil, fmt.Errorf("%w: fact type %d does not apply to project %d",
			apperrors.ErrValidation, factTypeID, project.ID)
	}

	catalog, err := s.catalogFor(ctx, ft)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, project, ft, catalog, value, recordedBy)
}

// write scores value and upserts it as the project's value for ft.
func (s *factService) write(ctx context.Context, project *models.Project, ft *models.FactType, catalog *scoring.Catalog, value, recordedBy string) (*models.FactValue, error) {
	set, err := catalog.OptionsFor(ft.ID, ft.DataType, ft.FactType)
	if err != nil {
		return nil, err
	}

	score, err := scoring.ValueScore(set, ft.DataType, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrValidation, ft.Name, err)
	}

	fv := &models.FactValue{
		ProjectID:  project.ID,
		FactTypeID: ft.ID,
		Value:      value,
		Score:      score,
		RecordedBy: recordedBy,
	}
	if err := s.factRepo.Upsert(ctx, fv); err != nil {
		return nil, err
	}
	return fv, nil
}

func (s *factService) Rescore(ctx context.Context, factTypeID int64) ([]int64, error) {
	ft, err := s.factTypeRepo.Get(ctx, factTypeID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.catalogFor(ctx, ft)
	if err != nil {
		return nil, err
	}
	set, err := catalog.OptionsFor(ft.ID, ft.DataType, ft.FactType)
	if err != nil {
		return nil, err
	}

	values, err := s.factRepo.ListByFactType(ctx, factTypeID)
	if err != nil {
		return nil, err
	}

	var changed []int64
	for _, fv := range values {
		score, err := scoring.ValueScore(set, ft.DataType, fv.Value)
		if err != nil {
			s.logger.Warn("Skipping unreadable fact value during rescore",
				zap.Int64("project_id", fv.ProjectID),
				zap.Int64("fact_type_id", factTypeID),
				zap.Error(err))
			continue
		}
		if score == fv.Score {
			continue
		}
		if err := s.factRepo.UpdateScore(ctx, fv.ProjectID, factTypeID, score); err != nil {
			return nil, err
		}
		changed = append(changed, fv.ProjectID)
	}
	return changed, nil
}

var _ FactService = (*factService)(nil)
