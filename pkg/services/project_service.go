package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/repositories"
	"github.com/ekaya-inc/scorecard/pkg/scoring"
	"github.com/ekaya-inc/scorecard/pkg/search"
)

// scoreTolerance is the largest accepted difference between the storage
// computed project score and the sum of fact contributions.
const scoreTolerance = 0.01

// ProjectService defines project operations.
type ProjectService interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id int64) (*models.Project, error)
	// GetFull returns the project with its facts, links and URLs. With
	// scoreDetail each fact carries the breakdown of its score.
	GetFull(ctx context.Context, id int64, scoreDetail bool) (*models.FullProject, error)
	List(ctx context.Context, filter *models.ProjectListFilter) (*models.ProjectPage, error)
	// Update applies a JSON Patch to the project's type, name, slug,
	// description, environments and archived flag.
	Update(ctx context.Context, id int64, patch jsonpatch.Patch, modifiedBy string) (*models.Project, error)
	Delete(ctx context.Context, id int64) error
	SaveLink(ctx context.Context, projectID int64, link *models.ProjectLink) error
	DeleteLink(ctx context.Context, projectID int64, title string) error
	SaveURL(ctx context.Context, projectID int64, u *models.ProjectURL) error
	DeleteURL(ctx context.Context, projectID int64, environment string) error
	// ReindexAll queues every project for search indexing and returns how
	// many were queued.
	ReindexAll(ctx context.Context) (int, error)
}

type projectService struct {
	projectRepo     repositories.ProjectRepository
	projectTypeRepo repositories.ProjectTypeRepository
	factService     FactService
	indexer         search.Indexer
	logger          *zap.Logger
}

// NewProjectService creates a new project service.
func NewProjectService(
	projectRepo repositories.ProjectRepository,
	projectTypeRepo repositories.ProjectTypeRepository,
	factService FactService,
	indexer search.Indexer,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		projectRepo:     projectRepo,
		projectTypeRepo: projectTypeRepo,
		factService:     factService,
		indexer:         indexer,
		logger:          logger.Named("projects"),
	}
}

func (s *projectService) Create(ctx context.Context, project *models.Project) error {
	project.Name = strings.TrimSpace(project.Name)
	if project.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if project.Slug == "" {
		project.Slug = slug.Make(project.Name)
	}
	if project.Slug == "" {
		return fmt.Errorf("%w: slug is required", apperrors.ErrValidation)
	}

	projectType, err := s.projectTypeRepo.Get(ctx, project.ProjectTypeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: unknown project type %d", apperrors.ErrValidation, project.ProjectTypeID)
		}
		return err
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return err
	}
	project.ProjectType = projectType.Name

	s.logger.Info("Created project",
		zap.Int64("project_id", project.ID),
		zap.String("slug", project.Slug),
		zap.String("created_by", project.CreatedBy))

	refreshIndex(ctx, s.indexer, s.logger, project.ID)
	return nil
}

func (s *projectService) Get(ctx context.Context, id int64) (*models.Project, error) {
	return s.projectRepo.Get(ctx, id)
}

func (s *projectService) GetFull(ctx context.Context, id int64, scoreDetail bool) (*models.FullProject, error) {
	var (
		project *models.Project
		facts   []*models.ProjectFact
		links   []*models.ProjectLink
		urls    []*models.ProjectURL
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		project, err = s.projectRepo.Get(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		facts, err = s.factService.List(gctx, id, scoreDetail)
		return err
	})
	g.Go(func() error {
		var err error
		links, err = s.projectRepo.GetLinks(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		urls, err = s.projectRepo.GetURLs(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	full := &models.FullProject{
		Project: project,
		Facts:   facts,
		Links:   links,
		URLs:    make(map[string]string, len(urls)),
	}
	for _, u := range urls {
		full.URLs[u.Environment] = u.URL
	}

	if scoreDetail {
		s.checkScore(project, facts)
	}
	return full, nil
}

// checkScore compares the sum of fact contributions with the project score
// computed by storage and logs when they disagree.
func (s *projectService) checkScore(project *models.Project, facts []*models.ProjectFact) {
	details := make([]*models.ScoreDetail, 0, len(facts))
	for _, f := range facts {
		details = append(details, f.Detail)
	}
	total, ok := scoring.Total(details)
	if !ok {
		return
	}
	if math.Abs(total-project.ProjectScore) > scoreTolerance {
		s.logger.Warn("Fact contributions differ from project score",
			zap.Int64("project_id", project.ID),
			zap.Float64("project_score", project.ProjectScore),
			zap.Float64("contribution_total", total))
	}
}

func (s *projectService) List(ctx context.Context, filter *models.ProjectListFilter) (*models.ProjectPage, error) {
	return s.projectRepo.List(ctx, filter)
}

// projectPatch is the editable part of a project.
type projectPatch struct {
	ProjectTypeID int64    `json:"project_type_id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   *string  `json:"description"`
	Environments  []string `json:"environments"`
	Archived      bool     `json:"archived"`
}

func (s *projectService) Update(ctx context.Context, id int64, patch jsonpatch.Patch, modifiedBy string) (*models.Project, error) {
	project, err := s.projectRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := projectPatch{
		ProjectTypeID: project.ProjectTypeID,
		Name:          project.Name,
		Slug:          project.Slug,
		Description:   project.Description,
		Environments:  project.Environments,
		Archived:      project.Archived,
	}
	if err := applyPatch(&doc, patch); err != nil {
		return nil, err
	}

	doc.Name = strings.TrimSpace(doc.Name)
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if doc.Slug == "" {
		doc.Slug = slug.Make(doc.Name)
	}
	if doc.Slug == "" {
		return nil, fmt.Errorf("%w: slug is required", apperrors.ErrValidation)
	}
	if doc.ProjectTypeID != project.ProjectTypeID {
		if _, err := s.projectTypeRepo.Get(ctx, doc.ProjectTypeID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown project type %d", apperrors.ErrValidation, doc.ProjectTypeID)
			}
			return nil, err
		}
	}

	updated := *project
	updated.ProjectTypeID = doc.ProjectTypeID
	updated.Name = doc.Name
	updated.Slug = doc.Slug
	updated.Description = doc.Description
	updated.Environments = doc.Environments
	updated.Archived = doc.Archived
	if err := s.projectRepo.Update(ctx, &updated, modifiedBy); err != nil {
		return nil, err
	}

	s.logger.Info("Updated project",
		zap.Int64("project_id", id),
		zap.Bool("archived", updated.Archived),
		zap.String("modified_by", modifiedBy))

	refreshIndex(ctx, s.indexer, s.logger, id)
	return s.projectRepo.Get(ctx, id)
}

func (s *projectService) Delete(ctx context.Context, id int64) error {
	if err := s.projectRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deleted project", zap.Int64("project_id", id))

	if err := s.indexer.Remove(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("Failed to queue search index removal",
			zap.Int64("project_id", id),
			zap.Error(err))
	}
	return nil
}

func (s *projectService) SaveLink(ctx context.Context, projectID int64, link *models.ProjectLink) error {
	link.Title = strings.TrimSpace(link.Title)
	if link.Title == "" || link.URL == "" {
		return fmt.Errorf("%w: title and url are required", apperrors.ErrValidation)
	}
	if _, err := s.projectRepo.Get(ctx, projectID); err != nil {
		return err
	}
	if err := s.projectRepo.SaveLink(ctx, projectID, link); err != nil {
		return err
	}
	refreshIndex(ctx, s.indexer, s.logger, projectID)
	return nil
}

func (s *projectService) DeleteLink(ctx context.Context, projectID int64, title string) error {
	if err := s.projectRepo.DeleteLink(ctx, projectID, title); err != nil {
		return err
	}
	s.logger.Info("Deleted project link", zap.Int64("project_id", projectID), zap.String("title", title))
	refreshIndex(ctx, s.indexer, s.logger, projectID)
	return nil
}

func (s *projectService) SaveURL(ctx context.Context, projectID int64, u *models.ProjectURL) error {
	u.Environment = strings.TrimSpace(u.Environment)
	if u.Environment == "" || u.URL == "" {
		return fmt.Errorf("%w: environment and url are required", apperrors.ErrValidation)
	}
	if _, err := s.projectRepo.Get(ctx, projectID); err != nil {
		return err
	}
	if err := s.projectRepo.SaveURL(ctx, projectID, u); err != nil {
		return err
	}
	refreshIndex(ctx, s.indexer, s.logger, projectID)
	return nil
}

func (s *projectService) DeleteURL(ctx context.Context, projectID int64, environment string) error {
	if err := s.projectRepo.DeleteURL(ctx, projectID, environment); err != nil {
		return err
	}
	s.logger.Info("Deleted project url", zap.Int64("project_id", projectID), zap.String("environment", environment))
	refreshIndex(ctx, s.indexer, s.logger, projectID)
	return nil
}

func (s *projectService) ReindexAll(ctx context.Context) (int, error) {
	ids, err := s.projectRepo.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.indexer.Index(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to queue project %d: %w", id, err)
		}
	}

	s.logger.Info("Queued all projects for indexing", zap.Int("count", len(ids)))
	return len(ids), nil
}

var _ ProjectService = (*projectService)(nil)
