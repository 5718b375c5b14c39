package handlers

import (
	"context"
	"net/http"
	"testing"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/services"
	"github.com/ekaya-inc/scorecard/pkg/testhelpers"
)

// mockProjectService is a configurable mock for project handler tests.
type mockProjectService struct {
	project  *models.Project
	full     *models.FullProject
	page     *models.ProjectPage
	queued   int
	err      error
	created  *models.Project
	filter   *models.ProjectListFilter
	detail   bool
	deleted  int64
	savedURL *models.ProjectURL
	patch    jsonpatch.Patch
	updateBy string
	removed  [2]string
}

func (m *mockProjectService) Create(_ context.Context, project *models.Project) error {
	if m.err != nil {
		return m.err
	}
	project.ID = 42
	m.created = project
	return nil
}

func (m *mockProjectService) Get(_ context.Context, id int64) (*models.Project, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.project, nil
}

func (m *mockProjectService) GetFull(_ context.Context, id int64, scoreDetail bool) (*models.FullProject, error) {
	m.detail = scoreDetail
	if m.err != nil {
		return nil, m.err
	}
	return m.full, nil
}

func (m *mockProjectService) List(_ context.Context, filter *models.ProjectListFilter) (*models.ProjectPage, error) {
	m.filter = filter
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return &models.ProjectPage{}, nil
	}
	return m.page, nil
}

func (m *mockProjectService) Delete(_ context.Context, id int64) error {
	m.deleted = id
	return m.err
}

func (m *mockProjectService) Update(_ context.Context, id int64, patch jsonpatch.Patch, modifiedBy string) (*models.Project, error) {
	m.patch = patch
	m.updateBy = modifiedBy
	if m.err != nil {
		return nil, m.err
	}
	return m.project, nil
}

func (m *mockProjectService) DeleteLink(_ context.Context, projectID int64, title string) error {
	m.removed = [2]string{"link", title}
	return m.err
}

func (m *mockProjectService) DeleteURL(_ context.Context, projectID int64, environment string) error {
	m.removed = [2]string{"url", environment}
	return m.err
}

func (m *mockProjectService) SaveLink(_ context.Context, projectID int64, link *models.ProjectLink) error {
	return m.err
}

func (m *mockProjectService) SaveURL(_ context.Context, projectID int64, u *models.ProjectURL) error {
	m.savedURL = u
	return m.err
}

func (m *mockProjectService) ReindexAll(_ context.Context) (int, error) {
	return m.queued, m.err
}

// mockFactService is a configurable mock for fact handler tests.
type mockFactService struct {
	facts      []*models.ProjectFact
	values     []*models.FactValue
	err        error
	updates    []models.FactUpdate
	recordedBy string
}

func (m *mockFactService) List(_ context.Context, projectID int64, detail bool) ([]*models.ProjectFact, error) {
	return m.facts, m.err
}

func (m *mockFactService) ListRecorded(_ context.Context, projectID int64) ([]*models.ProjectFact, error) {
	return m.facts, m.err
}

func (m *mockFactService) Record(_ context.Context, projectID int64, updates []models.FactUpdate, recordedBy string) ([]*models.FactValue, error) {
	m.updates = updates
	m.recordedBy = recordedBy
	return m.values, m.err
}

func (m *mockFactService) RecordValue(_ context.Context, project *models.Project, factTypeID int64, value, recordedBy string) (*models.FactValue, error) {
	return nil, m.err
}

func (m *mockFactService) Rescore(_ context.Context, factTypeID int64) ([]int64, error) {
	return nil, m.err
}

// mockFactTypeService is a configurable mock for fact type handler tests.
type mockFactTypeService struct {
	factType  *models.FactType
	err       error
	createdBy string
	rangeOpt  *models.RangeOption
}

func (m *mockFactTypeService) CreateProjectType(_ context.Context, projectType *models.ProjectType) error {
	projectType.ID = 3
	return m.err
}

func (m *mockFactTypeService) ListProjectTypes(_ context.Context) ([]*models.ProjectType, error) {
	return nil, m.err
}

func (m *mockFactTypeService) Create(_ context.Context, factType *models.FactType) error {
	if m.err != nil {
		return m.err
	}
	factType.ID = 7
	m.createdBy = factType.CreatedBy
	return nil
}

func (m *mockFactTypeService) Get(_ context.Context, id int64) (*models.FactType, error) {
	return m.factType, m.err
}

func (m *mockFactTypeService) SaveEnumOption(_ context.Context, opt *models.EnumOption, createdBy string) error {
	m.createdBy = createdBy
	return m.err
}

func (m *mockFactTypeService) AddRangeOption(_ context.Context, opt *models.RangeOption, createdBy string) error {
	m.rangeOpt = opt
	m.createdBy = createdBy
	return m.err
}

// mockIntegrationService is a configurable mock for integration handler tests.
type mockIntegrationService struct {
	notification *models.Notification
	identifiers  []*models.ExternalIdentifier
	err          error
	patch        jsonpatch.Patch
	rule         *models.NotificationRule
	filter       *models.NotificationFilter
	identifier   *models.ExternalIdentifier
}

func (m *mockIntegrationService) Create(_ context.Context, integration *models.Integration) error {
	return m.err
}

func (m *mockIntegrationService) CreateNotification(_ context.Context, n *models.Notification) error {
	m.notification = n
	return m.err
}

func (m *mockIntegrationService) GetNotification(_ context.Context, integrationName, name string) (*models.Notification, error) {
	return m.notification, m.err
}

func (m *mockIntegrationService) PatchNotification(_ context.Context, integrationName, name string, patch jsonpatch.Patch, modifiedBy string) (*models.Notification, error) {
	m.patch = patch
	return m.notification, m.err
}

func (m *mockIntegrationService) AddRule(_ context.Context, rule *models.NotificationRule, createdBy string) error {
	m.rule = rule
	return m.err
}

func (m *mockIntegrationService) AddFilter(_ context.Context, filter *models.NotificationFilter, createdBy string) error {
	m.filter = filter
	return m.err
}

func (m *mockIntegrationService) AddIdentifier(_ context.Context, identifier *models.ExternalIdentifier) error {
	m.identifier = identifier
	return m.err
}

func (m *mockIntegrationService) ListIdentifiers(_ context.Context, projectID int64) ([]*models.ExternalIdentifier, error) {
	return m.identifiers, m.err
}

// mockNotificationService records the last processed event.
type mockNotificationService struct {
	result *models.NotificationResult
	err    error
	event  *services.NotificationEvent
}

func (m *mockNotificationService) Process(_ context.Context, event *services.NotificationEvent) (*models.NotificationResult, error) {
	m.event = event
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// testAuthMiddleware accepts unsigned tokens, as a local deployment does.
func testAuthMiddleware(t *testing.T) *auth.Middleware {
	t.Helper()
	client, err := auth.NewJWKSClient(&auth.JWKSConfig{Audience: "scorecard"})
	if err != nil {
		t.Fatalf("NewJWKSClient failed: %v", err)
	}
	t.Cleanup(client.Close)
	return auth.NewMiddleware(auth.NewAuthService(client, zap.NewNop()), zap.NewNop())
}

// authorize adds a bearer token for username with roles to req.
func authorize(req *http.Request, username string, roles ...string) *http.Request {
	req.Header.Set("Authorization", testhelpers.GenerateTestJWTWithBearer(username, roles...))
	return req
}
