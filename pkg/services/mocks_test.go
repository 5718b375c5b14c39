package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
)

// mockProjectRepo implements repositories.ProjectRepository for testing.
type mockProjectRepo struct {
	projects map[int64]*models.Project
	links    map[int64][]*models.ProjectLink
	urls     map[int64][]*models.ProjectURL
	nextID   int64
	getErr   error
	linksErr error
}

func newMockProjectRepo(projects ...*models.Project) *mockProjectRepo {
	m := &mockProjectRepo{
		projects: make(map[int64]*models.Project),
		links:    make(map[int64][]*models.ProjectLink),
		urls:     make(map[int64][]*models.ProjectURL),
		nextID:   100,
	}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepo) Create(_ context.Context, project *models.Project) error {
	m.nextID++
	project.ID = m.nextID
	project.CreatedAt = time.Now()
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Get(_ context.Context, id int64) (*models.Project, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (m *mockProjectRepo) List(_ context.Context, _ *models.ProjectListFilter) (*models.ProjectPage, error) {
	page := &models.ProjectPage{}
	for _, p := range m.projects {
		page.Data = append(page.Data, p)
	}
	page.Rows = int64(len(page.Data))
	return page, nil
}

func (m *mockProjectRepo) ListIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(m.projects))
	for id := range m.projects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockProjectRepo) Update(_ context.Context, project *models.Project, modifiedBy string) error {
	if _, ok := m.projects[project.ID]; !ok {
		return apperrors.ErrNotFound
	}
	for _, p := range m.projects {
		if p.ID != project.ID && p.ProjectTypeID == project.ProjectTypeID && p.Slug == project.Slug {
			return apperrors.ErrConflict
		}
	}
	now := time.Now()
	project.LastModifiedAt = &now
	project.LastModifiedBy = &modifiedBy
	m.projects[project.ID] = project
	return nil
}

func (m *mockProjectRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

func (m *mockProjectRepo) GetLinks(_ context.Context, projectID int64) ([]*models.ProjectLink, error) {
	if m.linksErr != nil {
		return nil, m.linksErr
	}
	return m.links[projectID], nil
}

func (m *mockProjectRepo) SaveLink(_ context.Context, projectID int64, link *models.ProjectLink) error {
	m.links[projectID] = append(m.links[projectID], link)
	return nil
}

func (m *mockProjectRepo) DeleteLink(_ context.Context, projectID int64, title string) error {
	links := m.links[projectID]
	for i, link := range links {
		if link.Title == title {
			m.links[projectID] = append(links[:i], links[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockProjectRepo) GetURLs(_ context.Context, projectID int64) ([]*models.ProjectURL, error) {
	return m.urls[projectID], nil
}

func (m *mockProjectRepo) SaveURL(_ context.Context, projectID int64, u *models.ProjectURL) error {
	m.urls[projectID] = append(m.urls[projectID], u)
	return nil
}

func (m *mockProjectRepo) DeleteURL(_ context.Context, projectID int64, environment string) error {
	urls := m.urls[projectID]
	for i, u := range urls {
		if u.Environment == environment {
			m.urls[projectID] = append(urls[:i], urls[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockProjectTypeRepo implements repositories.ProjectTypeRepository for testing.
type mockProjectTypeRepo struct {
	types  map[int64]*models.ProjectType
	nextID int64
}

func newMockProjectTypeRepo(types ...*models.ProjectType) *mockProjectTypeRepo {
	m := &mockProjectTypeRepo{types: make(map[int64]*models.ProjectType), nextID: 10}
	for _, pt := range types {
		m.types[pt.ID] = pt
	}
	return m
}

func (m *mockProjectTypeRepo) Create(_ context.Context, projectType *models.ProjectType) error {
	m.nextID++
	projectType.ID = m.nextID
	m.types[projectType.ID] = projectType
	return nil
}

func (m *mockProjectTypeRepo) Get(_ context.Context, id int64) (*models.ProjectType, error) {
	pt, ok := m.types[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return pt, nil
}

func (m *mockProjectTypeRepo) List(_ context.Context) ([]*models.ProjectType, error) {
	out := make([]*models.ProjectType, 0, len(m.types))
	for _, pt := range m.types {
		out = append(out, pt)
	}
	return out, nil
}

// mockFactTypeRepo implements repositories.FactTypeRepository for testing.
type mockFactTypeRepo struct {
	factTypes map[int64]*models.FactType
	enums     []*models.EnumOption
	ranges    []*models.RangeOption
	nextID    int64
}

func newMockFactTypeRepo(factTypes ...*models.FactType) *mockFactTypeRepo {
	m := &mockFactTypeRepo{factTypes: make(map[int64]*models.FactType), nextID: 1000}
	for _, ft := range factTypes {
		m.factTypes[ft.ID] = ft
	}
	return m
}

func (m *mockFactTypeRepo) Create(_ context.Context, factType *models.FactType) error {
	m.nextID++
	factType.ID = m.nextID
	m.factTypes[factType.ID] = factType
	return nil
}

func (m *mockFactTypeRepo) Get(_ context.Context, id int64) (*models.FactType, error) {
	ft, ok := m.factTypes[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return ft, nil
}

func (m *mockFactTypeRepo) ListForProjectType(_ context.Context, projectTypeID int64) ([]*models.FactType, error) {
	var out []*models.FactType
	for _, ft := range m.factTypes {
		if ft.AppliesTo(projectTypeID) {
			out = append(out, ft)
		}
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (m *mockFactTypeRepo) GetEnumOptions(_ context.Context, factTypeIDs []int64) ([]*models.EnumOption, error) {
	var out []*models.EnumOption
	for _, opt := range m.enums {
		if containsID(factTypeIDs, opt.FactTypeID) {
			out = append(out, opt)
		}
	}
	return out, nil
}

func (m *mockFactTypeRepo) GetRangeOptions(_ context.Context, factTypeIDs []int64) ([]*models.RangeOption, error) {
	var out []*models.RangeOption
	for _, opt := range m.ranges {
		if containsID(factTypeIDs, opt.FactTypeID) {
			out = append(out, opt)
		}
	}
	return out, nil
}

func (m *mockFactTypeRepo) SaveEnumOption(_ context.Context, opt *models.EnumOption, _ string) error {
	for _, existing := range m.enums {
		if existing.FactTypeID == opt.FactTypeID && existing.Value == opt.Value {
			existing.Score = opt.Score
			opt.ID = existing.ID
			return nil
		}
	}
	opt.ID = int64(len(m.enums) + 1)
	m.enums = append(m.enums, opt)
	return nil
}

func (m *mockFactTypeRepo) CreateRangeOption(_ context.Context, opt *models.RangeOption, _ string) error {
	opt.ID = int64(len(m.ranges) + 1)
	m.ranges = append(m.ranges, opt)
	return nil
}

// mockFactRepo implements repositories.FactRepository for testing. Facts
// returned by the list methods are built from the fact type repository and
// the stored values.
type mockFactRepo struct {
	factTypes *mockFactTypeRepo
	projects  *mockProjectRepo
	values    map[[2]int64]*models.FactValue
	upserts   int
	upsertErr error
}

func newMockFactRepo(factTypes *mockFactTypeRepo, projects *mockProjectRepo) *mockFactRepo {
	return &mockFactRepo{
		factTypes: factTypes,
		projects:  projects,
		values:    make(map[[2]int64]*models.FactValue),
	}
}

func (m *mockFactRepo) list(projectID int64, recordedOnly bool) ([]*models.ProjectFact, error) {
	project, ok := m.projects.projects[projectID]
	if !ok {
		return nil, nil
	}

	var out []*models.ProjectFact
	for _, ft := range m.factTypes.factTypes {
		if !ft.AppliesTo(project.ProjectTypeID) {
			continue
		}
		f := &models.ProjectFact{
			FactTypeID: ft.ID,
			Name:       ft.Name,
			DataType:   ft.DataType,
			FactType:   ft.FactType,
			Weight:     ft.Weight,
		}
		if fv, ok := m.values[[2]int64{projectID, ft.ID}]; ok {
			value, by, at := fv.Value, fv.RecordedBy, fv.RecordedAt
			f.Value, f.RecordedBy, f.RecordedAt = &value, &by, &at
			f.Score = fv.Score
		} else if recordedOnly {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockFactRepo) ListForProject(_ context.Context, projectID int64) ([]*models.ProjectFact, error) {
	return m.list(projectID, false)
}

func (m *mockFactRepo) ListRecorded(_ context.Context, projectID int64) ([]*models.ProjectFact, error) {
	return m.list(projectID, true)
}

func (m *mockFactRepo) ListByFactType(_ context.Context, factTypeID int64) ([]*models.FactValue, error) {
	var out []*models.FactValue
	for key, fv := range m.values {
		if key[1] == factTypeID {
			out = append(out, fv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (m *mockFactRepo) Upsert(_ context.Context, value *models.FactValue) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	value.RecordedAt = time.Now()
	stored := *value
	m.values[[2]int64{value.ProjectID, value.FactTypeID}] = &stored
	return nil
}

func (m *mockFactRepo) UpdateScore(_ context.Context, projectID, factTypeID int64, score float64) error {
	fv, ok := m.values[[2]int64{projectID, factTypeID}]
	if !ok {
		return apperrors.ErrNotFound
	}
	fv.Score = score
	return nil
}

// mockIdentifierRepo implements repositories.IdentifierRepository for testing.
type mockIdentifierRepo struct {
	identifiers []*models.ExternalIdentifier
}

func (m *mockIdentifierRepo) Create(_ context.Context, identifier *models.ExternalIdentifier) error {
	for _, existing := range m.identifiers {
		if existing.IntegrationName == identifier.IntegrationName && existing.ExternalID == identifier.ExternalID {
			return fmt.Errorf("%w: identifier already registered", apperrors.ErrConflict)
		}
	}
	m.identifiers = append(m.identifiers, identifier)
	return nil
}

func (m *mockIdentifierRepo) ListForProject(_ context.Context, projectID int64) ([]*models.ExternalIdentifier, error) {
	var out []*models.ExternalIdentifier
	for _, id := range m.identifiers {
		if id.ProjectID == projectID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockIdentifierRepo) Resolve(_ context.Context, integrationName, externalID string) (*models.ExternalIdentifier, error) {
	for _, id := range m.identifiers {
		if id.IntegrationName == integrationName && id.ExternalID == externalID {
			return id, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// mockIntegrationRepo implements repositories.IntegrationRepository for testing.
type mockIntegrationRepo struct {
	factTypes     *mockFactTypeRepo
	integrations  map[string]*models.Integration
	notifications map[[2]string]*models.Notification
	rules         []*models.NotificationRule
	filters       []*models.NotificationFilter
	modifiedBy    string
}

func newMockIntegrationRepo(factTypes *mockFactTypeRepo) *mockIntegrationRepo {
	return &mockIntegrationRepo{
		factTypes:     factTypes,
		integrations:  make(map[string]*models.Integration),
		notifications: make(map[[2]string]*models.Notification),
	}
}

func (m *mockIntegrationRepo) Create(_ context.Context, integration *models.Integration) error {
	if _, ok := m.integrations[integration.Name]; ok {
		return apperrors.ErrConflict
	}
	m.integrations[integration.Name] = integration
	return nil
}

func (m *mockIntegrationRepo) Get(_ context.Context, name string) (*models.Integration, error) {
	i, ok := m.integrations[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return i, nil
}

func (m *mockIntegrationRepo) CreateNotification(_ context.Context, n *models.Notification) error {
	key := [2]string{n.IntegrationName, n.Name}
	if _, ok := m.notifications[key]; ok {
		return apperrors.ErrConflict
	}
	m.notifications[key] = n
	return nil
}

func (m *mockIntegrationRepo) GetNotification(_ context.Context, integrationName, name string) (*models.Notification, error) {
	n, ok := m.notifications[[2]string{integrationName, name}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *mockIntegrationRepo) UpdateNotification(_ context.Context, n *models.Notification, modifiedBy string) error {
	key := [2]string{n.IntegrationName, n.Name}
	if _, ok := m.notifications[key]; !ok {
		return apperrors.ErrNotFound
	}
	m.notifications[key] = n
	m.modifiedBy = modifiedBy
	return nil
}

func (m *mockIntegrationRepo) CreateRule(_ context.Context, rule *models.NotificationRule, _ string) error {
	rule.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockIntegrationRepo) ListRules(_ context.Context, integrationName, notificationName string, projectTypeID int64) ([]*models.NotificationRule, error) {
	var out []*models.NotificationRule
	for _, r := range m.rules {
		if r.IntegrationName != integrationName || r.Notification != notificationName {
			continue
		}
		ft, ok := m.factTypes.factTypes[r.FactTypeID]
		if !ok || !ft.AppliesTo(projectTypeID) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockIntegrationRepo) CreateFilter(_ context.Context, filter *models.NotificationFilter, _ string) error {
	filter.ID = int64(len(m.filters) + 1)
	m.filters = append(m.filters, filter)
	return nil
}

func (m *mockIntegrationRepo) ListFilters(_ context.Context, integrationName, notificationName string) ([]*models.NotificationFilter, error) {
	var out []*models.NotificationFilter
	for _, f := range m.filters {
		if f.IntegrationName == integrationName && f.Notification == notificationName {
			out = append(out, f)
		}
	}
	return out, nil
}

// mockTransactor runs the function without a transaction.
type mockTransactor struct {
	calls int
}

func (m *mockTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

// mockIndexer records queued search index requests.
type mockIndexer struct {
	mu      sync.Mutex
	indexed []int64
	removed []int64
	err     error
}

func (m *mockIndexer) Index(_ context.Context, projectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.indexed = append(m.indexed, projectID)
	return nil
}

func (m *mockIndexer) Remove(_ context.Context, projectID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, projectID)
	return nil
}

const (
	apiProjectType      int64 = 1
	consumerProjectType int64 = 2

	factLanguage int64 = 1
	factCoverage int64 = 2
	factHasCI    int64 = 3
	factNotes    int64 = 4
	factLag      int64 = 5

	billingAPI     int64 = 7
	ordersConsumer int64 = 8
)

// testFixture wires the services over in-memory repositories seeded with
// two project types, their fact types and one project of each type.
type testFixture struct {
	projects     *mockProjectRepo
	projectTypes *mockProjectTypeRepo
	factTypes    *mockFactTypeRepo
	facts        *mockFactRepo
	identifiers  *mockIdentifierRepo
	integrations *mockIntegrationRepo
	tx           *mockTransactor
	indexer      *mockIndexer

	factService         FactService
	projectService      ProjectService
	factTypeService     FactTypeService
	integrationService  IntegrationService
	notificationService NotificationService
}

func newTestFixture() *testFixture {
	f := &testFixture{
		projects: newMockProjectRepo(
			&models.Project{ID: billingAPI, ProjectTypeID: apiProjectType, Name: "Billing API", Slug: "billing-api"},
			&models.Project{ID: ordersConsumer, ProjectTypeID: consumerProjectType, Name: "Orders Consumer", Slug: "orders-consumer"},
		),
		projectTypes: newMockProjectTypeRepo(
			&models.ProjectType{ID: apiProjectType, Name: "API", Slug: "api"},
			&models.ProjectType{ID: consumerProjectType, Name: "Consumer", Slug: "consumer"},
		),
		factTypes: newMockFactTypeRepo(
			&models.FactType{ID: factLanguage, Name: "Programming Language", ProjectTypeIDs: []int64{apiProjectType, consumerProjectType},
				DataType: models.DataTypeString, FactType: models.FactKindEnum, Weight: 20},
			&models.FactType{ID: factCoverage, Name: "Test Coverage", ProjectTypeIDs: []int64{apiProjectType},
				DataType: models.DataTypeDecimal, FactType: models.FactKindRange, Weight: 30},
			&models.FactType{ID: factHasCI, Name: "Has CI", ProjectTypeIDs: []int64{apiProjectType},
				DataType: models.DataTypeBoolean, FactType: models.FactKindFree, Weight: 50},
			&models.FactType{ID: factNotes, Name: "Notes", ProjectTypeIDs: []int64{apiProjectType},
				DataType: models.DataTypeString, FactType: models.FactKindFree},
			&models.FactType{ID: factLag, Name: "Consumer Lag", ProjectTypeIDs: []int64{consumerProjectType},
				DataType: models.DataTypeInteger, FactType: models.FactKindFree, Weight: 10},
		),
		identifiers: &mockIdentifierRepo{},
		tx:          &mockTransactor{},
		indexer:     &mockIndexer{},
	}
	f.factTypes.enums = []*models.EnumOption{
		{ID: 1, FactTypeID: factLanguage, Value: "Python 3.12", Score: 100},
		{ID: 2, FactTypeID: factLanguage, Value: "Python 3.9", Score: 25},
	}
	f.factTypes.ranges = []*models.RangeOption{
		{ID: 1, FactTypeID: factCoverage, MinValue: 0, MaxValue: 75, Score: 25},
		{ID: 2, FactTypeID: factCoverage, MinValue: 75, MaxValue: 90, Score: 75},
		{ID: 3, FactTypeID: factCoverage, MinValue: 90, MaxValue: 100.1, Score: 100},
	}
	f.facts = newMockFactRepo(f.factTypes, f.projects)
	f.integrations = newMockIntegrationRepo(f.factTypes)

	logger := zap.NewNop()
	f.factService = NewFactService(f.facts, f.factTypes, f.projects, f.tx, f.indexer, logger)
	f.projectService = NewProjectService(f.projects, f.projectTypes, f.factService, f.indexer, logger)
	f.factTypeService = NewFactTypeService(f.factTypes, f.projectTypes, f.factService, f.tx, f.indexer, logger)
	f.integrationService = NewIntegrationService(f.integrations, f.identifiers, f.projects, f.factTypes, logger)
	f.notificationService = NewNotificationService(f.integrations, f.identifiers, f.projects, f.factService, f.indexer, "integration:", logger)
	return f
}

// withGitHub registers the github integration with a workflow_run
// notification that ignores test payloads and maps /language, /coverage and
// /lag to fact values.
func (f *testFixture) withGitHub() *testFixture {
	f.integrations.integrations["github"] = &models.Integration{Name: "github"}
	f.integrations.notifications[[2]string{"github", "workflow_run"}] = &models.Notification{
		IntegrationName: "github",
		Name:            "workflow_run",
		IDPattern:       "/repository/id",
		DefaultAction:   models.ActionProcess,
	}
	f.integrations.filters = []*models.NotificationFilter{
		{ID: 1, IntegrationName: "github", Notification: "workflow_run", Name: "skip-tests",
			Pattern: "/test", Operation: models.OpEqual, Value: "true", Action: models.ActionIgnore},
	}
	f.integrations.rules = []*models.NotificationRule{
		{ID: 1, IntegrationName: "github", Notification: "workflow_run", FactTypeID: factLanguage, Pattern: "/language"},
		{ID: 2, IntegrationName: "github", Notification: "workflow_run", FactTypeID: factCoverage, Pattern: "/coverage"},
		{ID: 3, IntegrationName: "github", Notification: "workflow_run", FactTypeID: factLag, Pattern: "/lag"},
	}
	f.identifiers.identifiers = []*models.ExternalIdentifier{
		{ProjectID: billingAPI, IntegrationName: "github", ExternalID: "123"},
		{ProjectID: ordersConsumer, IntegrationName: "github", ExternalID: "456"},
	}
	return f
}

func (f *testFixture) storedValue(projectID, factTypeID int64) (*models.FactValue, bool) {
	fv, ok := f.facts.values[[2]int64{projectID, factTypeID}]
	return fv, ok
}
