//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/ekaya-inc/scorecard/pkg/database"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/testhelpers"
)

// repoTestContext holds the repositories under test, backed by a freshly
// reset shared database.
type repoTestContext struct {
	t            *testing.T
	ctx          context.Context
	db           *database.DB
	projectTypes ProjectTypeRepository
	projects     ProjectRepository
	factTypes    FactTypeRepository
	facts        FactRepository
	integrations IntegrationRepository
	identifiers  IdentifierRepository
}

func setupRepoTest(t *testing.T) *repoTestContext {
	t.Helper()
	testDB := testhelpers.GetScorecardDB(t)
	testDB.Reset(t)

	return &repoTestContext{
		t:            t,
		ctx:          context.Background(),
		db:           testDB.DB,
		projectTypes: NewProjectTypeRepository(testDB.DB),
		projects:     NewProjectRepository(testDB.DB),
		factTypes:    NewFactTypeRepository(testDB.DB),
		facts:        NewFactRepository(testDB.DB),
		integrations: NewIntegrationRepository(testDB.DB),
		identifiers:  NewIdentifierRepository(testDB.DB),
	}
}

func (tc *repoTestContext) createProjectType(name, slug string) *models.ProjectType {
	tc.t.Helper()
	pt := &models.ProjectType{Name: name, Slug: slug, CreatedBy: "test"}
	if err := tc.projectTypes.Create(tc.ctx, pt); err != nil {
		tc.t.Fatalf("failed to create project type: %v", err)
	}
	return pt
}

func (tc *repoTestContext) createProject(projectTypeID int64, name, slug string) *models.Project {
	tc.t.Helper()
	p := &models.Project{ProjectTypeID: projectTypeID, Name: name, Slug: slug, CreatedBy: "test"}
	if err := tc.projects.Create(tc.ctx, p); err != nil {
		tc.t.Fatalf("failed to create project: %v", err)
	}
	return p
}

func (tc *repoTestContext) createFactType(name string, dataType models.DataType, kind models.FactKind, weight float64, projectTypeIDs ...int64) *models.FactType {
	tc.t.Helper()
	ft := &models.FactType{
		Name:           name,
		ProjectTypeIDs: projectTypeIDs,
		DataType:       dataType,
		FactType:       kind,
		Weight:         weight,
		CreatedBy:      "test",
	}
	if err := tc.factTypes.Create(tc.ctx, ft); err != nil {
		tc.t.Fatalf("failed to create fact type: %v", err)
	}
	return ft
}

func (tc *repoTestContext) recordFact(projectID, factTypeID int64, value string, score float64) {
	tc.t.Helper()
	err := tc.facts.Upsert(tc.ctx, &models.FactValue{
		ProjectID:  projectID,
		FactTypeID: factTypeID,
		Value:      value,
		Score:      score,
		RecordedBy: "test",
	})
	if err != nil {
		tc.t.Fatalf("failed to record fact: %v", err)
	}
}
