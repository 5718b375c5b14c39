package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
)

func TestProjectService_Create_DerivesSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Billing API", "billing-api"},
		{"  Orders -- Consumer v2 ", "orders-consumer-v2"},
		{"Café Tools", "cafe-tools"},
		{"Hellö Wörld", "hello-world"},
		{"影師", "ying-shi"},
		{"Search & Index", "search-and-index"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixture()
			project := &models.Project{Name: tt.name, ProjectTypeID: apiProjectType}
			require.NoError(t, f.projectService.Create(context.Background(), project))
			assert.Equal(t, tt.want, project.Slug)
		})
	}
}

func TestProjectService_Create_KeepsGivenSlug(t *testing.T) {
	f := newTestFixture()
	project := &models.Project{Name: "Billing API v2", Slug: "billing", ProjectTypeID: apiProjectType}
	require.NoError(t, f.projectService.Create(context.Background(), project))
	assert.Equal(t, "billing", project.Slug)
}

func TestProjectService_Create_UnsluggableName(t *testing.T) {
	f := newTestFixture()
	err := f.projectService.Create(context.Background(), &models.Project{Name: "!!!", ProjectTypeID: apiProjectType})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "slug is required")
}

func TestProjectService_Create(t *testing.T) {
	f := newTestFixture()

	project := &models.Project{Name: " Payments Gateway ", ProjectTypeID: apiProjectType, CreatedBy: "alice"}
	require.NoError(t, f.projectService.Create(context.Background(), project))

	assert.NotZero(t, project.ID)
	assert.Equal(t, "Payments Gateway", project.Name)
	assert.Equal(t, "payments-gateway", project.Slug)
	assert.Equal(t, "API", project.ProjectType)
	assert.Equal(t, []int64{project.ID}, f.indexer.indexed)
}

func TestProjectService_Create_Validation(t *testing.T) {
	f := newTestFixture()

	err := f.projectService.Create(context.Background(), &models.Project{Name: "  ", ProjectTypeID: apiProjectType})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.projectService.Create(context.Background(), &models.Project{Name: "Orphan", ProjectTypeID: 99})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "unknown project type")
}

func TestProjectService_GetFull(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	require.NoError(t, f.projectService.SaveLink(ctx, billingAPI, &models.ProjectLink{Title: "Repository", URL: "https://github.com/acme/billing"}))
	require.NoError(t, f.projectService.SaveURL(ctx, billingAPI, &models.ProjectURL{Environment: "production", URL: "https://billing.acme.com"}))
	_, err := f.factService.Record(ctx, billingAPI, []models.FactUpdate{{FactTypeID: factHasCI, Value: "true"}}, "alice")
	require.NoError(t, err)

	full, err := f.projectService.GetFull(ctx, billingAPI, false)
	require.NoError(t, err)

	assert.Equal(t, "Billing API", full.Name)
	assert.Len(t, full.Facts, 4)
	require.Len(t, full.Links, 1)
	assert.Equal(t, "Repository", full.Links[0].Title)
	assert.Equal(t, map[string]string{"production": "https://billing.acme.com"}, full.URLs)
	for _, fact := range full.Facts {
		assert.Nil(t, fact.Detail)
	}
}

func TestProjectService_GetFull_AnyFailureFailsRead(t *testing.T) {
	t.Run("project not found", func(t *testing.T) {
		f := newTestFixture()
		_, err := f.projectService.GetFull(context.Background(), 999, true)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("links query fails", func(t *testing.T) {
		f := newTestFixture()
		f.projects.linksErr = errors.New("connection reset")
		_, err := f.projectService.GetFull(context.Background(), billingAPI, false)
		assert.EqualError(t, err, "connection reset")
	})
}

func TestProjectService_GetFull_WarnsOnScoreMismatch(t *testing.T) {
	f := newTestFixture()
	core, logs := observer.New(zap.WarnLevel)
	svc := NewProjectService(f.projects, f.projectTypes, f.factService, f.indexer, zap.New(core))
	ctx := context.Background()

	_, err := f.factService.Record(ctx, billingAPI, []models.FactUpdate{{FactTypeID: factHasCI, Value: "true"}}, "alice")
	require.NoError(t, err)

	f.projects.projects[billingAPI].ProjectScore = 50
	_, err = svc.GetFull(ctx, billingAPI, true)
	require.NoError(t, err)
	assert.Equal(t, 0, logs.Len())

	f.projects.projects[billingAPI].ProjectScore = 42
	_, err = svc.GetFull(ctx, billingAPI, true)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Fact contributions differ from project score", logs.All()[0].Message)
}

func TestProjectService_Delete(t *testing.T) {
	f := newTestFixture()

	require.NoError(t, f.projectService.Delete(context.Background(), billingAPI))
	assert.Equal(t, []int64{billingAPI}, f.indexer.removed)

	err := f.projectService.Delete(context.Background(), billingAPI)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProjectService_SaveLink_Validation(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()

	err := f.projectService.SaveLink(ctx, billingAPI, &models.ProjectLink{Title: "Docs"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = f.projectService.SaveLink(ctx, 999, &models.ProjectLink{Title: "Docs", URL: "https://docs"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = f.projectService.SaveURL(ctx, billingAPI, &models.ProjectURL{URL: "https://x"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProjectService_ReindexAll(t *testing.T) {
	f := newTestFixture()

	count, err := f.projectService.ReindexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []int64{billingAPI, ordersConsumer}, f.indexer.indexed)

	f.indexer.err = errors.New("queue full")
	_, err = f.projectService.ReindexAll(context.Background())
	assert.ErrorContains(t, err, "queue full")
}

func TestProjectService_Update(t *testing.T) {
	f := newTestFixture()

	project, err := f.projectService.Update(context.Background(), billingAPI, decodePatch(t, `[
		{"op": "replace", "path": "/name", "value": "Billing Service"},
		{"op": "replace", "path": "/archived", "value": true},
		{"op": "add", "path": "/environments", "value": ["staging", "production"]}
	]`), "bob")
	require.NoError(t, err)

	assert.Equal(t, "Billing Service", project.Name)
	assert.Equal(t, "billing-api", project.Slug)
	assert.True(t, project.Archived)
	assert.Equal(t, []string{"staging", "production"}, project.Environments)
	require.NotNil(t, project.LastModifiedBy)
	assert.Equal(t, "bob", *project.LastModifiedBy)
	assert.Equal(t, []int64{billingAPI}, f.indexer.indexed)
}

func TestProjectService_Update_RederivesRemovedSlug(t *testing.T) {
	f := newTestFixture()

	project, err := f.projectService.Update(context.Background(), billingAPI, decodePatch(t, `[
		{"op": "replace", "path": "/name", "value": "Café Billing"},
		{"op": "replace", "path": "/slug", "value": ""}
	]`), "bob")
	require.NoError(t, err)
	assert.Equal(t, "cafe-billing", project.Slug)
}

func TestProjectService_Update_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		id      int64
		body    string
		wantErr error
	}{
		{"unknown project", 999, `[{"op": "replace", "path": "/archived", "value": true}]`, apperrors.ErrNotFound},
		{"blank name", billingAPI, `[{"op": "replace", "path": "/name", "value": "  "}]`, apperrors.ErrValidation},
		{"unknown project type", billingAPI, `[{"op": "replace", "path": "/project_type_id", "value": 99}]`, apperrors.ErrValidation},
		{"read only field", billingAPI, `[{"op": "add", "path": "/project_score", "value": 100}]`, apperrors.ErrValidation},
		{"wrong value type", billingAPI, `[{"op": "replace", "path": "/archived", "value": "yes"}]`, apperrors.ErrValidation},
		{"failed test", billingAPI, `[{"op": "test", "path": "/archived", "value": true}]`, apperrors.ErrConflict},
		{"duplicate slug", ordersConsumer, `[{"op": "replace", "path": "/project_type_id", "value": 1},
			{"op": "replace", "path": "/slug", "value": "billing-api"}]`, apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFixture()

			_, err := f.projectService.Update(context.Background(), tt.id, decodePatch(t, tt.body), "bob")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.indexer.indexed)
		})
	}
}

func TestProjectService_DeleteLinkAndURL(t *testing.T) {
	f := newTestFixture()
	ctx := context.Background()
	require.NoError(t, f.projectService.SaveLink(ctx, billingAPI, &models.ProjectLink{Title: "Repository", URL: "https://git.example.com/billing"}))
	require.NoError(t, f.projectService.SaveURL(ctx, billingAPI, &models.ProjectURL{Environment: "production", URL: "https://billing.example.com"}))
	f.indexer.indexed = nil

	require.NoError(t, f.projectService.DeleteLink(ctx, billingAPI, "Repository"))
	require.NoError(t, f.projectService.DeleteURL(ctx, billingAPI, "production"))

	assert.Empty(t, f.projects.links[billingAPI])
	assert.Empty(t, f.projects.urls[billingAPI])
	assert.Equal(t, []int64{billingAPI, billingAPI}, f.indexer.indexed)

	assert.ErrorIs(t, f.projectService.DeleteLink(ctx, billingAPI, "Repository"), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.projectService.DeleteURL(ctx, billingAPI, "production"), apperrors.ErrNotFound)
	assert.Len(t, f.indexer.indexed, 2)
}
