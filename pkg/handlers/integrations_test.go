package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

func integrationMux(t *testing.T, integrations *mockIntegrationService, notifications *mockNotificationService) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewIntegrationHandler(integrations, notifications, zap.NewNop()).
		RegisterRoutes(mux, testAuthMiddleware(t), "admin")
	return mux
}

func TestIntegrationHandler_Notify_Post(t *testing.T) {
	projectID := int64(7)
	notifications := &mockNotificationService{result: &models.NotificationResult{
		Status:    services.StatusProcessed,
		ProjectID: &projectID,
		Updated:   []int64{1},
	}}
	body := `{"repository": {"id": 123}, "language": "Python 3.12"}`

	req := httptest.NewRequest(http.MethodPost, "/integrations/github/notifications/workflow_run/post", strings.NewReader(body))
	rec := serve(integrationMux(t, &mockIntegrationService{}, notifications), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed","project_id":7,"updated_fact_type_ids":[1]}`, rec.Body.String())

	event := notifications.event
	require.NotNil(t, event)
	assert.Equal(t, "github", event.Integration)
	assert.Equal(t, "workflow_run", event.Notification)
	assert.Equal(t, models.VerbPost, event.Verb)
	assert.Equal(t, http.MethodPost, event.Method)

	payload, ok := event.Payload.(map[string]any)
	require.True(t, ok)
	repo := payload["repository"].(map[string]any)
	assert.Equal(t, json.Number("123"), repo["id"])
}

func TestIntegrationHandler_Notify_GetReadsQuery(t *testing.T) {
	notifications := &mockNotificationService{result: &models.NotificationResult{Status: services.StatusIgnored}}

	req := httptest.NewRequest(http.MethodGet, "/integrations/ci/notifications/build/get?id=abc&status=ok&status=late", nil)
	rec := serve(integrationMux(t, &mockIntegrationService{}, notifications), req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, notifications.event)
	assert.Equal(t, models.VerbGet, notifications.event.Verb)
	assert.Equal(t, map[string]any{"id": "abc", "status": "ok"}, notifications.event.Payload)
}

func TestIntegrationHandler_Notify_DoesNotRequireAuth(t *testing.T) {
	notifications := &mockNotificationService{result: &models.NotificationResult{Status: services.StatusIgnored}}

	req := httptest.NewRequest(http.MethodPost, "/integrations/github/notifications/push/post", strings.NewReader(`{}`))
	rec := serve(integrationMux(t, &mockIntegrationService{}, notifications), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIntegrationHandler_Notify_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown verb",
			method:     http.MethodPost,
			path:       "/integrations/github/notifications/push/put",
			body:       `{}`,
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "invalid json",
			method:     http.MethodPost,
			path:       "/integrations/github/notifications/push/post",
			body:       `{"repository":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_payload",
		},
		{
			name:       "unknown notification",
			method:     http.MethodPost,
			path:       "/integrations/github/notifications/push/post",
			body:       `{}`,
			err:        fmt.Errorf("%w: notification github/push", apperrors.ErrNotFound),
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "method does not match verb",
			method:     http.MethodPut,
			path:       "/integrations/github/notifications/push/post",
			body:       `{}`,
			err:        fmt.Errorf("%w: post route called with PUT", apperrors.ErrValidation),
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "storage failure",
			method:     http.MethodPost,
			path:       "/integrations/github/notifications/push/post",
			body:       `{}`,
			err:        fmt.Errorf("write fact: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifications := &mockNotificationService{err: tt.err}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := serve(integrationMux(t, &mockIntegrationService{}, notifications), req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestIntegrationHandler_CreateNotification(t *testing.T) {
	integrations := &mockIntegrationService{}
	body := `{"name": "workflow_run", "id_pattern": "/repository/id", "default_action": "process"}`

	req := authorize(httptest.NewRequest(http.MethodPost, "/integrations/github/notifications", strings.NewReader(body)), "alice", "admin")
	rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, integrations.notification)
	assert.Equal(t, "github", integrations.notification.IntegrationName)
	assert.Equal(t, "workflow_run", integrations.notification.Name)
	assert.Equal(t, "/repository/id", integrations.notification.IDPattern)
	assert.Equal(t, models.ActionProcess, integrations.notification.DefaultAction)
	assert.Equal(t, "alice", integrations.notification.CreatedBy)
}

func TestIntegrationHandler_ConfigurationRequiresAdmin(t *testing.T) {
	paths := []string{
		"/integrations",
		"/integrations/github/notifications",
		"/integrations/github/notifications/workflow_run/rules",
		"/integrations/github/notifications/workflow_run/filters",
	}
	mux := integrationMux(t, &mockIntegrationService{}, &mockNotificationService{})

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := serve(mux, authorize(httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)), "bob"))
			assert.Equal(t, http.StatusForbidden, rec.Code)

			rec = serve(mux, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestIntegrationHandler_AddRule(t *testing.T) {
	integrations := &mockIntegrationService{}
	body := `{"fact_type_id": 1, "pattern": "/language"}`

	req := authorize(httptest.NewRequest(http.MethodPost, "/integrations/github/notifications/workflow_run/rules", strings.NewReader(body)), "alice", "admin")
	rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, &models.NotificationRule{
		IntegrationName: "github",
		Notification:    "workflow_run",
		FactTypeID:      1,
		Pattern:         "/language",
	}, integrations.rule)
}

func TestIntegrationHandler_AddFilter(t *testing.T) {
	integrations := &mockIntegrationService{}
	body := `{"name": "reject-tests", "pattern": "/test", "operation": "==", "value": "true", "action": "ignore"}`

	req := authorize(httptest.NewRequest(http.MethodPost, "/integrations/github/notifications/workflow_run/filters", strings.NewReader(body)), "alice", "admin")
	rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, &models.NotificationFilter{
		IntegrationName: "github",
		Notification:    "workflow_run",
		Name:            "reject-tests",
		Pattern:         "/test",
		Operation:       models.OpEqual,
		Value:           "true",
		Action:          models.ActionIgnore,
	}, integrations.filter)
	assert.JSONEq(t, `{"id": 0, "integration_name": "github", "notification_name": "workflow_run", "name": "reject-tests",
		"pattern": "/test", "operation": "==", "value": "true", "action": "ignore"}`, rec.Body.String())
}

func TestIntegrationHandler_PatchNotification(t *testing.T) {
	doc := "Sent when a workflow completes"
	integrations := &mockIntegrationService{notification: &models.Notification{
		IntegrationName: "github",
		Name:            "workflow_run",
		Documentation:   &doc,
	}}
	body := `[{"op": "replace", "path": "/documentation", "value": "Sent when a workflow completes"}]`

	req := authorize(httptest.NewRequest(http.MethodPatch, "/integrations/github/notifications/workflow_run", strings.NewReader(body)), "alice", "admin")
	rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, integrations.patch, 1)
	assert.Equal(t, "replace", integrations.patch[0].Kind())
	path, err := integrations.patch[0].Path()
	require.NoError(t, err)
	assert.Equal(t, "/documentation", path)
	assert.JSONEq(t, `{"name": "workflow_run", "integration_name": "github", "id_pattern": "", "default_action": "",
		"documentation": "Sent when a workflow completes", "created_at": "0001-01-01T00:00:00Z", "created_by": ""}`, rec.Body.String())
}

func TestIntegrationHandler_PatchNotification_InvalidBody(t *testing.T) {
	bodies := []string{
		`{"op": "replace"}`,
		`[{"op": "frobnicate", "path": "/documentation"}]`,
		`[{"op": "replace", "value": "x"}]`,
		`not json`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			integrations := &mockIntegrationService{}
			req := authorize(httptest.NewRequest(http.MethodPatch, "/integrations/github/notifications/workflow_run",
				strings.NewReader(body)), "alice", "admin")
			rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, integrations.patch)
		})
	}
}

func TestIntegrationHandler_GetNotification_NotFound(t *testing.T) {
	integrations := &mockIntegrationService{err: fmt.Errorf("%w: notification github/push", apperrors.ErrNotFound)}

	req := authorize(httptest.NewRequest(http.MethodGet, "/integrations/github/notifications/push", nil), "bob")
	rec := serve(integrationMux(t, integrations, &mockNotificationService{}), req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
