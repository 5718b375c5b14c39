package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/jsonutil"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/notification"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

// IntegrationHandler handles integration configuration and the inbound
// notification webhooks.
type IntegrationHandler struct {
	integrationService  services.IntegrationService
	notificationService services.NotificationService
	logger              *zap.Logger
}

// NewIntegrationHandler creates a new integration handler.
func NewIntegrationHandler(
	integrationService services.IntegrationService,
	notificationService services.NotificationService,
	logger *zap.Logger,
) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService:  integrationService,
		notificationService: notificationService,
		logger:              logger,
	}
}

// RegisterRoutes registers the integration handler's routes on the given
// mux. Configuration changes require adminRole; webhooks are public.
func (h *IntegrationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, adminRole string) {
	admin := authMiddleware.RequireRole(adminRole)
	base := "/integrations/{integration}/notifications"

	mux.HandleFunc("POST /integrations", admin(h.Create))
	mux.HandleFunc("POST "+base, admin(h.CreateNotification))
	mux.HandleFunc("GET "+base+"/{notification}", authMiddleware.RequireAuth(h.GetNotification))
	mux.HandleFunc("PATCH "+base+"/{notification}", admin(h.PatchNotification))
	mux.HandleFunc("POST "+base+"/{notification}/rules", admin(h.AddRule))
	mux.HandleFunc("POST "+base+"/{notification}/filters", admin(h.AddFilter))

	mux.HandleFunc(base+"/{notification}/{verb}", h.Notify)
}

type createIntegrationRequest struct {
	Name        string  `json:"name"`
	APIEndpoint *string `json:"api_endpoint"`
}

// Create handles POST /integrations
func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIntegrationRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	integration := &models.Integration{
		Name:        req.Name,
		APIEndpoint: req.APIEndpoint,
		CreatedBy:   auth.IdentityFromContext(r.Context()),
	}
	if err := h.integrationService.Create(r.Context(), integration); err != nil {
		writeServiceError(w, h.logger, err, "create integration")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, integration)
}

type createNotificationRequest struct {
	Name          string        `json:"name"`
	IDPattern     string        `json:"id_pattern"`
	DefaultAction models.Action `json:"default_action"`
	Documentation *string       `json:"documentation"`
}

// CreateNotification handles POST /integrations/{integration}/notifications
func (h *IntegrationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	n := &models.Notification{
		IntegrationName: r.PathValue("integration"),
		Name:            req.Name,
		IDPattern:       req.IDPattern,
		DefaultAction:   req.DefaultAction,
		Documentation:   req.Documentation,
		CreatedBy:       auth.IdentityFromContext(r.Context()),
	}
	if err := h.integrationService.CreateNotification(r.Context(), n); err != nil {
		writeServiceError(w, h.logger, err, "create notification")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, n)
}

// GetNotification handles GET /integrations/{integration}/notifications/{notification}
func (h *IntegrationHandler) GetNotification(w http.ResponseWriter, r *http.Request) {
	n, err := h.integrationService.GetNotification(r.Context(), r.PathValue("integration"), r.PathValue("notification"))
	if err != nil {
		writeServiceError(w, h.logger, err, "get notification")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, n)
}

// PatchNotification handles PATCH /integrations/{integration}/notifications/{notification}.
// The body is a JSON Patch document.
func (h *IntegrationHandler) PatchNotification(w http.ResponseWriter, r *http.Request) {
	patch, ok := decodePatch(w, r, h.logger)
	if !ok {
		return
	}

	n, err := h.integrationService.PatchNotification(r.Context(),
		r.PathValue("integration"), r.PathValue("notification"), patch, auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "update notification")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, n)
}

type addRuleRequest struct {
	FactTypeID int64  `json:"fact_type_id"`
	Pattern    string `json:"pattern"`
}

// AddRule handles POST /integrations/{integration}/notifications/{notification}/rules
func (h *IntegrationHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	var req addRuleRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	rule := &models.NotificationRule{
		IntegrationName: r.PathValue("integration"),
		Notification:    r.PathValue("notification"),
		FactTypeID:      req.FactTypeID,
		Pattern:         req.Pattern,
	}
	if err := h.integrationService.AddRule(r.Context(), rule, auth.IdentityFromContext(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "add notification rule")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, rule)
}

type addFilterRequest struct {
	Name      string           `json:"name"`
	Pattern   string           `json:"pattern"`
	Operation models.Operation `json:"operation"`
	Value     string           `json:"value"`
	Action    models.Action    `json:"action"`
}

// AddFilter handles POST /integrations/{integration}/notifications/{notification}/filters
func (h *IntegrationHandler) AddFilter(w http.ResponseWriter, r *http.Request) {
	var req addFilterRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	filter := &models.NotificationFilter{
		IntegrationName: r.PathValue("integration"),
		Notification:    r.PathValue("notification"),
		Name:            req.Name,
		Pattern:         req.Pattern,
		Operation:       req.Operation,
		Value:           req.Value,
		Action:          req.Action,
	}
	if err := h.integrationService.AddFilter(r.Context(), filter, auth.IdentityFromContext(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "add notification filter")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, filter)
}

// Notify handles /integrations/{integration}/notifications/{notification}/{verb}.
// get routes read the payload from the query string, post routes from the
// JSON body.
func (h *IntegrationHandler) Notify(w http.ResponseWriter, r *http.Request) {
	verb := models.Verb(r.PathValue("verb"))
	if verb != models.VerbGet && verb != models.VerbPost {
		writeError(w, h.logger, http.StatusNotFound, "not_found", "Unknown notification route")
		return
	}

	var payload any
	if r.Method == http.MethodGet {
		payload = notification.QueryPayload(r.URL.Query())
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_payload", "Failed to read request body")
			return
		}
		if payload, err = jsonutil.DecodePayload(body); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "invalid_payload", "Request body is not valid JSON")
			return
		}
	}

	result, err := h.notificationService.Process(r.Context(), &services.NotificationEvent{
		Integration:  r.PathValue("integration"),
		Notification: r.PathValue("notification"),
		Verb:         verb,
		Method:       r.Method,
		Payload:      payload,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "process notification")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, result)
}
