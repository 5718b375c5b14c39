package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

// FactHandler handles the fact values and external identifiers of a project.
type FactHandler struct {
	factService        services.FactService
	integrationService services.IntegrationService
	logger             *zap.Logger
}

// NewFactHandler creates a new fact handler.
func NewFactHandler(factService services.FactService, integrationService services.IntegrationService, logger *zap.Logger) *FactHandler {
	return &FactHandler{
		factService:        factService,
		integrationService: integrationService,
		logger:             logger,
	}
}

// RegisterRoutes registers the fact handler's routes on the given mux.
func (h *FactHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /projects/{id}/facts", authMiddleware.RequireAuth(h.ListFacts))
	mux.HandleFunc("POST /projects/{id}/facts", authMiddleware.RequireAuth(h.RecordFacts))
	mux.HandleFunc("GET /projects/{id}/identifiers", authMiddleware.RequireAuth(h.ListIdentifiers))
	mux.HandleFunc("POST /projects/{id}/identifiers", authMiddleware.RequireAuth(h.AddIdentifier))
}

// ListFacts handles GET /projects/{id}/facts. Only facts with a recorded
// value are returned.
func (h *FactHandler) ListFacts(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	facts, err := h.factService.ListRecorded(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "list project facts")
		return
	}
	if facts == nil {
		facts = make([]*models.ProjectFact, 0)
	}
	writeResponse(w, h.logger, http.StatusOK, facts)
}

// RecordFacts handles POST /projects/{id}/facts. The body is a list of
// {fact_type_id, value} objects written in one transaction.
func (h *FactHandler) RecordFacts(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var updates []models.FactUpdate
	if !decodeBody(w, r, h.logger, &updates) {
		return
	}

	values, err := h.factService.Record(r.Context(), id, updates, auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "record project facts")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, values)
}

// ListIdentifiers handles GET /projects/{id}/identifiers
func (h *FactHandler) ListIdentifiers(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	identifiers, err := h.integrationService.ListIdentifiers(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "list project identifiers")
		return
	}
	if identifiers == nil {
		identifiers = make([]*models.ExternalIdentifier, 0)
	}
	writeResponse(w, h.logger, http.StatusOK, identifiers)
}

type addIdentifierRequest struct {
	IntegrationName string `json:"integration_name"`
	ExternalID      string `json:"external_id"`
}

// AddIdentifier handles POST /projects/{id}/identifiers
func (h *FactHandler) AddIdentifier(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req addIdentifierRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	identifier := &models.ExternalIdentifier{
		ProjectID:       id,
		IntegrationName: req.IntegrationName,
		ExternalID:      req.ExternalID,
		CreatedBy:       auth.IdentityFromContext(r.Context()),
	}
	if err := h.integrationService.AddIdentifier(r.Context(), identifier); err != nil {
		writeServiceError(w, h.logger, err, "add project identifier")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, identifier)
}
