package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

// FactTypeHandler handles project type and fact type configuration.
type FactTypeHandler struct {
	factTypeService services.FactTypeService
	logger          *zap.Logger
}

// NewFactTypeHandler creates a new fact type handler.
func NewFactTypeHandler(factTypeService services.FactTypeService, logger *zap.Logger) *FactTypeHandler {
	return &FactTypeHandler{
		factTypeService: factTypeService,
		logger:          logger,
	}
}

// RegisterRoutes registers the fact type handler's routes on the given mux.
// Changes require adminRole.
func (h *FactTypeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, adminRole string) {
	admin := authMiddleware.RequireRole(adminRole)

	mux.HandleFunc("GET /project-types", authMiddleware.RequireAuth(h.ListProjectTypes))
	mux.HandleFunc("POST /project-types", admin(h.CreateProjectType))
	mux.HandleFunc("POST /fact-types", admin(h.Create))
	mux.HandleFunc("GET /fact-types/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /fact-types/{id}/enums", admin(h.SaveEnumOption))
	mux.HandleFunc("POST /fact-types/{id}/ranges", admin(h.AddRangeOption))
}

// ListProjectTypes handles GET /project-types
func (h *FactTypeHandler) ListProjectTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.factTypeService.ListProjectTypes(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "list project types")
		return
	}
	if types == nil {
		types = make([]*models.ProjectType, 0)
	}
	writeResponse(w, h.logger, http.StatusOK, types)
}

type createProjectTypeRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	IconClass string `json:"icon_class"`
}

// CreateProjectType handles POST /project-types
func (h *FactTypeHandler) CreateProjectType(w http.ResponseWriter, r *http.Request) {
	var req createProjectTypeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	pt := &models.ProjectType{
		Name:      req.Name,
		Slug:      req.Slug,
		IconClass: req.IconClass,
		CreatedBy: auth.IdentityFromContext(r.Context()),
	}
	if err := h.factTypeService.CreateProjectType(r.Context(), pt); err != nil {
		writeServiceError(w, h.logger, err, "create project type")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, pt)
}

type createFactTypeRequest struct {
	Name           string          `json:"name"`
	ProjectTypeIDs []int64         `json:"project_type_ids"`
	DataType       models.DataType `json:"data_type"`
	FactType       models.FactKind `json:"fact_type"`
	Description    *string         `json:"description"`
	UIOptions      []string        `json:"ui_options"`
	Weight         float64         `json:"weight"`
}

// Create handles POST /fact-types
func (h *FactTypeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFactTypeRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	ft := &models.FactType{
		Name:           req.Name,
		ProjectTypeIDs: req.ProjectTypeIDs,
		DataType:       req.DataType,
		FactType:       req.FactType,
		Description:    req.Description,
		UIOptions:      req.UIOptions,
		Weight:         req.Weight,
		CreatedBy:      auth.IdentityFromContext(r.Context()),
	}
	if err := h.factTypeService.Create(r.Context(), ft); err != nil {
		writeServiceError(w, h.logger, err, "create fact type")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, ft)
}

// Get handles GET /fact-types/{id}
func (h *FactTypeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseFactTypeID(w, r, h.logger)
	if !ok {
		return
	}
	ft, err := h.factTypeService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get fact type")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, ft)
}

type enumOptionRequest struct {
	Value     string  `json:"value"`
	IconClass *string `json:"icon_class"`
	Score     float64 `json:"score"`
}

// SaveEnumOption handles POST /fact-types/{id}/enums
func (h *FactTypeHandler) SaveEnumOption(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseFactTypeID(w, r, h.logger)
	if !ok {
		return
	}
	var req enumOptionRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	opt := &models.EnumOption{
		FactTypeID: id,
		Value:      req.Value,
		IconClass:  req.IconClass,
		Score:      req.Score,
	}
	if err := h.factTypeService.SaveEnumOption(r.Context(), opt, auth.IdentityFromContext(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "save enum option")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, opt)
}

type rangeOptionRequest struct {
	MinValue *float64 `json:"min_value"`
	MaxValue *float64 `json:"max_value"`
	Score    float64  `json:"score"`
}

// AddRangeOption handles POST /fact-types/{id}/ranges. Ranges are half-open:
// min_value is included, max_value is not.
func (h *FactTypeHandler) AddRangeOption(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseFactTypeID(w, r, h.logger)
	if !ok {
		return
	}
	var req rangeOptionRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}
	if req.MinValue == nil || req.MaxValue == nil {
		writeError(w, h.logger, http.StatusBadRequest, "validation_error", "min_value and max_value are required")
		return
	}

	opt := &models.RangeOption{
		FactTypeID: id,
		MinValue:   *req.MinValue,
		MaxValue:   *req.MaxValue,
		Score:      req.Score,
	}
	if err := h.factTypeService.AddRangeOption(r.Context(), opt, auth.IdentityFromContext(r.Context())); err != nil {
		writeServiceError(w, h.logger, err, "add range option")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, opt)
}
