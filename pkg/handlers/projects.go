package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/scorecard/pkg/auth"
	"github.com/ekaya-inc/scorecard/pkg/models"
	"github.com/ekaya-inc/scorecard/pkg/services"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// ProjectHandler handles project HTTP requests.
type ProjectHandler struct {
	projectService services.ProjectService
	logger         *zap.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(projectService services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// RegisterRoutes registers the project handler's routes on the given mux.
func (h *ProjectHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, adminRole string) {
	mux.HandleFunc("GET /projects", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /projects", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /projects/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /projects/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /projects/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /projects/{id}/links", authMiddleware.RequireAuth(h.SaveLink))
	mux.HandleFunc("DELETE /projects/{id}/links/{title}", authMiddleware.RequireAuth(h.DeleteLink))
	mux.HandleFunc("POST /projects/{id}/urls", authMiddleware.RequireAuth(h.SaveURL))
	mux.HandleFunc("DELETE /projects/{id}/urls/{environment}", authMiddleware.RequireAuth(h.DeleteURL))
	mux.HandleFunc("POST /projects/search-index", authMiddleware.RequireRole(adminRole)(h.Reindex))
}

// parseSort parses a sort parameter such as "name asc,project_score desc".
// The direction defaults to ascending.
func parseSort(value string) ([]models.SortField, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	var fields []models.SortField
	for _, term := range strings.Split(value, ",") {
		parts := strings.Fields(term)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("invalid sort term %q", term)
		}
		field := models.SortField{Column: parts[0]}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				field.Descending = true
			default:
				return nil, fmt.Errorf("invalid sort direction %q", parts[1])
			}
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func parseListFilter(r *http.Request) (*models.ProjectListFilter, error) {
	q := r.URL.Query()
	filter := &models.ProjectListFilter{
		Name:            q.Get("name"),
		IncludeArchived: queryBool(r, "include_archived"),
		Limit:           defaultPageSize,
	}

	var err error
	if filter.Sort, err = parseSort(q.Get("sort")); err != nil {
		return nil, err
	}

	if v := q.Get("project_type_id"); v != "" {
		if filter.ProjectTypeID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid project_type_id %q", v)
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 1 || filter.Limit > maxPageSize {
			return nil, fmt.Errorf("limit must be between 1 and %d", maxPageSize)
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			return nil, fmt.Errorf("invalid offset %q", v)
		}
	}
	return filter, nil
}

// List handles GET /projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}

	page, err := h.projectService.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, h.logger, err, "list projects")
		return
	}
	if page.Data == nil {
		page.Data = make([]*models.Project, 0)
	}
	writeResponse(w, h.logger, http.StatusOK, page)
}

type createProjectRequest struct {
	ProjectTypeID int64    `json:"project_type_id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   *string  `json:"description"`
	Environments  []string `json:"environments"`
}

// Create handles POST /projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	project := &models.Project{
		ProjectTypeID: req.ProjectTypeID,
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Environments:  req.Environments,
		CreatedBy:     auth.IdentityFromContext(r.Context()),
	}
	if err := h.projectService.Create(r.Context(), project); err != nil {
		writeServiceError(w, h.logger, err, "create project")
		return
	}
	writeResponse(w, h.logger, http.StatusCreated, project)
}

// Get handles GET /projects/{id}. With full=true the response includes the
// project's facts, links and URLs; score-detail=true adds the score
// breakdown of every fact.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	if !queryBool(r, "full") {
		project, err := h.projectService.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, h.logger, err, "get project")
			return
		}
		writeResponse(w, h.logger, http.StatusOK, project)
		return
	}

	full, err := h.projectService.GetFull(r.Context(), id, queryBool(r, "score-detail"))
	if err != nil {
		writeServiceError(w, h.logger, err, "get project")
		return
	}
	if full.Facts == nil {
		full.Facts = make([]*models.ProjectFact, 0)
	}
	if full.Links == nil {
		full.Links = make([]*models.ProjectLink, 0)
	}
	writeResponse(w, h.logger, http.StatusOK, full)
}

// Update handles PATCH /projects/{id}. The body is a JSON Patch document
// over name, slug, project_type_id, description, environments and archived.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	patch, ok := decodePatch(w, r, h.logger)
	if !ok {
		return
	}

	project, err := h.projectService.Update(r.Context(), id, patch, auth.IdentityFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "update project")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, project)
}

// Delete handles DELETE /projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.projectService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "delete project")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveLink handles POST /projects/{id}/links
func (h *ProjectHandler) SaveLink(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	var link models.ProjectLink
	if !decodeBody(w, r, h.logger, &link) {
		return
	}
	if err := h.projectService.SaveLink(r.Context(), id, &link); err != nil {
		writeServiceError(w, h.logger, err, "save project link")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, link)
}

// DeleteLink handles DELETE /projects/{id}/links/{title}
func (h *ProjectHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.projectService.DeleteLink(r.Context(), id, r.PathValue("title")); err != nil {
		writeServiceError(w, h.logger, err, "delete project link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveURL handles POST /projects/{id}/urls
func (h *ProjectHandler) SaveURL(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	var u models.ProjectURL
	if !decodeBody(w, r, h.logger, &u) {
		return
	}
	if err := h.projectService.SaveURL(r.Context(), id, &u); err != nil {
		writeServiceError(w, h.logger, err, "save project url")
		return
	}
	writeResponse(w, h.logger, http.StatusOK, u)
}

// DeleteURL handles DELETE /projects/{id}/urls/{environment}
func (h *ProjectHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.projectService.DeleteURL(r.Context(), id, r.PathValue("environment")); err != nil {
		writeServiceError(w, h.logger, err, "delete project url")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reindex handles POST /projects/search-index
func (h *ProjectHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	count, err := h.projectService.ReindexAll(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "queue projects for indexing")
		return
	}
	writeResponse(w, h.logger, http.StatusAccepted, map[string]int{"queued": count})
}
