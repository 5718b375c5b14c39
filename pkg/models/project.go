// Package models contains domain types for the scorecard service.
package models

import (
	"time"
)

// ProjectType groups projects that share the same applicable fact types.
type ProjectType struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IconClass string    `json:"icon_class,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by"`
}

// Project represents a tracked software project.
type Project struct {
	ID             int64      `json:"id"`
	ProjectTypeID  int64      `json:"project_type_id"`
	ProjectType    string     `json:"project_type"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    *string    `json:"description"`
	Environments   []string   `json:"environments"`
	Archived       bool       `json:"archived"`
	CreatedAt      time.Time  `json:"created_at"`
	CreatedBy      string     `json:"created_by"`
	LastModifiedAt *time.Time `json:"last_modified_at"`
	LastModifiedBy *string    `json:"last_modified_by"`
	ProjectScore   float64    `json:"project_score"`
}

// ProjectLink is an external link shown on a project (repository, dashboard, ...).
type ProjectLink struct {
	Title     string `json:"title"`
	IconClass string `json:"icon,omitempty"`
	URL       string `json:"url"`
}

// ProjectURL is the deployment URL of a project in one environment.
type ProjectURL struct {
	Environment string `json:"environment"`
	URL         string `json:"url"`
}

// FullProject is a project with its facts, links and environment URLs.
type FullProject struct {
	*Project
	Facts []*ProjectFact    `json:"facts"`
	Links []*ProjectLink    `json:"links"`
	URLs  map[string]string `json:"urls"`
}

// ProjectListFilter narrows and orders a project collection listing.
type ProjectListFilter struct {
	Name            string
	ProjectTypeID   int64
	IncludeArchived bool
	Sort            []SortField
	Limit           int
	Offset          int
}

// SortField is one ORDER BY term of a project listing.
type SortField struct {
	Column     string
	Descending bool
}

// ProjectPage is one page of a project collection listing.
type ProjectPage struct {
	Rows int64      `json:"rows"`
	Data []*Project `json:"data"`
}

// ExternalIdentifier maps a project to its id in an integrated system.
type ExternalIdentifier struct {
	ProjectID       int64     `json:"project_id"`
	IntegrationName string    `json:"integration_name"`
	ExternalID      string    `json:"external_id"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by"`
}
