package models

import (
	"time"
)

// Action is the outcome of evaluating notification filters.
type Action string

const (
	ActionProcess Action = "process"
	ActionIgnore  Action = "ignore"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionProcess || a == ActionIgnore
}

// Operation compares a payload value with a filter value.
type Operation string

const (
	OpEqual        Operation = "=="
	OpNotEqual     Operation = "!="
	OpLess         Operation = "<"
	OpLessEqual    Operation = "<="
	OpGreater      Operation = ">"
	OpGreaterEqual Operation = ">="
)

// Valid reports whether op is a supported operation.
func (op Operation) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Integration is an external system that can send notifications.
type Integration struct {
	Name        string    `json:"name"`
	APIEndpoint *string   `json:"api_endpoint"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}

// Verb is the HTTP method a notification is delivered with.
type Verb string

const (
	VerbGet  Verb = "get"
	VerbPost Verb = "post"
)

// Notification is a webhook endpoint configured for an integration.
// IDPattern points at the external project identifier in the payload.
type Notification struct {
	IntegrationName string    `json:"integration_name"`
	Name            string    `json:"name"`
	IDPattern       string    `json:"id_pattern"`
	DefaultAction   Action    `json:"default_action"`
	Documentation   *string   `json:"documentation"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by"`
}

// NotificationRule records the payload value at Pattern as the fact FactTypeID.
type NotificationRule struct {
	ID              int64  `json:"id"`
	IntegrationName string `json:"integration_name"`
	Notification    string `json:"notification_name"`
	FactTypeID      int64  `json:"fact_type_id"`
	Pattern         string `json:"pattern"`
}

// NotificationFilter decides whether a notification is processed.
// Filters are evaluated in ID order; the first match wins.
type NotificationFilter struct {
	ID              int64     `json:"id"`
	IntegrationName string    `json:"integration_name"`
	Notification    string    `json:"notification_name"`
	Name            string    `json:"name"`
	Pattern         string    `json:"pattern"`
	Operation       Operation `json:"operation"`
	Value           string    `json:"value"`
	Action          Action    `json:"action"`
}

// NotificationResult summarizes what processing a notification did.
type NotificationResult struct {
	Status    string  `json:"status"`
	Reason    string  `json:"reason,omitempty"`
	ProjectID *int64  `json:"project_id,omitempty"`
	Updated   []int64 `json:"updated_fact_type_ids"`
}
