package models

import (
	"encoding/json"
	"time"

	"github.com/ekaya-inc/scorecard/pkg/jsonutil"
)

// DataType is the declared storage type of a fact value.
type DataType string

const (
	DataTypeBoolean   DataType = "boolean"
	DataTypeDate      DataType = "date"
	DataTypeDecimal   DataType = "decimal"
	DataTypeInteger   DataType = "integer"
	DataTypeTimestamp DataType = "timestamp"
	DataTypeString    DataType = "string"
)

// Valid reports whether d is a known data type.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeBoolean, DataTypeDate, DataTypeDecimal, DataTypeInteger, DataTypeTimestamp, DataTypeString:
		return true
	}
	return false
}

// Numeric reports whether values of this type can be placed in a range.
func (d DataType) Numeric() bool {
	return d == DataTypeDecimal || d == DataTypeInteger
}

// FactKind selects how a fact value is converted into a score.
type FactKind string

const (
	FactKindEnum  FactKind = "enum"
	FactKindRange FactKind = "range"
	FactKindFree  FactKind = "free"
)

// Valid reports whether k is a known fact kind.
func (k FactKind) Valid() bool {
	return k == FactKindEnum || k == FactKindRange || k == FactKindFree
}

// FactType is the definition of a fact, scoped to the project types it applies to.
// A Weight of zero excludes the fact from the project score.
type FactType struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	ProjectTypeIDs []int64   `json:"project_type_ids"`
	DataType       DataType  `json:"data_type"`
	FactType       FactKind  `json:"fact_type"`
	Description    *string   `json:"description"`
	UIOptions      []string  `json:"ui_options"`
	Weight         float64   `json:"weight"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      string    `json:"created_by"`
}

// AppliesTo reports whether the fact type is defined for projectTypeID.
func (f *FactType) AppliesTo(projectTypeID int64) bool {
	for _, id := range f.ProjectTypeIDs {
		if id == projectTypeID {
			return true
		}
	}
	return false
}

// EnumOption scores one enumerated value of an enum fact type.
type EnumOption struct {
	ID         int64   `json:"id"`
	FactTypeID int64   `json:"fact_type_id"`
	Value      string  `json:"value"`
	IconClass  *string `json:"icon_class"`
	Score      float64 `json:"score"`
}

// RangeOption scores the half-open interval [MinValue, MaxValue) of a range fact type.
type RangeOption struct {
	ID         int64   `json:"id"`
	FactTypeID int64   `json:"fact_type_id"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	Score      float64 `json:"score"`
}

// ProjectFact is a fact type applicable to a project together with the
// project's current value for it. Value is nil when nothing has been recorded.
// Score is the value stored alongside the fact when it was written.
type ProjectFact struct {
	FactTypeID int64        `json:"fact_type_id"`
	Name       string       `json:"name"`
	RecordedAt *time.Time   `json:"recorded_at"`
	RecordedBy *string      `json:"recorded_by"`
	Value      *string      `json:"value"`
	DataType   DataType     `json:"data_type"`
	FactType   FactKind     `json:"fact_type"`
	UIOptions  []string     `json:"ui_options"`
	Weight     float64      `json:"weight"`
	Score      float64      `json:"score"`
	IconClass  *string      `json:"icon_class"`
	Detail     *ScoreDetail `json:"detail,omitempty"`
}

// ScoreDetail explains how a fact contributes to the project score.
// Score and Contribution are nil for unweighted facts.
type ScoreDetail struct {
	Contribution *float64      `json:"contribution"`
	Score        *float64      `json:"score"`
	Options      []ScoreOption `json:"options"`
}

// ScoreOption is one selectable option of a fact with its score.
type ScoreOption struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Selected bool    `json:"selected"`
}

// FactUpdate is a new value for one fact of a project.
type FactUpdate struct {
	FactTypeID int64  `json:"fact_type_id"`
	Value      string `json:"value"`
}

// UnmarshalJSON accepts a JSON number or boolean as the value, so
// {"value": 82.5} records "82.5".
func (u *FactUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		FactTypeID int64           `json:"fact_type_id"`
		Value      json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.FactTypeID = raw.FactTypeID
	u.Value = jsonutil.FlexibleStringValue(raw.Value)
	return nil
}

// FactValue is the recorded value of one fact for one project.
type FactValue struct {
	ProjectID  int64     `json:"project_id"`
	FactTypeID int64     `json:"fact_type_id"`
	Value      string    `json:"value"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy string    `json:"recorded_by"`
}
