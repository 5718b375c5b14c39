// Package scoring converts stored fact values into scores and explains how
// each fact contributes to a project's weighted score.
package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

// CoercionError reports a stored fact value that cannot be read as its
// declared data type.
type CoercionError struct {
	FactTypeID int64
	Name       string
	DataType   models.DataType
	Value      string
	Err        error
}

func (e *CoercionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("fact %q (%d): cannot read %q as %s: %v", e.Name, e.FactTypeID, e.Value, e.DataType, e.Err)
	}
	return fmt.Sprintf("cannot read %q as %s: %v", e.Value, e.DataType, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// Coerce converts a raw stored value to bool, float64, int64 or string
// according to dataType. Empty numeric values read as zero and a missing
// boolean reads as false. Other types pass through; nil stays nil.
func Coerce(raw *string, dataType models.DataType) (any, error) {
	value := ""
	if raw != nil {
		value = *raw
	}

	switch dataType {
	case models.DataTypeBoolean:
		return strings.EqualFold(value, "true"), nil
	case models.DataTypeDecimal:
		if value == "" {
			return 0.0, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &CoercionError{DataType: dataType, Value: value, Err: err}
		}
		return f, nil
	case models.DataTypeInteger:
		if value == "" {
			return int64(0), nil
		}
		i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, &CoercionError{DataType: dataType, Value: value, Err: err}
		}
		return i, nil
	}

	if raw == nil {
		return nil, nil
	}
	return value, nil
}

// numeric returns a coerced value as a float64 for range lookups.
func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
