package notification

import (
	"strconv"
	"strings"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

// Evaluate returns the action of the first filter matching payload, or
// defaultAction when none does. Filters are taken in the given order.
func Evaluate(filters []*models.NotificationFilter, defaultAction models.Action, payload any) models.Action {
	for _, f := range filters {
		if Matches(f, payload) {
			return f.Action
		}
	}
	return defaultAction
}

// Matches reports whether the payload value at the filter's pattern
// satisfies its operation. A missing value or an unknown operation never
// matches.
func Matches(f *models.NotificationFilter, payload any) bool {
	actual, ok := ExtractString(payload, f.Pattern)
	if !ok {
		return false
	}
	return compare(f.Operation, actual, f.Value)
}

func compare(op models.Operation, actual, expected string) bool {
	switch op {
	case models.OpEqual:
		return actual == expected
	case models.OpNotEqual:
		return actual != expected
	case models.OpLess, models.OpLessEqual, models.OpGreater, models.OpGreaterEqual:
		a, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return false
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		if err != nil {
			return false
		}
		switch op {
		case models.OpLess:
			return a < b
		case models.OpLessEqual:
			return a <= b
		case models.OpGreater:
			return a > b
		default:
			return a >= b
		}
	}
	return false
}
