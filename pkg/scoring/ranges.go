package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

var (
	// ErrOverlappingRanges is returned when two range options of a fact type
	// share any value.
	ErrOverlappingRanges = errors.New("overlapping range options")
	// ErrEmptyRange is returned for a range whose minimum is not below its maximum.
	ErrEmptyRange = errors.New("range minimum must be less than maximum")
)

// Interval is the half-open range [Min, Max) with the score it awards.
type Interval struct {
	Min   float64
	Max   float64
	Score float64
}

// Contains reports whether v lies in [Min, Max).
func (i Interval) Contains(v float64) bool {
	return v >= i.Min && v < i.Max
}

// Label renders the interval as "[min, max)".
func (i Interval) Label() string {
	return "[" + formatNumber(i.Min) + ", " + formatNumber(i.Max) + ")"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Intervals is a list of non-overlapping intervals sorted by Min.
type Intervals []Interval

// NewIntervals sorts the range options and verifies they are non-empty and
// do not overlap.
func NewIntervals(options []models.RangeOption) (Intervals, error) {
	intervals := make(Intervals, 0, len(options))
	for _, opt := range options {
		if !(opt.MinValue < opt.MaxValue) {
			return nil, fmt.Errorf("%w: [%s, %s)", ErrEmptyRange, formatNumber(opt.MinValue), formatNumber(opt.MaxValue))
		}
		intervals = append(intervals, Interval{Min: opt.MinValue, Max: opt.MaxValue, Score: opt.Score})
	}

	sort.Slice(intervals, func(a, b int) bool {
		return intervals[a].Min < intervals[b].Min
	})

	// Sorted by Min, any overlap shows up between neighbours.
	for i := 1; i < len(intervals); i++ {
		if intervals[i].Min < intervals[i-1].Max {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingRanges, intervals[i-1].Label(), intervals[i].Label())
		}
	}
	return intervals, nil
}

// Find returns the interval containing v.
func (s Intervals) Find(v float64) (Interval, bool) {
	for _, interval := range s {
		if interval.Contains(v) {
			return interval, true
		}
		if v < interval.Min {
			break
		}
	}
	return Interval{}, false
}
