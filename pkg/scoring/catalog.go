package scoring

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

// ErrOptionsNotLoaded is returned when options are requested for an enum or
// range fact type the catalog was not built for.
var ErrOptionsNotLoaded = errors.New("options not loaded for fact type")

// Catalog holds the enum and range options of a set of fact types.
// Every requested fact type has an entry, possibly empty.
type Catalog struct {
	enums  map[int64]map[string]float64
	ranges map[int64]Intervals
}

// OptionIDs returns the enum and range fact type ids among facts, in first
// seen order and without duplicates.
func OptionIDs(facts []*models.ProjectFact) (enumIDs, rangeIDs []int64) {
	seen := make(map[int64]bool, len(facts))
	for _, f := range facts {
		if seen[f.FactTypeID] || f.DataType == models.DataTypeBoolean {
			continue
		}
		switch f.FactType {
		case models.FactKindEnum:
			enumIDs = append(enumIDs, f.FactTypeID)
		case models.FactKindRange:
			rangeIDs = append(rangeIDs, f.FactTypeID)
		default:
			continue
		}
		seen[f.FactTypeID] = true
	}
	return enumIDs, rangeIDs
}

// NewCatalog groups option rows by fact type. Each id in enumIDs and rangeIDs
// gets an entry even when no rows exist for it. Rows for fact types that were
// not requested, or overlapping ranges, are errors.
func NewCatalog(enumIDs, rangeIDs []int64, enums []*models.EnumOption, ranges []*models.RangeOption) (*Catalog, error) {
	c := &Catalog{
		enums:  make(map[int64]map[string]float64, len(enumIDs)),
		ranges: make(map[int64]Intervals, len(rangeIDs)),
	}
	for _, id := range enumIDs {
		c.enums[id] = map[string]float64{}
	}

	for _, opt := range enums {
		scores, ok := c.enums[opt.FactTypeID]
		if !ok {
			return nil, fmt.Errorf("enum option %q for unrequested fact type %d", opt.Value, opt.FactTypeID)
		}
		scores[opt.Value] = opt.Score
	}

	grouped := make(map[int64][]models.RangeOption, len(rangeIDs))
	for _, id := range rangeIDs {
		grouped[id] = nil
	}
	for _, opt := range ranges {
		if _, ok := grouped[opt.FactTypeID]; !ok {
			return nil, fmt.Errorf("range option for unrequested fact type %d", opt.FactTypeID)
		}
		grouped[opt.FactTypeID] = append(grouped[opt.FactTypeID], *opt)
	}
	for id, opts := range grouped {
		intervals, err := NewIntervals(opts)
		if err != nil {
			return nil, fmt.Errorf("fact type %d: %w", id, err)
		}
		c.ranges[id] = intervals
	}

	return c, nil
}

// OptionsFor returns the option set used to score fact values of the given
// type. Boolean data types always use BooleanOptions.
func (c *Catalog) OptionsFor(factTypeID int64, dataType models.DataType, kind models.FactKind) (OptionSet, error) {
	if dataType == models.DataTypeBoolean {
		return BooleanOptions{}, nil
	}

	switch kind {
	case models.FactKindEnum:
		scores, ok := c.enums[factTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: enum %d", ErrOptionsNotLoaded, factTypeID)
		}
		return EnumOptions{Scores: scores}, nil
	case models.FactKindRange:
		intervals, ok := c.ranges[factTypeID]
		if !ok {
			return nil, fmt.Errorf("%w: range %d", ErrOptionsNotLoaded, factTypeID)
		}
		return RangeOptions{Intervals: intervals}, nil
	}
	return PlainOptions{}, nil
}
