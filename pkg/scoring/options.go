package scoring

import (
	"sort"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

// OptionSet is the closed set of ways a fact value maps to a score:
// BooleanOptions, EnumOptions, RangeOptions or PlainOptions.
type OptionSet interface {
	optionSet()
}

// BooleanOptions scores true as 100 and false as 0.
type BooleanOptions struct{}

// EnumOptions scores a value by looking it up in Scores.
type EnumOptions struct {
	Scores map[string]float64
}

// RangeOptions scores a numeric value by the interval containing it.
type RangeOptions struct {
	Intervals Intervals
}

// PlainOptions has no options; the stored score is used as is.
type PlainOptions struct{}

func (BooleanOptions) optionSet() {}
func (EnumOptions) optionSet() {}
func (RangeOptions) optionSet() {}
func (PlainOptions) optionSet() {}

const (
	labelTrue  = "true"
	labelFalse = "false"
)

// Resolution is the outcome of scoring one fact value.
type Resolution struct {
	// Selected is the label of the chosen option, empty when the value
	// matched none.
	Selected string
	Score    float64
	Options  []models.ScoreOption
}

// Resolve scores a coerced fact value against its option set. raw is the
// stored value and stored the score persisted with it, used when the value
// matches no option.
func Resolve(set OptionSet, value any, raw *string, stored float64) Resolution {
	table := map[string]float64{}
	selected := ""
	matched := false

	switch s := set.(type) {
	case BooleanOptions:
		table[labelTrue] = 100
		table[labelFalse] = 0
		selected, matched = labelFalse, true
		if b, ok := value.(bool); ok && b {
			selected = labelTrue
		}
	case EnumOptions:
		for label, score := range s.Scores {
			table[label] = score
		}
		if raw != nil {
			selected = *raw
			_, matched = table[selected]
		}
	case RangeOptions:
		for _, interval := range s.Intervals {
			table[interval.Label()] = interval.Score
		}
		if raw == nil {
			break
		}
		if v, ok := numeric(value); ok {
			if interval, found := s.Intervals.Find(v); found {
				selected, matched = interval.Label(), true
			}
		}
	case PlainOptions:
	}

	res := Resolution{Score: stored, Options: make([]models.ScoreOption, 0, len(table))}
	if matched {
		res.Selected = selected
		res.Score = table[selected]
	}

	for label, score := range table {
		res.Options = append(res.Options, models.ScoreOption{
			Label:    label,
			Value:    score,
			Selected: matched && label == selected,
		})
	}
	sort.Slice(res.Options, func(i, j int) bool {
		if res.Options[i].Value != res.Options[j].Value {
			return res.Options[i].Value < res.Options[j].Value
		}
		return res.Options[i].Label < res.Options[j].Label
	})
	return res
}

// ValueScore computes the score stored with a newly written fact value.
// Values that match no option score zero.
func ValueScore(set OptionSet, dataType models.DataType, value string) (float64, error) {
	coerced, err := Coerce(&value, dataType)
	if err != nil {
		return 0, err
	}
	return Resolve(set, coerced, &value, 0).Score, nil
}
