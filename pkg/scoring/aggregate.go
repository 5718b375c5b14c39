package scoring

import (
	"errors"
	"fmt"

	"github.com/ekaya-inc/scorecard/pkg/models"
)

// FullWeight is the sum of the weights of all facts.
func FullWeight(facts []*models.ProjectFact) float64 {
	var total float64
	for _, f := range facts {
		if f.Weight > 0 {
			total += f.Weight
		}
	}
	return total
}

// ComputeDetail scores every fact of a project and returns one detail per
// fact, in the same order. Weighted facts get a score and their share of the
// project score; unweighted facts only list their options. Facts must be all
// the fact types applicable to the project, valued or not.
func ComputeDetail(facts []*models.ProjectFact, catalog *Catalog) ([]*models.ScoreDetail, error) {
	fullWeight := FullWeight(facts)
	details := make([]*models.ScoreDetail, 0, len(facts))

	for _, f := range facts {
		value, err := Coerce(f.Value, f.DataType)
		if err != nil {
			var coerceErr *CoercionError
			if errors.As(err, &coerceErr) {
				coerceErr.FactTypeID = f.FactTypeID
				coerceErr.Name = f.Name
			}
			return nil, err
		}

		set, err := catalog.OptionsFor(f.FactTypeID, f.DataType, f.FactType)
		if err != nil {
			return nil, fmt.Errorf("failed to score fact %q: %w", f.Name, err)
		}

		res := Resolve(set, value, f.Value, f.Score)
		detail := &models.ScoreDetail{Options: res.Options}
		if f.Weight > 0 && fullWeight > 0 {
			score := res.Score
			contribution := score * f.Weight / fullWeight
			detail.Score = &score
			detail.Contribution = &contribution
		}
		details = append(details, detail)
	}

	return details, nil
}

// Total sums the contributions of the given details. ok is false when no
// detail carries a contribution.
func Total(details []*models.ScoreDetail) (total float64, ok bool) {
	for _, d := range details {
		if d == nil || d.Contribution == nil {
			continue
		}
		total += *d.Contribution
		ok = true
	}
	return total, ok
}
