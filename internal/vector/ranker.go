package vector

import (
	"fmt"
	"sort"
)

// MaxSearchK is the largest result count Rank accepts.
const MaxSearchK = 50

// Rank scores every candidate against query by inner product and returns the
// top k, highest first. Scores are rounded to 4 decimals before sorting and the
// sort is stable, so equal rounded scores keep their input order.
func Rank(query Vector, candidates []Candidate, k int) ([]ScoredEntity, error) {
	if k < 1 || k > MaxSearchK {
		return nil, fmt.Errorf("%w: k must be between 1 and %d, got %d", ErrInvalidParameter, MaxSearchK, k)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidParameter)
	}

	scored := make([]ScoredEntity, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			return nil, fmt.Errorf("%w: candidate %s has %d dimensions, query has %d",
				ErrMalformedVector, c.Ref, len(c.Vector), len(query))
		}
		scored = append(scored, ScoredEntity{Ref: c.Ref, Score: Round4(Dot(query, c.Vector))})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
