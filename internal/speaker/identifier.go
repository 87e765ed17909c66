package speaker

import (
	"context"
	"fmt"
)

// Match is the closest enrolled identity to a query.
type Match struct {
	IdentityID string  `json:"identity_id"`
	Distance   float64 `json:"distance"`
}

// Identifier runs a linear nearest-neighbor scan over the enrolled population.
type Identifier struct {
	store Store
}

func NewIdentifier(store Store) *Identifier {
	return &Identifier{store: store}
}

// Identify returns the enrolled identity nearest to query when its distance is
// strictly below threshold. On equal distances the earliest enrolled identity wins.
func (i *Identifier) Identify(ctx context.Context, query []float32, threshold float64) (Match, bool, error) {
	if err := checkDim(i.store.Dim(), query); err != nil {
		return Match{}, false, err
	}
	all, err := i.store.List(ctx)
	if err != nil {
		return Match{}, false, fmt.Errorf("list embeddings: %w", err)
	}

	best := Match{Distance: 2}
	found := false
	for _, e := range all {
		d := CosineDistance(query, e.Vector)
		if !found || d < best.Distance {
			best = Match{IdentityID: e.IdentityID, Distance: d}
			found = true
		}
	}
	if !found || best.Distance >= threshold {
		return Match{}, false, nil
	}
	return best, true, nil
}
