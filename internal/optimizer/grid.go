package optimizer

import (
	"github.com/quantlab/stocklab/pkg/params"
)

// GridSearch enumerates the full Cartesian product of the space's domain
// grids in one deterministic batch. Keys are iterated in sorted order, so
// repeated runs over the same space propose the same sequence.
type GridSearch struct {
	space params.Space
	done  bool
}

// NewGridSearch creates the exhaustive search strategy.
func NewGridSearch(space params.Space) *GridSearch {
	return &GridSearch{space: space}
}

func (g *GridSearch) Name() string { return "grid" }

// Propose returns every grid combination on the first call and nothing
// afterwards.
func (g *GridSearch) Propose(_ []*Result) []params.Set {
	if g.done {
		return nil
	}
	g.done = true

	keys := g.space.Keys()
	if len(keys) == 0 {
		return []params.Set{params.Defaults()}
	}
	sets := []params.Set{params.Defaults()}
	for _, key := range keys {
		values := g.space[key].Grid()
		next := make([]params.Set, 0, len(sets)*len(values))
		for _, base := range sets {
			for _, v := range values {
				set := base.Clone()
				set[key] = v
				next = append(next, set)
			}
		}
		sets = next
	}
	return sets
}
