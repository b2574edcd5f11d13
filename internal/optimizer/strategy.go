package optimizer

import (
	"fmt"
	"math/rand"

	"github.com/quantlab/stocklab/pkg/params"
)

// Strategy drives the search. The optimizer repeatedly calls Propose with
// the full evaluation history so far and evaluates whatever comes back; an
// empty proposal ends the run. Strategies are free to repropose an already
// evaluated set; the store's dedup absorbs it without a second simulation.
type Strategy interface {
	Name() string
	Propose(history []*Result) []params.Set
}

// StrategyConfig carries the knobs shared by the built-in strategies.
type StrategyConfig struct {
	Seed           int64
	PopulationSize int
	Generations    int
	MutationRate   float64
	CrossoverRate  float64
	EliteCount     int
	TournamentSize int
	// Patience stops the search after this many proposal rounds without
	// improvement of the best score. Zero disables early stopping.
	Patience int
	// WarmStart is the number of random candidates the Bayesian strategy
	// evaluates before fitting its surrogate.
	WarmStart int
}

// NewStrategy builds one of the named search strategies over space.
func NewStrategy(name string, space params.Space, cfg StrategyConfig) (Strategy, error) {
	switch name {
	case "grid":
		return NewGridSearch(space), nil
	case "genetic":
		return NewGeneticSearch(space, cfg), nil
	case "bayesian":
		return NewBayesianSearch(space, cfg), nil
	default:
		return nil, fmt.Errorf("unknown search strategy %q", name)
	}
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = 1
	}
	return rand.New(rand.NewSource(seed))
}

// scoreIndex maps parameter identities to their achieved score, assigning
// WorstScore to anything unevaluated or unusable.
func scoreIndex(history []*Result) map[string]float64 {
	idx := make(map[string]float64, len(history))
	for _, r := range history {
		if r.Usable() {
			idx[r.Key()] = r.Score
		} else {
			idx[r.Key()] = WorstScore
		}
	}
	return idx
}

// bestScore returns the highest usable score in history, or WorstScore.
func bestScore(history []*Result) float64 {
	best := WorstScore
	for _, r := range history {
		if r.Usable() && r.Score > best {
			best = r.Score
		}
	}
	return best
}
