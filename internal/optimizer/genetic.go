package optimizer

import (
	"math/rand"
	"sort"

	"github.com/quantlab/stocklab/pkg/params"
)

const (
	defaultPopulationSize = 30
	defaultGenerations    = 20
	defaultMutationRate   = 0.15
	defaultCrossoverRate  = 0.8
	defaultEliteCount     = 2
	defaultTournamentSize = 3
	mutationScale         = 0.15
)

// GeneticSearch evolves a population of parameter sets: tournament
// selection, uniform per-key crossover and bounded mutation, with the best
// individuals carried over unchanged. All randomness flows from the seeded
// generator, so a fixed seed reproduces the whole run.
type GeneticSearch struct {
	space params.Space
	rng   *rand.Rand
	cfg   StrategyConfig

	generation int
	population []params.Set
	best       float64
	stagnant   int
}

// NewGeneticSearch creates the evolutionary strategy with cfg's knobs,
// falling back to sensible defaults for anything unset.
func NewGeneticSearch(space params.Space, cfg StrategyConfig) *GeneticSearch {
	if cfg.PopulationSize <= 0 {
		cfg.PopulationSize = defaultPopulationSize
	}
	if cfg.Generations <= 0 {
		cfg.Generations = defaultGenerations
	}
	if cfg.MutationRate <= 0 {
		cfg.MutationRate = defaultMutationRate
	}
	if cfg.CrossoverRate <= 0 {
		cfg.CrossoverRate = defaultCrossoverRate
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = defaultEliteCount
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = defaultTournamentSize
	}
	return &GeneticSearch{
		space: space,
		rng:   newRand(cfg.Seed),
		cfg:   cfg,
		best:  WorstScore,
	}
}

func (g *GeneticSearch) Name() string { return "genetic" }

// Propose returns the next generation. The first call seeds a random
// population; later calls breed from the scores the previous generation
// achieved. The search ends after the configured generation count or when
// the best score plateaus past the patience window.
func (g *GeneticSearch) Propose(history []*Result) []params.Set {
	if g.generation >= g.cfg.Generations {
		return nil
	}
	if g.population == nil {
		g.population = make([]params.Set, 0, g.cfg.PopulationSize)
		for i := 0; i < g.cfg.PopulationSize; i++ {
			g.population = append(g.population, g.space.Sample(g.rng))
		}
		g.generation++
		return g.population
	}

	if top := bestScore(history); top > g.best {
		g.best = top
		g.stagnant = 0
	} else {
		g.stagnant++
		if g.cfg.Patience > 0 && g.stagnant >= g.cfg.Patience {
			return nil
		}
	}

	scores := scoreIndex(history)
	ranked := make([]params.Set, len(g.population))
	copy(ranked, g.population)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].Key()] > scores[ranked[j].Key()]
	})

	next := make([]params.Set, 0, g.cfg.PopulationSize)
	for i := 0; i < g.cfg.EliteCount && i < len(ranked); i++ {
		next = append(next, ranked[i].Clone())
	}
	for len(next) < g.cfg.PopulationSize {
		parent1 := g.tournament(scores)
		parent2 := g.tournament(scores)
		child := g.crossover(parent1, parent2)
		g.mutate(child)
		next = append(next, child)
	}

	g.population = next
	g.generation++
	return next
}

// tournament picks the best of k random population members.
func (g *GeneticSearch) tournament(scores map[string]float64) params.Set {
	best := g.population[g.rng.Intn(len(g.population))]
	for i := 1; i < g.cfg.TournamentSize; i++ {
		challenger := g.population[g.rng.Intn(len(g.population))]
		if scores[challenger.Key()] > scores[best.Key()] {
			best = challenger
		}
	}
	return best
}

// crossover mixes two parents key by key. Below the crossover rate the
// first parent is cloned unchanged.
func (g *GeneticSearch) crossover(a, b params.Set) params.Set {
	child := a.Clone()
	if g.rng.Float64() >= g.cfg.CrossoverRate {
		return child
	}
	for _, key := range g.space.Keys() {
		if g.rng.Float64() < 0.5 {
			child[key] = b[key]
		}
	}
	return child
}

// mutate perturbs each tuned key with the mutation probability, staying
// inside the key's domain.
func (g *GeneticSearch) mutate(set params.Set) {
	for _, key := range g.space.Keys() {
		if g.rng.Float64() < g.cfg.MutationRate {
			set[key] = g.space[key].Perturb(set[key], mutationScale, g.rng)
		}
	}
}
