package optimizer

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantlab/stocklab/pkg/params"
)

const (
	defaultWarmStart   = 10
	defaultPatience    = 10
	acquisitionSamples = 256
	gpLengthScale      = 0.2
	gpNoise            = 1e-6
)

// BayesianSearch proposes candidates by fitting a Gaussian-process
// surrogate with an RBF kernel over the normalized history and picking the
// random candidate with the highest expected improvement. The first
// WarmStart candidates are random to give the surrogate something to fit.
type BayesianSearch struct {
	space params.Space
	keys  []string
	rng   *rand.Rand
	cfg   StrategyConfig

	warmed   bool
	best     float64
	stagnant int
}

// NewBayesianSearch creates the surrogate-guided strategy.
func NewBayesianSearch(space params.Space, cfg StrategyConfig) *BayesianSearch {
	if cfg.WarmStart <= 0 {
		cfg.WarmStart = defaultWarmStart
	}
	if cfg.Patience <= 0 {
		cfg.Patience = defaultPatience
	}
	return &BayesianSearch{
		space: space,
		keys:  space.Keys(),
		rng:   newRand(cfg.Seed),
		cfg:   cfg,
		best:  WorstScore,
	}
}

func (b *BayesianSearch) Name() string { return "bayesian" }

// Propose returns the warm-start batch first, then one surrogate-picked
// candidate per round until the patience window closes. The overall budget
// is enforced by the optimizer.
func (b *BayesianSearch) Propose(history []*Result) []params.Set {
	if !b.warmed {
		b.warmed = true
		batch := make([]params.Set, 0, b.cfg.WarmStart)
		for i := 0; i < b.cfg.WarmStart; i++ {
			batch = append(batch, b.space.Sample(b.rng))
		}
		return batch
	}

	if top := bestScore(history); top > b.best {
		b.best = top
		b.stagnant = 0
	} else {
		b.stagnant++
		if b.cfg.Patience > 0 && b.stagnant >= b.cfg.Patience {
			return nil
		}
	}

	observed := b.observations(history)
	if len(observed) < 2 {
		return []params.Set{b.space.Sample(b.rng)}
	}
	gp, ok := fitGP(observed, gpLengthScale, gpNoise)
	if !ok {
		// Ill-conditioned kernel matrix; fall back to exploration.
		return []params.Set{b.space.Sample(b.rng)}
	}

	var bestSet params.Set
	bestEI := math.Inf(-1)
	for i := 0; i < acquisitionSamples; i++ {
		candidate := b.space.Sample(b.rng)
		mu, sigma := gp.predict(b.normalize(candidate))
		if ei := expectedImprovement(mu, sigma, gp.bestY); ei > bestEI {
			bestEI = ei
			bestSet = candidate
		}
	}
	if bestSet == nil {
		bestSet = b.space.Sample(b.rng)
	}
	return []params.Set{bestSet}
}

type observation struct {
	x []float64
	y float64
}

// observations projects the usable history into the normalized unit cube.
func (b *BayesianSearch) observations(history []*Result) []observation {
	var obs []observation
	for _, r := range history {
		if !r.Usable() {
			continue
		}
		obs = append(obs, observation{x: b.normalize(r.Params), y: r.Score})
	}
	return obs
}

// normalize maps a set's tuned keys onto [0,1] per dimension.
func (b *BayesianSearch) normalize(set params.Set) []float64 {
	x := make([]float64, len(b.keys))
	for i, key := range b.keys {
		lo, hi := domainBounds(b.space[key])
		if hi > lo {
			x[i] = (set[key] - lo) / (hi - lo)
		}
	}
	return x
}

// domainBounds returns the numeric span of a domain for normalization.
func domainBounds(d params.Domain) (float64, float64) {
	grid := d.Grid()
	if len(grid) == 0 {
		return 0, 1
	}
	lo, hi := grid[0], grid[0]
	for _, v := range grid[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// gaussianProcess is a fitted zero-mean GP with an RBF kernel.
type gaussianProcess struct {
	xs          [][]float64
	alpha       *mat.VecDense
	chol        *mat.Cholesky
	lengthScale float64
	meanY       float64
	bestY       float64
}

// fitGP fits the surrogate to the observations. It reports false when the
// kernel matrix is not positive definite.
func fitGP(obs []observation, lengthScale, noise float64) (*gaussianProcess, bool) {
	n := len(obs)
	xs := make([][]float64, n)
	meanY := 0.0
	bestY := math.Inf(-1)
	for i, o := range obs {
		xs[i] = o.x
		meanY += o.y
		bestY = math.Max(bestY, o.y)
	}
	meanY /= float64(n)

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := rbf(xs[i], xs[j], lengthScale)
			if i == j {
				v += noise
			}
			k.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(k) {
		return nil, false
	}
	y := mat.NewVecDense(n, nil)
	for i, o := range obs {
		y.SetVec(i, o.y-meanY)
	}
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, y); err != nil {
		return nil, false
	}
	return &gaussianProcess{
		xs:          xs,
		alpha:       alpha,
		chol:        &chol,
		lengthScale: lengthScale,
		meanY:       meanY,
		bestY:       bestY,
	}, true
}

// predict returns the posterior mean and standard deviation at x.
func (gp *gaussianProcess) predict(x []float64) (float64, float64) {
	n := len(gp.xs)
	kstar := mat.NewVecDense(n, nil)
	for i, xi := range gp.xs {
		kstar.SetVec(i, rbf(x, xi, gp.lengthScale))
	}
	mu := gp.meanY + mat.Dot(kstar, gp.alpha)

	v := mat.NewVecDense(n, nil)
	if err := gp.chol.SolveVecTo(v, kstar); err != nil {
		return mu, 0
	}
	variance := rbf(x, x, gp.lengthScale) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}
	return mu, math.Sqrt(variance)
}

// rbf is the squared-exponential kernel.
func rbf(a, b []float64, lengthScale float64) float64 {
	var dist2 float64
	for i := range a {
		d := a[i] - b[i]
		dist2 += d * d
	}
	return math.Exp(-dist2 / (2 * lengthScale * lengthScale))
}

// expectedImprovement scores how much a candidate is expected to beat the
// incumbent best.
func expectedImprovement(mu, sigma, best float64) float64 {
	if sigma <= 0 {
		if mu > best {
			return mu - best
		}
		return 0
	}
	z := (mu - best) / sigma
	norm := distuv.UnitNormal
	return (mu-best)*norm.CDF(z) + sigma*norm.Prob(z)
}
