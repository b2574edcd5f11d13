package params

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// gridSamples is how many evenly spaced points a continuous domain
// contributes when enumerated for grid search.
const gridSamples = 5

// Domain describes the admissible values of one parameter and how search
// strategies sample and perturb it.
type Domain interface {
	// Contains reports whether v is an admissible value.
	Contains(v float64) bool
	// Clamp maps v to the nearest admissible value.
	Clamp(v float64) float64
	// Sample draws a uniform random admissible value.
	Sample(rng *rand.Rand) float64
	// Grid returns the deterministic enumeration of the domain used by
	// exhaustive search. Continuous domains return evenly spaced points.
	Grid() []float64
	// Perturb returns a small random move away from v, scaled by scale in
	// (0, 1], clamped back into the domain.
	Perturb(v, scale float64, rng *rand.Rand) float64
}

// Discrete is an explicit list of admissible values.
type Discrete struct {
	Choices []float64
}

func (d Discrete) Contains(v float64) bool {
	for _, c := range d.Choices {
		if c == v {
			return true
		}
	}
	return false
}

func (d Discrete) Clamp(v float64) float64 {
	if len(d.Choices) == 0 {
		return v
	}
	best := d.Choices[0]
	for _, c := range d.Choices[1:] {
		if math.Abs(c-v) < math.Abs(best-v) {
			best = c
		}
	}
	return best
}

func (d Discrete) Sample(rng *rand.Rand) float64 {
	if len(d.Choices) == 0 {
		return math.NaN()
	}
	return d.Choices[rng.Intn(len(d.Choices))]
}

func (d Discrete) Grid() []float64 {
	out := make([]float64, len(d.Choices))
	copy(out, d.Choices)
	return out
}

func (d Discrete) Perturb(_ float64, _ float64, rng *rand.Rand) float64 {
	return d.Sample(rng)
}

// Continuous is a bounded real interval.
type Continuous struct {
	Min, Max float64
}

func (c Continuous) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= c.Min && v <= c.Max
}

func (c Continuous) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return c.Min
	}
	return math.Min(c.Max, math.Max(c.Min, v))
}

func (c Continuous) Sample(rng *rand.Rand) float64 {
	return c.Min + rng.Float64()*(c.Max-c.Min)
}

func (c Continuous) Grid() []float64 {
	if c.Max == c.Min {
		return []float64{c.Min}
	}
	out := make([]float64, gridSamples)
	step := (c.Max - c.Min) / float64(gridSamples-1)
	for i := range out {
		out[i] = c.Min + float64(i)*step
	}
	out[len(out)-1] = c.Max
	return out
}

func (c Continuous) Perturb(v, scale float64, rng *rand.Rand) float64 {
	sigma := scale * (c.Max - c.Min)
	return c.Clamp(v + rng.NormFloat64()*sigma)
}

// Integer is a bounded integer range with an optional step (default 1).
type Integer struct {
	Min, Max int
	Step     int
}

func (i Integer) step() int {
	if i.Step <= 0 {
		return 1
	}
	return i.Step
}

func (i Integer) Contains(v float64) bool {
	if math.IsNaN(v) || v != math.Trunc(v) {
		return false
	}
	n := int(v)
	return n >= i.Min && n <= i.Max && (n-i.Min)%i.step() == 0
}

func (i Integer) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return float64(i.Min)
	}
	step := i.step()
	n := i.Min + int(math.Round((v-float64(i.Min))/float64(step)))*step
	if n < i.Min {
		n = i.Min
	}
	if n > i.Max {
		n = i.Max
	}
	return float64(n)
}

func (i Integer) Sample(rng *rand.Rand) float64 {
	step := i.step()
	count := (i.Max-i.Min)/step + 1
	return float64(i.Min + rng.Intn(count)*step)
}

func (i Integer) Grid() []float64 {
	step := i.step()
	var out []float64
	for n := i.Min; n <= i.Max; n += step {
		out = append(out, float64(n))
	}
	return out
}

func (i Integer) Perturb(v, scale float64, rng *rand.Rand) float64 {
	sigma := scale * float64(i.Max-i.Min)
	if sigma < float64(i.step()) {
		sigma = float64(i.step())
	}
	return i.Clamp(v + rng.NormFloat64()*sigma)
}

// Space maps parameter keys to their search domains.
type Space map[string]Domain

// Keys returns the space's keys in sorted order.
func (sp Space) Keys() []string {
	keys := make([]string, 0, len(sp))
	for k := range sp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sample draws one random set from the space, layered over the defaults so
// untuned keys keep their baseline values.
func (sp Space) Sample(rng *rand.Rand) Set {
	set := Defaults()
	for _, k := range sp.Keys() {
		set[k] = sp[k].Sample(rng)
	}
	return set
}

// Size returns the number of grid combinations the space enumerates to.
func (sp Space) Size() int {
	total := 1
	for _, d := range sp {
		total *= len(d.Grid())
	}
	return total
}

// Validate checks a set against the space's domains and the simulator's
// cross-parameter rules.
func (sp Space) Validate(set Set) error {
	for _, k := range sp.Keys() {
		v, ok := set[k]
		if !ok {
			return fmt.Errorf("parameter %q: missing", k)
		}
		if !sp[k].Contains(v) {
			return fmt.Errorf("parameter %q: value %v outside domain", k, v)
		}
	}
	return ValidateRules(set)
}

// ValidateRules enforces the cross-parameter constraints of the simulator.
func ValidateRules(set Set) error {
	if v, ok := set[KeyInitialCapital]; ok && (math.IsNaN(v) || v <= 0) {
		return fmt.Errorf("parameter %q: must be positive, got %v", KeyInitialCapital, v)
	}
	if v, ok := set[KeyPositionSize]; ok && (math.IsNaN(v) || v <= 0) {
		return fmt.Errorf("parameter %q: must be positive, got %v", KeyPositionSize, v)
	}
	if v, ok := set[KeyPositionCount]; ok && (math.IsNaN(v) || v < 1 || v != math.Trunc(v)) {
		return fmt.Errorf("parameter %q: must be an integer >= 1, got %v", KeyPositionCount, v)
	}
	minHold, hasMin := set[KeyMinHoldDays]
	if hasMin && (math.IsNaN(minHold) || minHold < 0 || minHold != math.Trunc(minHold)) {
		return fmt.Errorf("parameter %q: must be a non-negative integer, got %v", KeyMinHoldDays, minHold)
	}
	maxHold, hasMax := set[KeyMaxHoldDays]
	if hasMax && (math.IsNaN(maxHold) || maxHold < 0 || maxHold != math.Trunc(maxHold)) {
		return fmt.Errorf("parameter %q: must be a non-negative integer, got %v", KeyMaxHoldDays, maxHold)
	}
	if hasMin && hasMax && maxHold > 0 && maxHold < minHold {
		return fmt.Errorf("parameter %q (%v) must be >= %q (%v)", KeyMaxHoldDays, maxHold, KeyMinHoldDays, minHold)
	}
	if v, ok := set[KeyStopLossPct]; ok && (math.IsNaN(v) || v < 0 || v > 1) {
		return fmt.Errorf("parameter %q: must be in [0, 1], got %v", KeyStopLossPct, v)
	}
	return nil
}

// DefaultSpace returns the search space covering the standard tunable keys
// with their usual research ranges.
func DefaultSpace() Space {
	return Space{
		KeyMinHoldDays:           Integer{Min: 0, Max: 10},
		KeyMaxHoldDays:           Integer{Min: 10, Max: 60, Step: 5},
		KeyEntryPricePositionMax: Continuous{Min: 0.05, Max: 0.4},
		KeyEntryFlowRateMin:      Continuous{Min: 0.0, Max: 0.5},
		KeyExitPricePositionMin:  Continuous{Min: 0.6, Max: 0.95},
		KeyExitRSDMin:            Continuous{Min: 4.0, Max: 15.0},
		KeyStopLossPct:           Discrete{Choices: []float64{0.05, 0.08, 0.10, 0.15}},
	}
}
