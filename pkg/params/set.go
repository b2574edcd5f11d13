// Package params defines parameter sets, their search-space domains and
// the validation rules shared by the simulator and the optimizer.
package params

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Canonical parameter keys understood by the simulator.
const (
	KeyInitialCapital        = "initial_capital"
	KeyMinHoldDays           = "min_hold_days"
	KeyMaxHoldDays           = "max_hold_days"
	KeyPositionCount         = "position_count"
	KeyPositionSize          = "position_size"
	KeyEntryPricePositionMax = "entry_price_position_max"
	KeyEntryFlowRateMin      = "entry_flow_rate_min"
	KeyExitPricePositionMin  = "exit_price_position_min"
	KeyExitRSDMin            = "exit_rsd_min"
	KeyStopLossPct           = "stop_loss_pct"
)

// Set is one concrete assignment of tunable values. A Set is built once and
// never mutated afterwards; copy with Clone before changing values.
type Set map[string]float64

// Defaults returns the baseline parameter set used when a key is not tuned.
func Defaults() Set {
	return Set{
		KeyInitialCapital:        10000,
		KeyMinHoldDays:           2,
		KeyMaxHoldDays:           30,
		KeyPositionCount:         1,
		KeyPositionSize:          10000,
		KeyEntryPricePositionMax: 0.2,
		KeyEntryFlowRateMin:      0.1,
		KeyExitPricePositionMin:  0.8,
		KeyExitRSDMin:            8.0,
		KeyStopLossPct:           0.10,
	}
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a copy of s with the values from over applied on top.
func (s Set) Merge(over Set) Set {
	out := s.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Float returns the value for key, or NaN when the key is absent.
func (s Set) Float(key string) float64 {
	if v, ok := s[key]; ok {
		return v
	}
	return math.NaN()
}

// Int returns the value for key rounded to the nearest integer, or 0 when
// the key is absent.
func (s Set) Int(key string) int {
	v, ok := s[key]
	if !ok {
		return 0
	}
	return int(math.Round(v))
}

// Keys returns the set's keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns the canonical identity string of the set: keys sorted, each
// value rendered with the shortest exact float formatting. Two sets with the
// same parameter values always produce the same key, regardless of the order
// in which they were assembled.
func (s Set) Key() string {
	keys := s.Keys()
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(s[k], 'g', -1, 64))
	}
	return b.String()
}

// String implements fmt.Stringer using the canonical key form.
func (s Set) String() string { return s.Key() }
