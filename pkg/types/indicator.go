// Package types defines shared data structures for indicator series,
// datasets and related helpers used across the simulator and optimizer.
package types

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// IndicatorSnapshot holds the derived indicator values for a single symbol
// on a single trading date. Numeric fields the indicator pipeline could not
// compute for that date are NaN; consumers must treat NaN as "missing" and
// skip any condition that depends on it.
type IndicatorSnapshot struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`

	// Band-relative position of the close, 0 at the lower band and 1 at
	// the upper band. Values outside [0,1] mean the close escaped the band.
	PricePosition     float64 `json:"price_position"`
	PrevPricePosition float64 `json:"prev_price_position"`
	PricePosition90d  float64 `json:"price_position_90d"`

	// Relative standard deviation of the moving-average window, percent.
	RSD       float64 `json:"rsd"`
	PrevRSD   float64 `json:"prev_rsd"`
	RSDChange float64 `json:"rsd_chg"`

	MASlope    float64 `json:"ma_slope"`
	CloseSlope float64 `json:"close_slope"`
	PctChange  float64 `json:"pct_chg"`

	// Main-capital net flow rate for the date.
	FlowRate float64 `json:"flow_rate"`

	// ReversalCross is +1 when the price position crossed up through its
	// reversal threshold (bottom reversal), -1 on a cross down (top
	// reversal) and 0 otherwise.
	ReversalCross int `json:"reversal_cross"`

	// Valuation context. PEPosition is NaN when no valuation data exists
	// for the symbol.
	PEPosition float64 `json:"pe_position"`
	LossFlag   bool    `json:"loss_flag"`
}

// Defined reports whether every given value is present (not NaN).
func Defined(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// IndicatorSeries is the date-ordered snapshot history of one symbol.
type IndicatorSeries struct {
	Symbol    string              `json:"symbol"`
	Snapshots []IndicatorSnapshot `json:"snapshots"`
}

// Len returns the number of snapshots in the series.
func (s IndicatorSeries) Len() int { return len(s.Snapshots) }

// Empty reports whether the series has no snapshots.
func (s IndicatorSeries) Empty() bool { return len(s.Snapshots) == 0 }

// Start returns the first snapshot date, or the zero time for an empty series.
func (s IndicatorSeries) Start() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Snapshots[0].Date
}

// End returns the last snapshot date, or the zero time for an empty series.
func (s IndicatorSeries) End() time.Time {
	if s.Empty() {
		return time.Time{}
	}
	return s.Snapshots[len(s.Snapshots)-1].Date
}

// Slice returns the sub-series covering [from, to] inclusive. A zero from or
// to leaves that side unbounded.
func (s IndicatorSeries) Slice(from, to time.Time) IndicatorSeries {
	out := IndicatorSeries{Symbol: s.Symbol}
	for _, snap := range s.Snapshots {
		if !from.IsZero() && snap.Date.Before(from) {
			continue
		}
		if !to.IsZero() && snap.Date.After(to) {
			continue
		}
		out.Snapshots = append(out.Snapshots, snap)
	}
	return out
}

// SplitAt splits the series after the first n snapshots.
func (s IndicatorSeries) SplitAt(n int) (IndicatorSeries, IndicatorSeries) {
	if n < 0 {
		n = 0
	}
	if n > len(s.Snapshots) {
		n = len(s.Snapshots)
	}
	head := IndicatorSeries{Symbol: s.Symbol, Snapshots: s.Snapshots[:n]}
	tail := IndicatorSeries{Symbol: s.Symbol, Snapshots: s.Snapshots[n:]}
	return head, tail
}

// Validate checks that snapshot dates are strictly increasing.
func (s IndicatorSeries) Validate() error {
	for i := 1; i < len(s.Snapshots); i++ {
		prev, cur := s.Snapshots[i-1].Date, s.Snapshots[i].Date
		if !cur.After(prev) {
			return fmt.Errorf("series %s: snapshot dates not strictly increasing at %s", s.Symbol, cur.Format("2006-01-02"))
		}
	}
	return nil
}

// Dataset maps symbols to their indicator series.
type Dataset map[string]IndicatorSeries

// Symbols returns the dataset's symbols in sorted order for deterministic
// iteration.
func (d Dataset) Symbols() []string {
	syms := make([]string, 0, len(d))
	for sym := range d {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// TotalSnapshots returns the snapshot count across all series.
func (d Dataset) TotalSnapshots() int {
	total := 0
	for _, s := range d {
		total += s.Len()
	}
	return total
}
