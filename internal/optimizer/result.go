// Package optimizer searches a parameter space for strategy settings that
// score well across a dataset. Search strategies propose candidates, a
// bounded worker pool evaluates them through the simulator, and a
// deduplicating store keeps the first result per parameter identity.
package optimizer

import (
	"math"
	"time"

	"github.com/quantlab/stocklab/internal/backtest"
	"github.com/quantlab/stocklab/pkg/params"
)

// Status classifies the outcome of one candidate evaluation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// WorstScore ranks failed candidates below every real score.
var WorstScore = math.Inf(-1)

// Result is the evaluation outcome of one parameter set. Failed and
// timed-out candidates carry WorstScore so they never win, but stay in the
// store so the set is not retried.
type Result struct {
	Params  params.Set                  `json:"params"`
	Metrics map[string]backtest.Metrics `json:"metrics,omitempty"`
	Score   float64                     `json:"score"`
	Status  Status                      `json:"status"`
	Err     error                       `json:"-"`

	// ValidationScore is only computed for the winning candidate when a
	// validation split is configured.
	ValidationScore   float64 `json:"validation_score,omitempty"`
	ValidationDefined bool    `json:"validation_defined,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Key returns the canonical identity of the evaluated parameter set.
func (r *Result) Key() string { return r.Params.Key() }

// Usable reports whether the result carries a real score.
func (r *Result) Usable() bool {
	return r.Status == StatusOK && !math.IsNaN(r.Score) && !math.IsInf(r.Score, 0)
}
