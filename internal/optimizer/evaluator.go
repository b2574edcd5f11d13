package optimizer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quantlab/stocklab/internal/backtest"
	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/internal/monitoring"
	"github.com/quantlab/stocklab/pkg/params"
	"github.com/quantlab/stocklab/pkg/types"
)

// Evaluator runs one parameter set through the simulator over every symbol
// of a dataset and condenses the per-symbol metrics into a scalar score.
type Evaluator struct {
	dataset         types.Dataset
	sizing          backtest.SizingMode
	riskFreeRate    float64
	drawdownPenalty float64
	timeout         time.Duration
	log             *zap.Logger
}

// NewEvaluator builds an evaluator over dataset. timeout bounds one full
// candidate evaluation; zero disables the deadline.
func NewEvaluator(dataset types.Dataset, sizing backtest.SizingMode, riskFreeRate, drawdownPenalty float64, timeout time.Duration, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{
		dataset:         dataset,
		sizing:          sizing,
		riskFreeRate:    riskFreeRate,
		drawdownPenalty: drawdownPenalty,
		timeout:         timeout,
		log:             log,
	}
}

// Evaluate simulates set over every symbol. An invalid set or an invariant
// violation fails the candidate; exceeding the deadline times it out. Both
// outcomes carry WorstScore and are recorded, never retried.
func (ev *Evaluator) Evaluate(ctx context.Context, set params.Set) *Result {
	started := time.Now()
	if ev.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ev.timeout)
		defer cancel()
	}

	result := &Result{
		Params:  set.Clone(),
		Metrics: make(map[string]backtest.Metrics, len(ev.dataset)),
	}
	finish := func(status Status, err error) *Result {
		result.Status = status
		result.Err = err
		result.Duration = time.Since(started)
		if status != StatusOK {
			result.Score = WorstScore
		}
		monitoring.RecordEvaluation(string(status), result.Duration)
		return result
	}

	eng, err := backtest.NewEngine(backtest.Config{
		Params:       set,
		Sizing:       ev.sizing,
		RiskFreeRate: ev.riskFreeRate,
	})
	if err != nil {
		ev.log.Warn("candidate rejected", zap.String("params", set.Key()), zap.Error(err))
		return finish(StatusFailed, err)
	}

	for _, symbol := range ev.dataset.Symbols() {
		if ctx.Err() != nil {
			timeoutErr := simerrors.Wrap(ctx.Err(), simerrors.CategoryEvalTimeout, "evaluator", "evaluate",
				"deadline exceeded for "+set.Key())
			ev.log.Warn("candidate timed out",
				zap.String("params", set.Key()),
				zap.String("symbol", symbol),
				zap.Duration("elapsed", time.Since(started)))
			return finish(StatusTimeout, timeoutErr)
		}
		run, err := eng.Run(ev.dataset[symbol])
		if err != nil {
			ev.log.Error("simulation failed",
				zap.String("params", set.Key()),
				zap.String("symbol", symbol),
				zap.Error(err))
			return finish(StatusFailed, err)
		}
		result.Metrics[symbol] = run.Metrics
	}

	result.Score = ev.Score(result.Metrics)
	return finish(StatusOK, nil)
}

// Score condenses per-symbol metrics into the scalar the search maximizes:
// mean Sharpe minus the drawdown penalty times mean max drawdown. Symbols
// whose Sharpe is undefined contribute zero to the Sharpe mean instead of
// poisoning it.
func (ev *Evaluator) Score(metrics map[string]backtest.Metrics) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sharpeSum, ddSum float64
	for _, m := range metrics {
		if m.SharpeDefined {
			sharpeSum += m.SharpeRatio
		}
		ddSum += m.MaxDrawdown
	}
	n := float64(len(metrics))
	return sharpeSum/n - ev.drawdownPenalty*ddSum/n
}
