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

// Options configures an optimization run.
type Options struct {
	Strategy Strategy
	// Budget caps the number of distinct evaluations. Zero means the
	// strategy alone decides when to stop.
	Budget int
	// Workers bounds the evaluation pool; non-positive uses NumCPU.
	Workers int
	// EvalTimeout bounds a single candidate evaluation.
	EvalTimeout time.Duration

	Sizing          backtest.SizingMode
	RiskFreeRate    float64
	DrawdownPenalty float64

	// OverfitGap is the train-minus-validation score gap above which the
	// winning candidate is flagged as likely overfit.
	OverfitGap float64

	Logger *zap.Logger
}

// Optimizer coordinates a search: it pulls candidate batches from the
// strategy, fans them out over the worker pool and folds results into the
// deduplicating store.
type Optimizer struct {
	opts      Options
	trainEval *Evaluator
	valEval   *Evaluator
	store     *ResultStore
	log       *zap.Logger
}

// New builds an optimizer over the training dataset. validation may be nil
// to skip the hold-out check.
func New(train, validation types.Dataset, opts Options) (*Optimizer, error) {
	if opts.Strategy == nil {
		return nil, simerrors.NewInvalidConfig("optimizer", "new", "no search strategy configured")
	}
	if len(train) == 0 {
		return nil, simerrors.NewInvalidConfig("optimizer", "new", "empty training dataset")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OverfitGap <= 0 {
		opts.OverfitGap = 0.5
	}
	o := &Optimizer{
		opts:  opts,
		log:   opts.Logger,
		store: NewResultStore(),
		trainEval: NewEvaluator(train, opts.Sizing, opts.RiskFreeRate,
			opts.DrawdownPenalty, opts.EvalTimeout, opts.Logger),
	}
	if len(validation) > 0 {
		o.valEval = NewEvaluator(validation, opts.Sizing, opts.RiskFreeRate,
			opts.DrawdownPenalty, opts.EvalTimeout, opts.Logger)
	}
	return o, nil
}

// Store exposes the result store for reporting.
func (o *Optimizer) Store() *ResultStore { return o.store }

// Run executes the search until the strategy stops proposing, the budget
// is exhausted or ctx is canceled, then returns the best usable candidate
// with its validation score attached.
func (o *Optimizer) Run(ctx context.Context) (*Result, error) {
	evaluated := 0
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		if o.opts.Budget > 0 && evaluated >= o.opts.Budget {
			break
		}
		batch := o.opts.Strategy.Propose(o.store.All())
		if len(batch) == 0 {
			break
		}
		fresh := o.dedupe(batch)
		if o.opts.Budget > 0 && evaluated+len(fresh) > o.opts.Budget {
			fresh = fresh[:o.opts.Budget-evaluated]
		}
		if len(fresh) == 0 {
			// The whole batch was already evaluated. Strategies advance
			// their own generation or patience counters per Propose
			// call, so asking again still converges.
			o.log.Debug("batch fully deduplicated", zap.String("strategy", o.opts.Strategy.Name()))
			continue
		}
		evaluated += o.runBatch(ctx, fresh)

		if best := o.store.Best(); best != nil {
			monitoring.SetBestScore(best.Score)
			o.log.Info("search progress",
				zap.String("strategy", o.opts.Strategy.Name()),
				zap.Int("evaluated", evaluated),
				zap.Float64("best_score", best.Score))
		}
	}

	best := o.store.Best()
	if best == nil {
		return nil, simerrors.New(simerrors.CategoryUndefinedMetric, "optimizer", "run",
			"no candidate produced a usable score")
	}
	o.validate(ctx, best)
	return best, nil
}

// dedupe drops sets whose identity is already in the store and collapses
// within-batch duplicates.
func (o *Optimizer) dedupe(batch []params.Set) []params.Set {
	seen := make(map[string]struct{}, len(batch))
	fresh := make([]params.Set, 0, len(batch))
	for _, set := range batch {
		key := set.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if o.store.Contains(key) {
			continue
		}
		fresh = append(fresh, set)
	}
	return fresh
}

// runBatch evaluates the sets in parallel and inserts the outcomes. It
// returns the number of results that were new to the store. The job queue
// is buffered to the batch size so submission never blocks, which keeps
// Stop safe to call after the loop even when ctx is canceled mid-batch.
func (o *Optimizer) runBatch(ctx context.Context, sets []params.Set) int {
	pool := NewWorkerPool(ctx, o.opts.Workers, len(sets), o.trainEval)
	pool.Start()
	defer pool.Stop()

	submitted := 0
	for _, set := range sets {
		if err := pool.Submit(set); err != nil {
			break
		}
		submitted++
	}

	inserted := 0
	for i := 0; i < submitted; i++ {
		select {
		case result := <-pool.Results():
			if o.store.Insert(result) {
				inserted++
			}
		case <-ctx.Done():
			return inserted
		}
	}
	return inserted
}

// validate scores the winner on the hold-out split and logs a warning when
// the training score does not carry over.
func (o *Optimizer) validate(ctx context.Context, best *Result) {
	if o.valEval == nil {
		return
	}
	valResult := o.valEval.Evaluate(ctx, best.Params)
	if valResult.Status != StatusOK {
		o.log.Warn("validation evaluation failed",
			zap.String("params", best.Key()),
			zap.Error(valResult.Err))
		return
	}
	best.ValidationScore = valResult.Score
	best.ValidationDefined = true
	if gap := best.Score - valResult.Score; gap > o.opts.OverfitGap {
		o.log.Warn("validation score lags training score, candidate may be overfit",
			zap.String("params", best.Key()),
			zap.Float64("train_score", best.Score),
			zap.Float64("validation_score", valResult.Score),
			zap.Float64("gap", gap))
	}
}
