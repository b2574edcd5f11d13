package backtest

import (
	"math"
	"time"

	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/params"
	"github.com/quantlab/stocklab/pkg/types"
)

// Config drives one simulation run.
type Config struct {
	Params params.Set
	// Sizing selects how position_size is read. Defaults to SizingFixed.
	Sizing SizingMode
	// StartDate anchors the degenerate one-point equity curve produced for
	// an empty series. Ignored when the series has data.
	StartDate time.Time
	// RiskFreeRate is the annual risk-free rate used by the Sharpe ratio.
	RiskFreeRate float64
}

// Engine runs the Flat/Holding state machine over one indicator series.
// Fills happen at the close of the signal date; a position closed on a date
// cannot be reopened on that same date.
type Engine struct {
	cfg Config
}

// NewEngine validates the configuration and builds an engine. Parameter
// violations surface here, before any simulation work.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Params == nil {
		return nil, simerrors.NewInvalidConfig("engine", "new", "nil parameter set")
	}
	required := []string{
		params.KeyInitialCapital, params.KeyMinHoldDays, params.KeyMaxHoldDays,
		params.KeyPositionCount, params.KeyPositionSize,
		params.KeyEntryPricePositionMax, params.KeyExitPricePositionMin,
		params.KeyStopLossPct,
	}
	for _, k := range required {
		if _, ok := cfg.Params[k]; !ok {
			return nil, simerrors.NewInvalidConfig("engine", "new", "missing parameter "+k)
		}
	}
	if err := params.ValidateRules(cfg.Params); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "engine", "new", "parameter validation failed")
	}
	if cfg.Sizing == "" {
		cfg.Sizing = SizingFixed
	}
	if cfg.Sizing != SizingFixed && cfg.Sizing != SizingFraction {
		return nil, simerrors.NewInvalidConfig("engine", "new", "unknown sizing mode "+string(cfg.Sizing))
	}
	return &Engine{cfg: cfg}, nil
}

// Run simulates the series and returns the trades, equity curve and metrics.
// An empty series yields a one-point curve at the initial capital.
func (e *Engine) Run(series types.IndicatorSeries) (*RunResult, error) {
	if err := series.Validate(); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "engine", "run", "unordered series")
	}
	p := e.cfg.Params
	capital := p.Float(params.KeyInitialCapital)
	ledger := NewLedger(capital)

	result := &RunResult{Symbol: series.Symbol, Params: p.Clone()}
	if series.Empty() {
		start := e.cfg.StartDate
		if start.IsZero() {
			start = time.Now().Truncate(24 * time.Hour)
		}
		result.EquityCurve = EquityCurve{{Date: start, Value: capital}}
		result.FinalValue = capital
		result.Metrics = Summarize(result.EquityCurve, nil, e.cfg.RiskFreeRate)
		return result, nil
	}

	curve := make(EquityCurve, 0, series.Len())
	for i, snap := range series.Snapshots {
		ledger.Mark(series.Symbol, snap.Close)

		exitedToday := false
		if pos, held := ledger.Position(series.Symbol); held {
			daysHeld := i - pos.EntryIndex
			if reason, fire := e.exitSignal(snap, pos, daysHeld); fire {
				if _, err := ledger.Close(series.Symbol, snap.Date, i, pos.LastMark, reason); err != nil {
					return nil, err
				}
				exitedToday = true
			}
		}
		if _, held := ledger.Position(series.Symbol); !held && !exitedToday {
			if signal, fire := e.entrySignal(snap); fire {
				amount := e.orderAmount(ledger.Cash())
				if amount > 0 {
					if _, err := ledger.Open(series.Symbol, snap.Date, i, snap.Close, amount, signal); err != nil {
						return nil, err
					}
				}
			}
		}
		curve = append(curve, EquityPoint{Date: snap.Date, Value: ledger.TotalValue()})
	}

	result.Trades = ledger.Trades()
	result.EquityCurve = curve
	result.FinalValue = curve.Final()
	result.Metrics = Summarize(curve, result.Trades, e.cfg.RiskFreeRate)
	return result, nil
}

// orderAmount resolves position_size and position_count against available
// cash under the configured sizing mode.
func (e *Engine) orderAmount(cash float64) float64 {
	size := e.cfg.Params.Float(params.KeyPositionSize)
	count := float64(e.cfg.Params.Int(params.KeyPositionCount))
	if count < 1 {
		count = 1
	}
	var amount float64
	switch e.cfg.Sizing {
	case SizingFraction:
		amount = cash * math.Min(size*count, 1.0)
	default:
		amount = size * count
	}
	if amount > cash {
		amount = cash
	}
	return amount
}

// entrySignal evaluates the Flat-state entry conditions against one
// snapshot. A snapshot whose required fields are missing never fires; the
// gap is skipped, not an error. Entry also requires a usable close for the
// fill.
func (e *Engine) entrySignal(snap types.IndicatorSnapshot) (string, bool) {
	if !types.Defined(snap.Close, snap.PricePosition) || snap.Close <= 0 {
		return "", false
	}
	p := e.cfg.Params
	if snap.PricePosition > p.Float(params.KeyEntryPricePositionMax) {
		return "", false
	}
	if flowMin := p.Float(params.KeyEntryFlowRateMin); types.Defined(snap.FlowRate, flowMin) && snap.FlowRate >= flowMin {
		return "flow", true
	}
	if snap.ReversalCross > 0 {
		return "reversal", true
	}
	return "", false
}

// exitSignal evaluates the Holding-state exit conditions in precedence
// order: target, then stop loss, then the max-hold forced exit. Target and
// stop are gated behind min_hold_days; the max-hold horizon fires no matter
// what. The fill price is always the position's last mark, so a date with
// no close exits at the prior known price.
func (e *Engine) exitSignal(snap types.IndicatorSnapshot, pos *Position, daysHeld int) (ExitReason, bool) {
	p := e.cfg.Params
	if daysHeld >= p.Int(params.KeyMinHoldDays) {
		if types.Defined(snap.PricePosition) && snap.PricePosition >= p.Float(params.KeyExitPricePositionMin) {
			rsdMin := p.Float(params.KeyExitRSDMin)
			if math.IsNaN(rsdMin) || (types.Defined(snap.RSD) && snap.RSD >= rsdMin) {
				return ExitTarget, true
			}
		}
		if stop := p.Float(params.KeyStopLossPct); stop > 0 && pos.EntryPrice > 0 {
			if (pos.LastMark-pos.EntryPrice)/pos.EntryPrice <= -stop {
				return ExitStopLoss, true
			}
		}
	}
	if maxHold := p.Int(params.KeyMaxHoldDays); maxHold > 0 && daysHeld >= maxHold {
		return ExitMaxHold, true
	}
	return "", false
}
