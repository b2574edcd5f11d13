package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/params"
	"github.com/quantlab/stocklab/pkg/types"
)

var testStart = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

// buildSeries creates a series where every snapshot passes the flow-rate
// entry gate and the RSD exit confirmation, so tests steer the state
// machine purely through close and price position.
func buildSeries(symbol string, closes, positions []float64) types.IndicatorSeries {
	s := types.IndicatorSeries{Symbol: symbol}
	for i := range closes {
		s.Snapshots = append(s.Snapshots, types.IndicatorSnapshot{
			Date:              testStart.AddDate(0, 0, i),
			Close:             closes[i],
			PricePosition:     positions[i],
			PrevPricePosition: positions[i],
			RSD:               12.0,
			FlowRate:          1.0,
			PEPosition:        math.NaN(),
		})
	}
	return s
}

func testParams(over params.Set) params.Set {
	return params.Defaults().Merge(over)
}

func newTestEngine(t *testing.T, over params.Set) *Engine {
	t.Helper()
	eng, err := NewEngine(Config{Params: testParams(over)})
	require.NoError(t, err)
	return eng
}

func TestEngineVShapeRoundTrip(t *testing.T) {
	closes := []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11}
	positions := []float64{1.0, 0.75, 0.5, 0.25, 0.0, 0.2, 0.4, 0.6, 0.8, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{
		params.KeyMinHoldDays:           1,
		params.KeyEntryPricePositionMax: 0.2,
		params.KeyExitPricePositionMin:  0.8,
	})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, testStart.AddDate(0, 0, 4), trade.EntryDate, "should enter at the trough")
	assert.Equal(t, 6.0, trade.EntryPrice)
	assert.Equal(t, testStart.AddDate(0, 0, 8), trade.ExitDate)
	assert.Equal(t, 10.0, trade.ExitPrice)
	assert.Equal(t, ExitTarget, trade.ExitReason)
	assert.Greater(t, trade.PnL, 0.0, "round trip from 6 to 10 should be profitable")

	assert.Len(t, result.EquityCurve, len(closes))
	expectedFinal := 10000.0 + trade.PnL
	assert.InDelta(t, expectedFinal, result.FinalValue, 1e-9)
}

func TestEngineEmptySeries(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	eng, err := NewEngine(Config{Params: params.Defaults(), StartDate: start})
	require.NoError(t, err)

	result, err := eng.Run(types.IndicatorSeries{Symbol: "EMPTY"})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	require.Len(t, result.EquityCurve, 1)
	assert.Equal(t, start, result.EquityCurve[0].Date)
	assert.Equal(t, 10000.0, result.EquityCurve[0].Value)
	assert.Equal(t, 0.0, result.Metrics.TotalReturn)
	assert.False(t, result.Metrics.SharpeDefined, "Sharpe has no value for a one-point curve")
}

func TestEngineExitBeforeSameDateReentry(t *testing.T) {
	// Overlapping thresholds: position 0.6 satisfies both the exit
	// condition (>= 0.5) and the entry condition (<= 0.9).
	closes := []float64{10, 11, 11, 11}
	positions := []float64{0.1, 0.6, 0.6, 0.2}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{
		params.KeyMinHoldDays:           0,
		params.KeyEntryPricePositionMax: 0.9,
		params.KeyExitPricePositionMin:  0.5,
	})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(result.Trades), 1)
	first := result.Trades[0]
	assert.Equal(t, testStart, first.EntryDate)
	assert.Equal(t, testStart.AddDate(0, 0, 1), first.ExitDate)
	if len(result.Trades) > 1 {
		assert.True(t, result.Trades[1].EntryDate.After(first.ExitDate),
			"freed capital must not re-enter on the exit date")
	}
}

func TestEngineMinHoldZeroAllowsNextDayExit(t *testing.T) {
	closes := []float64{10, 10, 10}
	positions := []float64{0.0, 1.0, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{params.KeyMinHoldDays: 0})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, 1, result.Trades[0].HoldingDays)
	assert.Equal(t, ExitTarget, result.Trades[0].ExitReason)
}

func TestEngineMinHoldGatesTargetExit(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10}
	positions := []float64{0.0, 1.0, 1.0, 1.0, 1.0, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{params.KeyMinHoldDays: 3})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, 3, result.Trades[0].HoldingDays,
		"target exit must wait for the minimum hold")
}

func TestEngineMaxHoldForcesExit(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10}
	// Position stays at the lower band: no target, no stop.
	positions := []float64{0.0, 0.0, 0.0, 0.0, 0.0, 0.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{
		params.KeyMinHoldDays: 0,
		params.KeyMaxHoldDays: 3,
	})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.NotEmpty(t, result.Trades)
	assert.Equal(t, ExitMaxHold, result.Trades[0].ExitReason)
	assert.Equal(t, 3, result.Trades[0].HoldingDays)
}

func TestEngineStopLossExit(t *testing.T) {
	closes := []float64{10, 9.5, 8.5, 8.5}
	positions := []float64{0.0, 0.3, 0.3, 0.3}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{
		params.KeyMinHoldDays: 0,
		params.KeyStopLossPct: 0.10,
	})
	result, err := eng.Run(series)
	require.NoError(t, err)

	require.NotEmpty(t, result.Trades)
	trade := result.Trades[0]
	assert.Equal(t, ExitStopLoss, trade.ExitReason)
	assert.Equal(t, 8.5, trade.ExitPrice, "15% drawdown breaches the 10% stop")
	assert.Less(t, trade.PnL, 0.0)
}

func TestEngineMissingFieldsSkipSignals(t *testing.T) {
	series := buildSeries("AAA", []float64{10, 10, 10}, []float64{0.0, 0.0, 0.0})
	// A missing price position makes the entry unevaluable for every date.
	for i := range series.Snapshots {
		series.Snapshots[i].PricePosition = math.NaN()
	}

	eng := newTestEngine(t, nil)
	result, err := eng.Run(series)
	require.NoError(t, err)
	assert.Empty(t, result.Trades, "entry must not fire on missing indicator data")
	assert.Len(t, result.EquityCurve, 3)
}

func TestEngineMissingCloseCarriesLastMark(t *testing.T) {
	closes := []float64{10, 12, math.NaN(), 12, 12, 12}
	positions := []float64{0.0, 0.1, 0.1, 0.1, 0.1, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{params.KeyMinHoldDays: 0})
	result, err := eng.Run(series)
	require.NoError(t, err)

	// On the gap date the position is still valued at the prior close.
	assert.InDelta(t, result.EquityCurve[1].Value, result.EquityCurve[2].Value, 1e-9)
}

func TestEnginePortfolioConservation(t *testing.T) {
	closes := []float64{10, 9, 8, 9, 11, 12, 10, 8, 9, 12}
	positions := []float64{0.1, 0.05, 0.0, 0.3, 0.9, 1.0, 0.4, 0.0, 0.3, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{params.KeyMinHoldDays: 1})
	result, err := eng.Run(series)
	require.NoError(t, err)

	// Opening a position moves value from cash into the holding without
	// changing the total, so the entry-date equity matches the prior date.
	for _, trade := range result.Trades {
		for i, pt := range result.EquityCurve {
			if pt.Date.Equal(trade.EntryDate) && i > 0 {
				assert.InDelta(t, result.EquityCurve[i-1].Value, pt.Value, 1e-9,
					"fill must not create or destroy value")
			}
		}
	}

	var realized float64
	for _, trade := range result.Trades {
		realized += trade.PnL
	}
	if len(result.Trades) > 0 {
		last := result.Trades[len(result.Trades)-1]
		if last.ExitDate.Equal(series.End()) || allFlatAfter(result, last.ExitDate) {
			assert.InDelta(t, 10000.0+realized, result.FinalValue, 1e-9)
		}
	}
}

func allFlatAfter(result *RunResult, date time.Time) bool {
	for _, trade := range result.Trades {
		if trade.EntryDate.After(date) {
			return false
		}
	}
	// Equity constant after the last exit means no open position remains.
	var after []float64
	for _, pt := range result.EquityCurve {
		if !pt.Date.Before(date) {
			after = append(after, pt.Value)
		}
	}
	for i := 1; i < len(after); i++ {
		if math.Abs(after[i]-after[0]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestEngineDeterminism(t *testing.T) {
	closes := []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11}
	positions := []float64{1.0, 0.75, 0.5, 0.25, 0.0, 0.2, 0.4, 0.6, 0.8, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng := newTestEngine(t, params.Set{params.KeyMinHoldDays: 1})
	first, err := eng.Run(series)
	require.NoError(t, err)
	second, err := eng.Run(series)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestNewEngineRejectsInvalidParams(t *testing.T) {
	tests := []struct {
		name string
		over params.Set
	}{
		{"negative capital", params.Set{params.KeyInitialCapital: -1}},
		{"zero position size", params.Set{params.KeyPositionSize: 0}},
		{"max hold below min hold", params.Set{params.KeyMinHoldDays: 10, params.KeyMaxHoldDays: 5}},
		{"fractional hold days", params.Set{params.KeyMinHoldDays: 1.5}},
		{"stop loss above one", params.Set{params.KeyStopLossPct: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(Config{Params: testParams(tt.over)})
			require.Error(t, err)
			assert.True(t, simerrors.HasCategory(err, simerrors.CategoryInvalidConfig))
		})
	}
}

func TestNewEngineRejectsMissingParams(t *testing.T) {
	p := params.Defaults()
	delete(p, params.KeyStopLossPct)
	_, err := NewEngine(Config{Params: p})
	require.Error(t, err)
	assert.True(t, simerrors.HasCategory(err, simerrors.CategoryInvalidConfig))
}

func TestEngineFractionSizing(t *testing.T) {
	closes := []float64{10, 10, 10}
	positions := []float64{0.0, 1.0, 1.0}
	series := buildSeries("AAA", closes, positions)

	eng, err := NewEngine(Config{
		Params: testParams(params.Set{
			params.KeyMinHoldDays:  0,
			params.KeyPositionSize: 0.5,
		}),
		Sizing: SizingFraction,
	})
	require.NoError(t, err)

	result, err := eng.Run(series)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.InDelta(t, 500.0, result.Trades[0].Quantity, 1e-9,
		"half of 10000 cash at price 10 buys 500 shares")
}
