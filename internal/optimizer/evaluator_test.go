package optimizer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantlab/stocklab/internal/backtest"
	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/params"
	"github.com/quantlab/stocklab/pkg/types"
)

func fixtureSeries(symbol string, closes, positions []float64) types.IndicatorSeries {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := types.IndicatorSeries{Symbol: symbol}
	for i := range closes {
		s.Snapshots = append(s.Snapshots, types.IndicatorSnapshot{
			Date:          start.AddDate(0, 0, i),
			Close:         closes[i],
			PricePosition: positions[i],
			RSD:           12.0,
			FlowRate:      1.0,
			PEPosition:    math.NaN(),
		})
	}
	return s
}

func fixtureDataset() types.Dataset {
	return types.Dataset{
		"AAA": fixtureSeries("AAA",
			[]float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11},
			[]float64{1.0, 0.75, 0.5, 0.25, 0.0, 0.2, 0.4, 0.6, 0.8, 1.0}),
		"BBB": fixtureSeries("BBB",
			[]float64{20, 19, 18, 19, 21, 23, 22, 24, 25, 26},
			[]float64{0.5, 0.2, 0.0, 0.3, 0.6, 0.9, 0.5, 0.8, 0.9, 1.0}),
	}
}

func TestEvaluatorHappyPath(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 1.0, 0, nil)
	result := ev.Evaluate(context.Background(), params.Defaults())

	assert.Equal(t, StatusOK, result.Status)
	assert.Len(t, result.Metrics, 2)
	assert.False(t, math.IsInf(result.Score, 0))
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestEvaluatorRejectsInvalidParams(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 1.0, 0, nil)
	bad := params.Defaults()
	bad[params.KeyInitialCapital] = -5

	result := ev.Evaluate(context.Background(), bad)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, WorstScore, result.Score)
	assert.True(t, simerrors.HasCategory(result.Err, simerrors.CategoryInvalidConfig))
}

func TestEvaluatorTimeout(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 1.0, time.Nanosecond, nil)

	result := ev.Evaluate(context.Background(), params.Defaults())
	assert.Equal(t, StatusTimeout, result.Status)
	assert.Equal(t, WorstScore, result.Score)
	assert.True(t, simerrors.HasCategory(result.Err, simerrors.CategoryEvalTimeout))
}

func TestEvaluatorDeterministicScore(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 1.0, 0, nil)
	first := ev.Evaluate(context.Background(), params.Defaults())
	second := ev.Evaluate(context.Background(), params.Defaults())
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestScoreUndefinedSharpeContributesZero(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 0, 0, nil)
	metrics := map[string]backtest.Metrics{
		"AAA": {SharpeRatio: 2.0, SharpeDefined: true},
		"BBB": {SharpeDefined: false},
	}
	assert.InDelta(t, 1.0, ev.Score(metrics), 1e-9,
		"an undefined Sharpe must dilute the mean, not poison it")
}

func TestScoreAppliesDrawdownPenalty(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 2.0, 0, nil)
	metrics := map[string]backtest.Metrics{
		"AAA": {SharpeRatio: 1.0, SharpeDefined: true, MaxDrawdown: 0.25},
	}
	assert.InDelta(t, 1.0-2.0*0.25, ev.Score(metrics), 1e-9)
}

func TestScoreEmptyMetrics(t *testing.T) {
	ev := NewEvaluator(fixtureDataset(), backtest.SizingFixed, 0, 1.0, 0, nil)
	assert.Equal(t, 0.0, ev.Score(nil))
}
