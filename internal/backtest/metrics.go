package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear annualizes daily-return statistics.
const tradingDaysPerYear = 252

// minStdDev is the volatility floor below which a Sharpe ratio is treated
// as undefined rather than exploding.
const minStdDev = 1e-12

// Metrics summarizes one run. Ratios that have no defined value for the
// inputs carry an explicit Defined flag instead of a sentinel number;
// aggregation layers must check the flag, never the value.
type Metrics struct {
	TotalReturn       float64 `json:"total_return"`
	AnnualizedReturn  float64 `json:"annualized_return"`
	AnnualizedDefined bool    `json:"annualized_defined"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	SharpeDefined     bool    `json:"sharpe_defined"`
	WinRate           float64 `json:"win_rate"`
	WinRateDefined    bool    `json:"win_rate_defined"`
	TradeCount        int     `json:"trade_count"`
	WinningTrades     int     `json:"winning_trades"`
	AvgHoldingDays    float64 `json:"avg_holding_days"`
	RealizedPnL       float64 `json:"realized_pnl"`

	// WinLossOdds is average winning return over average losing return.
	// KellyFraction is the half-Kelly position fraction those odds
	// suggest, clamped to [0, 0.5]. Both need at least one winning and
	// one losing trade to be defined.
	WinLossOdds   float64 `json:"win_loss_odds"`
	KellyFraction float64 `json:"kelly_fraction"`
	KellyDefined  bool    `json:"kelly_defined"`
}

// Summarize computes metrics from an equity curve and its trade log.
// riskFreeRate is annual.
func Summarize(curve EquityCurve, trades []Trade, riskFreeRate float64) Metrics {
	var m Metrics
	m.TradeCount = len(trades)

	if len(curve) > 0 && curve[0].Value > 0 {
		m.TotalReturn = curve.Final()/curve[0].Value - 1
	}
	if n := len(curve); n > 1 && m.TotalReturn > -1 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, tradingDaysPerYear/float64(n)) - 1
		m.AnnualizedDefined = true
	}
	m.MaxDrawdown = maxDrawdown(curve)
	m.SharpeRatio, m.SharpeDefined = sharpeRatio(curve, riskFreeRate)

	if len(trades) > 0 {
		var holdSum float64
		for _, t := range trades {
			m.RealizedPnL += t.PnL
			holdSum += float64(t.HoldingDays)
			if t.PnL > 0 {
				m.WinningTrades++
			}
		}
		m.WinRate = float64(m.WinningTrades) / float64(len(trades))
		m.WinRateDefined = true
		m.AvgHoldingDays = holdSum / float64(len(trades))
		m.WinLossOdds, m.KellyFraction, m.KellyDefined = kellyFraction(trades)
	}
	return m
}

// kellyFraction derives win/loss odds from the per-trade returns and the
// half-Kelly position fraction they suggest, clamped to [0, 0.5]. It is
// undefined unless the log has both winning and losing trades.
func kellyFraction(trades []Trade) (odds, fraction float64, ok bool) {
	var winSum, lossSum float64
	var wins, losses int
	for _, t := range trades {
		switch {
		case t.ReturnPct > 0:
			winSum += t.ReturnPct
			wins++
		case t.ReturnPct < 0:
			lossSum -= t.ReturnPct
			losses++
		}
	}
	if wins == 0 || losses == 0 {
		return 0, 0, false
	}
	odds = (winSum / float64(wins)) / (lossSum / float64(losses))
	p := float64(wins) / float64(len(trades))
	kelly := (odds*p - (1 - p)) / odds
	fraction = math.Min(0.5, math.Max(0, kelly/2))
	return odds, fraction, true
}

// maxDrawdown returns the largest peak-to-trough decline as a positive
// fraction, 0 for a curve that never declines.
func maxDrawdown(curve EquityCurve) float64 {
	var peak, maxDD float64
	for _, pt := range curve {
		if pt.Value > peak {
			peak = pt.Value
		}
		if peak > 0 {
			if dd := (peak - pt.Value) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio computes the annualized Sharpe over daily curve returns. It
// is undefined when fewer than two returns exist or the return volatility
// is below the floor (a constant curve).
func sharpeRatio(curve EquityCurve, riskFreeRate float64) (float64, bool) {
	if len(curve) < 3 {
		return 0, false
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, curve[i].Value/prev-1)
	}
	if len(returns) < 2 {
		return 0, false
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std < minStdDev {
		return 0, false
	}
	dailyRiskFree := riskFreeRate / tradingDaysPerYear
	return (mean - dailyRiskFree) / std * math.Sqrt(tradingDaysPerYear), true
}
