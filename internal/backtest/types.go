// Package backtest implements the single-symbol trade simulator: the
// position ledger, the entry/exit state machine and performance metrics.
package backtest

import (
	"time"

	"github.com/quantlab/stocklab/pkg/params"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTarget   ExitReason = "target"
	ExitStopLoss ExitReason = "stop_loss"
	ExitMaxHold  ExitReason = "max_hold"
)

// SizingMode selects how position_size is interpreted when opening.
type SizingMode string

const (
	// SizingFixed treats position_size as a cash amount.
	SizingFixed SizingMode = "fixed"
	// SizingFraction treats position_size as a fraction of available cash.
	SizingFraction SizingMode = "fraction"
)

// Position is an open holding in the ledger.
type Position struct {
	Symbol     string
	EntryDate  time.Time
	EntryIndex int
	EntryPrice float64
	Quantity   float64
	Cost       float64
	// LastMark is the most recent price the position was valued at. It
	// starts at the entry price and is refreshed on every date that has a
	// close. HighMark is the highest mark seen while holding.
	LastMark    float64
	HighMark    float64
	EntrySignal string
}

// Trade is a completed round trip.
type Trade struct {
	Symbol      string     `json:"symbol"`
	EntryDate   time.Time  `json:"entry_date"`
	ExitDate    time.Time  `json:"exit_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	Quantity    float64    `json:"quantity"`
	PnL         float64    `json:"pnl"`
	ReturnPct   float64    `json:"return_pct"`
	MaxGainPct  float64    `json:"max_gain_pct"`
	HoldingDays int        `json:"holding_days"`
	EntrySignal string     `json:"entry_signal"`
	ExitReason  ExitReason `json:"exit_reason"`
}

// EquityPoint is the portfolio value at the end of one trading date.
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// EquityCurve is the date-ordered equity history of a run.
type EquityCurve []EquityPoint

// Final returns the last equity value, or 0 for an empty curve.
func (c EquityCurve) Final() float64 {
	if len(c) == 0 {
		return 0
	}
	return c[len(c)-1].Value
}

// RunResult is the full output of one simulation over one symbol.
type RunResult struct {
	Symbol      string      `json:"symbol"`
	Params      params.Set  `json:"params"`
	Trades      []Trade     `json:"trades"`
	EquityCurve EquityCurve `json:"equity_curve"`
	FinalValue  float64     `json:"final_value"`
	Metrics     Metrics     `json:"metrics"`
}
