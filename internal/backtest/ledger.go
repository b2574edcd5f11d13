package backtest

import (
	"fmt"
	"math"
	"time"

	simerrors "github.com/quantlab/stocklab/internal/errors"
)

// Ledger tracks cash and open positions for one simulation run. Cash only
// changes through Open and Close, so cash plus position cost basis is
// conserved between fills.
type Ledger struct {
	cash      float64
	positions map[string]*Position
	trades    []Trade
}

// NewLedger creates a ledger seeded with the initial capital.
func NewLedger(initialCash float64) *Ledger {
	return &Ledger{
		cash:      initialCash,
		positions: make(map[string]*Position),
	}
}

// Cash returns the current uninvested cash.
func (l *Ledger) Cash() float64 { return l.cash }

// Position returns the open position for symbol, if any.
func (l *Ledger) Position(symbol string) (*Position, bool) {
	p, ok := l.positions[symbol]
	return p, ok
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int { return len(l.positions) }

// Trades returns the completed trades in close order.
func (l *Ledger) Trades() []Trade { return l.trades }

// Open buys into symbol at price, spending amount (capped at available
// cash). Opening while a position for the symbol is already open, or with a
// non-positive price or amount, is an invariant violation.
func (l *Ledger) Open(symbol string, date time.Time, index int, price, amount float64, signal string) (*Position, error) {
	if _, ok := l.positions[symbol]; ok {
		return nil, simerrors.NewSimInvariant("ledger", "open",
			fmt.Sprintf("position already open for %s on %s", symbol, date.Format("2006-01-02")))
	}
	if math.IsNaN(price) || price <= 0 {
		return nil, simerrors.NewSimInvariant("ledger", "open",
			fmt.Sprintf("non-positive fill price %v for %s", price, symbol))
	}
	if math.IsNaN(amount) || amount <= 0 {
		return nil, simerrors.NewSimInvariant("ledger", "open",
			fmt.Sprintf("non-positive order amount %v for %s", amount, symbol))
	}
	if amount > l.cash {
		amount = l.cash
	}
	if amount <= 0 {
		return nil, simerrors.NewSimInvariant("ledger", "open",
			fmt.Sprintf("no cash available to open %s", symbol))
	}
	pos := &Position{
		Symbol:      symbol,
		EntryDate:   date,
		EntryIndex:  index,
		EntryPrice:  price,
		Quantity:    amount / price,
		Cost:        amount,
		LastMark:    price,
		HighMark:    price,
		EntrySignal: signal,
	}
	l.cash -= amount
	l.positions[symbol] = pos
	return pos, nil
}

// Close sells the full position for symbol at price and records the trade.
// Closing a symbol with no open position, or on a date not after the entry
// date, is an invariant violation.
func (l *Ledger) Close(symbol string, date time.Time, index int, price float64, reason ExitReason) (Trade, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return Trade{}, simerrors.NewSimInvariant("ledger", "close",
			fmt.Sprintf("no open position for %s on %s", symbol, date.Format("2006-01-02")))
	}
	if !date.After(pos.EntryDate) {
		return Trade{}, simerrors.NewSimInvariant("ledger", "close",
			fmt.Sprintf("exit date %s not after entry date %s for %s",
				date.Format("2006-01-02"), pos.EntryDate.Format("2006-01-02"), symbol))
	}
	if math.IsNaN(price) || price <= 0 {
		return Trade{}, simerrors.NewSimInvariant("ledger", "close",
			fmt.Sprintf("non-positive fill price %v for %s", price, symbol))
	}
	proceeds := pos.Quantity * price
	trade := Trade{
		Symbol:      symbol,
		EntryDate:   pos.EntryDate,
		ExitDate:    date,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   price,
		Quantity:    pos.Quantity,
		PnL:         proceeds - pos.Cost,
		ReturnPct:   (price - pos.EntryPrice) / pos.EntryPrice,
		MaxGainPct:  (pos.HighMark - pos.EntryPrice) / pos.EntryPrice,
		HoldingDays: index - pos.EntryIndex,
		EntrySignal: pos.EntrySignal,
		ExitReason:  reason,
	}
	l.cash += proceeds
	delete(l.positions, symbol)
	l.trades = append(l.trades, trade)
	return trade, nil
}

// Mark refreshes the valuation price of an open position. NaN marks are
// ignored so the last known price carries forward.
func (l *Ledger) Mark(symbol string, price float64) {
	if pos, ok := l.positions[symbol]; ok && !math.IsNaN(price) && price > 0 {
		pos.LastMark = price
		if price > pos.HighMark {
			pos.HighMark = price
		}
	}
}

// TotalValue returns cash plus all open positions valued at their last
// known prices.
func (l *Ledger) TotalValue() float64 {
	total := l.cash
	for _, pos := range l.positions {
		total += pos.Quantity * pos.LastMark
	}
	return total
}
