// Package reporting renders run results to the console and to CSV, JSON
// and Excel files.
package reporting

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantlab/stocklab/internal/backtest"
	"github.com/quantlab/stocklab/internal/optimizer"
)

// ConsoleReporter renders tables to stdout.
type ConsoleReporter struct{}

// NewConsoleReporter creates the stdout reporter.
func NewConsoleReporter() *ConsoleReporter { return &ConsoleReporter{} }

// PrintRunResult prints the metrics of one simulated symbol.
func (r *ConsoleReporter) PrintRunResult(result *backtest.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("BACKTEST %s", result.Symbol)
	t.SetStyle(table.StyleRounded)

	m := result.Metrics
	t.AppendRows([]table.Row{
		{"Final Value", fmt.Sprintf("%.2f", result.FinalValue)},
		{"Total Return", fmt.Sprintf("%.2f%%", m.TotalReturn*100)},
		{"Annualized Return", formatRatio(m.AnnualizedReturn*100, m.AnnualizedDefined, "%.2f%%")},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", m.MaxDrawdown*100)},
		{"Sharpe Ratio", formatRatio(m.SharpeRatio, m.SharpeDefined, "%.2f")},
		{"Win Rate", formatRatio(m.WinRate*100, m.WinRateDefined, "%.1f%%")},
		{"Win/Loss Odds", formatRatio(m.WinLossOdds, m.KellyDefined, "%.2f")},
		{"Half-Kelly Size", formatRatio(m.KellyFraction*100, m.KellyDefined, "%.1f%%")},
		{"Trades", m.TradeCount},
		{"Avg Holding Days", fmt.Sprintf("%.1f", m.AvgHoldingDays)},
		{"Realized PnL", fmt.Sprintf("%.2f", m.RealizedPnL)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, Align: text.AlignRight},
	})
	t.Render()
	fmt.Println()
}

// PrintTrades prints the trade log of one run.
func (r *ConsoleReporter) PrintTrades(result *backtest.RunResult) {
	if len(result.Trades) == 0 {
		fmt.Printf("no trades for %s\n", result.Symbol)
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADES %s", result.Symbol)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Entry", "Exit", "Days", "Entry Px", "Exit Px", "PnL", "Return", "Signal", "Reason"})
	for _, tr := range result.Trades {
		t.AppendRow(table.Row{
			tr.EntryDate.Format("2006-01-02"),
			tr.ExitDate.Format("2006-01-02"),
			tr.HoldingDays,
			fmt.Sprintf("%.2f", tr.EntryPrice),
			fmt.Sprintf("%.2f", tr.ExitPrice),
			fmt.Sprintf("%.2f", tr.PnL),
			fmt.Sprintf("%.2f%%", tr.ReturnPct*100),
			tr.EntrySignal,
			string(tr.ExitReason),
		})
	}
	t.Render()
	fmt.Println()
}

// PrintLeaderboard prints the top search results, best first.
func (r *ConsoleReporter) PrintLeaderboard(results []*optimizer.Result, limit int) {
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TOP %d CANDIDATES", limit)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "Score", "Validation", "Params"})
	for i, res := range results[:limit] {
		validation := "-"
		if res.ValidationDefined {
			validation = fmt.Sprintf("%.4f", res.ValidationScore)
		}
		t.AppendRow(table.Row{i + 1, fmt.Sprintf("%.4f", res.Score), validation, res.Key()})
	}
	t.Render()
	fmt.Println()
}

func formatRatio(v float64, defined bool, format string) string {
	if !defined {
		return "undefined"
	}
	return fmt.Sprintf(format, v)
}
