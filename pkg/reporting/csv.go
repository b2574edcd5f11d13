package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quantlab/stocklab/internal/backtest"
	"github.com/quantlab/stocklab/internal/optimizer"
)

func createFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return os.Create(path)
}

// WriteTradesCSV writes the trade log of one run.
func WriteTradesCSV(result *backtest.RunResult, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"symbol", "entry_date", "exit_date", "holding_days",
		"entry_price", "exit_price", "quantity", "pnl", "return_pct", "max_gain_pct", "entry_signal", "exit_reason"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, tr := range result.Trades {
		row := []string{
			tr.Symbol,
			tr.EntryDate.Format("2006-01-02"),
			tr.ExitDate.Format("2006-01-02"),
			strconv.Itoa(tr.HoldingDays),
			formatFloat(tr.EntryPrice),
			formatFloat(tr.ExitPrice),
			formatFloat(tr.Quantity),
			formatFloat(tr.PnL),
			formatFloat(tr.ReturnPct),
			formatFloat(tr.MaxGainPct),
			tr.EntrySignal,
			string(tr.ExitReason),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteEquityCSV writes the equity curve of one run.
func WriteEquityCSV(result *backtest.RunResult, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"date", "value"}); err != nil {
		return err
	}
	for _, pt := range result.EquityCurve {
		if err := w.Write([]string{pt.Date.Format("2006-01-02"), formatFloat(pt.Value)}); err != nil {
			return err
		}
	}
	return w.Error()
}

// WriteLeaderboardCSV writes the ranked search results with one column per
// parameter key.
func WriteLeaderboardCSV(results []*optimizer.Result, path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(results) == 0 {
		return w.Write([]string{"rank", "score"})
	}
	keys := results[0].Params.Keys()
	header := append([]string{"rank", "score", "status"}, keys...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, res := range results {
		row := []string{strconv.Itoa(i + 1), formatFloat(res.Score), string(res.Status)}
		for _, key := range keys {
			row = append(row, formatFloat(res.Params.Float(key)))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
