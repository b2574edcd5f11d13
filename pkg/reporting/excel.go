package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/quantlab/stocklab/internal/optimizer"
)

// WriteLeaderboardXLSX writes the ranked search results to a workbook with
// a summary sheet and a per-symbol metrics sheet for the winner.
func WriteLeaderboardXLSX(results []*optimizer.Result, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const leaderboardSheet = "Leaderboard"
	const bestSheet = "Best Candidate"
	fx.SetSheetName(fx.GetSheetName(0), leaderboardSheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F5496"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := writeLeaderboardSheet(fx, leaderboardSheet, results, headerStyle); err != nil {
		return err
	}
	if len(results) > 0 {
		if _, err := fx.NewSheet(bestSheet); err != nil {
			return err
		}
		if err := writeBestSheet(fx, bestSheet, results[0], headerStyle); err != nil {
			return err
		}
	}
	return fx.SaveAs(path)
}

func writeLeaderboardSheet(fx *excelize.File, sheet string, results []*optimizer.Result, headerStyle int) error {
	header := []interface{}{"Rank", "Score", "Validation", "Status"}
	var keys []string
	if len(results) > 0 {
		keys = results[0].Params.Keys()
		for _, key := range keys {
			header = append(header, key)
		}
	}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	endCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", endCol+"1", headerStyle); err != nil {
		return err
	}

	for i, res := range results {
		row := []interface{}{i + 1, res.Score}
		if res.ValidationDefined {
			row = append(row, res.ValidationScore)
		} else {
			row = append(row, "-")
		}
		row = append(row, string(res.Status))
		for _, key := range keys {
			row = append(row, res.Params.Float(key))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeBestSheet(fx *excelize.File, sheet string, best *optimizer.Result, headerStyle int) error {
	header := []interface{}{"Symbol", "Total Return", "Max Drawdown", "Sharpe", "Win Rate", "Half-Kelly", "Trades"}
	if err := fx.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := fx.SetCellStyle(sheet, "A1", "G1", headerStyle); err != nil {
		return err
	}

	row := 2
	for _, symbol := range sortedMetricKeys(best) {
		m := best.Metrics[symbol]
		sharpe := interface{}("undefined")
		if m.SharpeDefined {
			sharpe = m.SharpeRatio
		}
		winRate := interface{}("undefined")
		if m.WinRateDefined {
			winRate = m.WinRate
		}
		kelly := interface{}("undefined")
		if m.KellyDefined {
			kelly = m.KellyFraction
		}
		values := []interface{}{symbol, m.TotalReturn, m.MaxDrawdown, sharpe, winRate, kelly, m.TradeCount}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := fx.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}
	return nil
}

func sortedMetricKeys(res *optimizer.Result) []string {
	keys := make([]string, 0, len(res.Metrics))
	for k := range res.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
