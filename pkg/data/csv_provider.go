// Package data loads indicator datasets, caches them and slices them into
// train/validation splits.
package data

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/types"
)

// Provider loads the indicator dataset from some backing source.
type Provider interface {
	Load(path string) (types.Dataset, error)
}

// CSVProvider reads precomputed indicator snapshots from a CSV export of
// the indicator pipeline. Header names are matched case-insensitively;
// empty numeric cells become NaN.
type CSVProvider struct{}

// NewCSVProvider creates the file-backed provider.
func NewCSVProvider() *CSVProvider { return &CSVProvider{} }

const csvDateLayout = "2006-01-02"

var requiredColumns = []string{"symbol", "date", "close"}

// Load parses the file into a dataset, one series per symbol, snapshots
// sorted by date. Duplicate dates within a symbol are rejected.
func (p *CSVProvider) Load(path string) (types.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "data", "load", "cannot open "+path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "data", "load", "malformed csv "+path)
	}
	if len(records) < 1 {
		return nil, simerrors.NewInvalidConfig("data", "load", "empty file "+path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, simerrors.NewInvalidConfig("data", "load", "missing column "+name)
		}
	}

	dataset := make(types.Dataset)
	for lineNo, rec := range records[1:] {
		symbol := cell(rec, cols, "symbol")
		if symbol == "" {
			return nil, simerrors.NewInvalidConfig("data", "load",
				fmt.Sprintf("row %d: empty symbol", lineNo+2))
		}
		date, err := time.Parse(csvDateLayout, cell(rec, cols, "date"))
		if err != nil {
			return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "data", "load",
				fmt.Sprintf("row %d: bad date", lineNo+2))
		}
		snap := types.IndicatorSnapshot{
			Date:              date,
			Close:             numCell(rec, cols, "close"),
			PricePosition:     numCell(rec, cols, "price_position"),
			PrevPricePosition: numCell(rec, cols, "prev_price_position"),
			PricePosition90d:  numCell(rec, cols, "price_position_90d"),
			RSD:               numCell(rec, cols, "rsd"),
			PrevRSD:           numCell(rec, cols, "prev_rsd"),
			RSDChange:         numCell(rec, cols, "rsd_chg"),
			MASlope:           numCell(rec, cols, "ma_slope"),
			CloseSlope:        numCell(rec, cols, "close_slope"),
			PctChange:         numCell(rec, cols, "pct_chg"),
			FlowRate:          numCell(rec, cols, "flow_rate"),
			ReversalCross:     int(zeroIfNaN(numCell(rec, cols, "reversal_cross"))),
			PEPosition:        numCell(rec, cols, "pe_position"),
			LossFlag:          boolCell(rec, cols, "loss_flag"),
		}
		series := dataset[symbol]
		series.Symbol = symbol
		series.Snapshots = append(series.Snapshots, snap)
		dataset[symbol] = series
	}

	for symbol, series := range dataset {
		sort.Slice(series.Snapshots, func(i, j int) bool {
			return series.Snapshots[i].Date.Before(series.Snapshots[j].Date)
		})
		if err := series.Validate(); err != nil {
			return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "data", "load",
				"duplicate dates for "+symbol)
		}
		dataset[symbol] = series
	}
	return dataset, nil
}

func cell(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// numCell parses a numeric cell; a missing column or empty cell is NaN.
func numCell(rec []string, cols map[string]int, name string) float64 {
	raw := cell(rec, cols, name)
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func boolCell(rec []string, cols map[string]int, name string) bool {
	raw := strings.ToLower(cell(rec, cols, name))
	return raw == "1" || raw == "true" || raw == "yes"
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
