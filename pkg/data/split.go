package data

import (
	"time"

	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/types"
)

// FilterSymbols keeps only the named symbols. An empty list keeps all.
func FilterSymbols(ds types.Dataset, symbols []string) types.Dataset {
	if len(symbols) == 0 {
		return ds
	}
	out := make(types.Dataset, len(symbols))
	for _, sym := range symbols {
		if series, ok := ds[sym]; ok {
			out[sym] = series
		}
	}
	return out
}

// FilterDateRange restricts every series to [from, to]. A zero bound is
// open on that side.
func FilterDateRange(ds types.Dataset, from, to time.Time) types.Dataset {
	out := make(types.Dataset, len(ds))
	for sym, series := range ds {
		out[sym] = series.Slice(from, to)
	}
	return out
}

// SplitByRatio splits each series chronologically: the first ratio of its
// snapshots becomes training data, the remainder validation. Ratio must be
// in (0, 1); use 1.0 upstream to skip validation entirely.
func SplitByRatio(ds types.Dataset, ratio float64) (types.Dataset, types.Dataset, error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, simerrors.NewInvalidConfig("data", "split",
			"split ratio must be strictly between 0 and 1")
	}
	train := make(types.Dataset, len(ds))
	validation := make(types.Dataset, len(ds))
	for sym, series := range ds {
		n := int(float64(series.Len()) * ratio)
		head, tail := series.SplitAt(n)
		train[sym] = head
		if !tail.Empty() {
			validation[sym] = tail
		}
	}
	return train, validation, nil
}
