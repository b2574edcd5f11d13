package data

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlab/stocklab/pkg/types"
)

const sampleCSV = `symbol,date,close,price_position,rsd,flow_rate,reversal_cross,pe_position
AAA,2024-01-03,10.5,0.3,8.2,0.15,0,
AAA,2024-01-02,10.0,0.5,7.9,0.12,1,0.4
BBB,2024-01-02,20.0,0.1,,0.05,0,
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indicators.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVProviderLoad(t *testing.T) {
	ds, err := NewCSVProvider().Load(writeFixture(t, sampleCSV))
	require.NoError(t, err)
	require.Len(t, ds, 2)

	aaa := ds["AAA"]
	require.Equal(t, 2, aaa.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), aaa.Snapshots[0].Date,
		"snapshots must be sorted by date")
	assert.Equal(t, 10.0, aaa.Snapshots[0].Close)
	assert.Equal(t, 1, aaa.Snapshots[0].ReversalCross)
	assert.Equal(t, 0.4, aaa.Snapshots[0].PEPosition)
	assert.True(t, math.IsNaN(aaa.Snapshots[1].PEPosition), "empty cell parses as NaN")

	bbb := ds["BBB"]
	require.Equal(t, 1, bbb.Len())
	assert.True(t, math.IsNaN(bbb.Snapshots[0].RSD))
	assert.True(t, math.IsNaN(bbb.Snapshots[0].PrevRSD), "absent column parses as NaN")
}

func TestCSVProviderRejectsMissingColumns(t *testing.T) {
	_, err := NewCSVProvider().Load(writeFixture(t, "symbol,date\nAAA,2024-01-02\n"))
	require.Error(t, err)
}

func TestCSVProviderRejectsDuplicateDates(t *testing.T) {
	dup := `symbol,date,close
AAA,2024-01-02,10
AAA,2024-01-02,11
`
	_, err := NewCSVProvider().Load(writeFixture(t, dup))
	require.Error(t, err)
}

func TestCSVProviderRejectsBadDate(t *testing.T) {
	_, err := NewCSVProvider().Load(writeFixture(t, "symbol,date,close\nAAA,02/01/2024,10\n"))
	require.Error(t, err)
}

func TestCachedProviderLoadsOnce(t *testing.T) {
	path := writeFixture(t, sampleCSV)
	cached := NewCachedProvider(NewCSVProvider(), 0)

	first, err := cached.Load(path)
	require.NoError(t, err)
	// Removing the file proves the second load is served from memory.
	require.NoError(t, os.Remove(path))
	second, err := cached.Load(path)
	require.NoError(t, err)
	assert.Equal(t, first.Symbols(), second.Symbols())
}

func TestMemoryCacheTTL(t *testing.T) {
	cache := NewMemoryCache(time.Nanosecond)
	cache.Put("k", types.Dataset{})
	time.Sleep(time.Millisecond)
	_, ok := cache.Get("k")
	assert.False(t, ok, "expired entries must miss")
}

func syntheticDataset(days int) types.Dataset {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	series := types.IndicatorSeries{Symbol: "AAA"}
	for i := 0; i < days; i++ {
		series.Snapshots = append(series.Snapshots, types.IndicatorSnapshot{
			Date:  start.AddDate(0, 0, i),
			Close: 10 + float64(i),
		})
	}
	return types.Dataset{"AAA": series}
}

func TestSplitByRatio(t *testing.T) {
	train, validation, err := SplitByRatio(syntheticDataset(10), 0.7)
	require.NoError(t, err)

	assert.Equal(t, 7, train["AAA"].Len())
	assert.Equal(t, 3, validation["AAA"].Len())
	assert.True(t, train["AAA"].End().Before(validation["AAA"].Start()),
		"validation data must come strictly after training data")
}

func TestSplitByRatioRejectsDegenerateRatio(t *testing.T) {
	for _, ratio := range []float64{0, 1, -0.5, 1.5} {
		_, _, err := SplitByRatio(syntheticDataset(10), ratio)
		assert.Error(t, err, "ratio %v", ratio)
	}
}

func TestFilterSymbols(t *testing.T) {
	ds := syntheticDataset(3)
	ds["BBB"] = types.IndicatorSeries{Symbol: "BBB"}

	filtered := FilterSymbols(ds, []string{"AAA"})
	assert.Equal(t, []string{"AAA"}, filtered.Symbols())

	all := FilterSymbols(ds, nil)
	assert.Len(t, all, 2)
}

func TestFilterDateRange(t *testing.T) {
	ds := syntheticDataset(10)
	from := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)

	out := FilterDateRange(ds, from, to)
	require.Equal(t, 4, out["AAA"].Len())
	assert.Equal(t, from, out["AAA"].Start())
	assert.Equal(t, to, out["AAA"].End())
}
