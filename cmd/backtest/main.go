// Command backtest runs the simulator once over a dataset with a fixed
// parameter set and reports per-symbol results.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/quantlab/stocklab/internal/backtest"
	"github.com/quantlab/stocklab/internal/logger"
	"github.com/quantlab/stocklab/pkg/config"
	"github.com/quantlab/stocklab/pkg/data"
	"github.com/quantlab/stocklab/pkg/reporting"
)

type flags struct {
	configPath string
	dataFile   string
	symbol     string
	outputDir  string
	showTrades bool
	debug      bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to the run config JSON (required)")
	flag.StringVar(&f.dataFile, "data", "", "override the configured data file")
	flag.StringVar(&f.symbol, "symbol", "", "restrict the run to one symbol")
	flag.StringVar(&f.outputDir, "output", "", "override the configured output directory")
	flag.BoolVar(&f.showTrades, "trades", false, "print the trade log per symbol")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.Parse()
	return f
}

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if f.configPath == "" {
		flag.Usage()
		return fmt.Errorf("-config is required")
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.dataFile != "" {
		cfg.DataFile = f.dataFile
	}
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}

	log, closeLog, err := logger.New(logger.Options{Debug: f.debug, Dir: cfg.OutputDir, Run: "backtest"})
	if err != nil {
		return err
	}
	defer closeLog()

	provider := data.NewCachedProvider(data.NewCSVProvider(), 0)
	dataset, err := provider.Load(cfg.DataFile)
	if err != nil {
		return err
	}
	if f.symbol != "" {
		cfg.Symbols = []string{f.symbol}
	}
	dataset = data.FilterSymbols(dataset, cfg.Symbols)
	ranged, err := cfg.DateRange()
	if err != nil {
		return err
	}
	dataset = data.FilterDateRange(dataset, ranged[0], ranged[1])
	if len(dataset) == 0 {
		return fmt.Errorf("no symbols to simulate after filtering")
	}
	log.Info("dataset loaded",
		zap.String("file", cfg.DataFile),
		zap.Int("symbols", len(dataset)),
		zap.Int("snapshots", dataset.TotalSnapshots()))

	eng, err := backtest.NewEngine(backtest.Config{
		Params:       cfg.ParameterSet(),
		Sizing:       backtest.SizingMode(cfg.Sizing),
		RiskFreeRate: cfg.RiskFreeRate,
	})
	if err != nil {
		return err
	}

	console := reporting.NewConsoleReporter()
	for _, symbol := range dataset.Symbols() {
		result, err := eng.Run(dataset[symbol])
		if err != nil {
			return fmt.Errorf("simulate %s: %w", symbol, err)
		}
		console.PrintRunResult(result)
		if f.showTrades {
			console.PrintTrades(result)
		}
		tradesPath := filepath.Join(cfg.OutputDir, symbol+"_trades.csv")
		if err := reporting.WriteTradesCSV(result, tradesPath); err != nil {
			return err
		}
		equityPath := filepath.Join(cfg.OutputDir, symbol+"_equity.csv")
		if err := reporting.WriteEquityCSV(result, equityPath); err != nil {
			return err
		}
		log.Info("symbol simulated",
			zap.String("symbol", symbol),
			zap.Int("trades", len(result.Trades)),
			zap.Float64("final_value", result.FinalValue))
	}
	return nil
}
