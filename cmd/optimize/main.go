// Command optimize searches a parameter space for the best-scoring
// strategy settings and reports the ranked candidates.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/quantlab/stocklab/internal/backtest"
	"github.com/quantlab/stocklab/internal/logger"
	"github.com/quantlab/stocklab/internal/monitoring"
	"github.com/quantlab/stocklab/internal/optimizer"
	"github.com/quantlab/stocklab/pkg/config"
	"github.com/quantlab/stocklab/pkg/data"
	"github.com/quantlab/stocklab/pkg/params"
	"github.com/quantlab/stocklab/pkg/reporting"
	"github.com/quantlab/stocklab/pkg/types"
)

const leaderboardLimit = 20

type flags struct {
	configPath  string
	strategy    string
	budget      int
	workers     int
	metricsAddr string
	debug       bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to the run config JSON (required)")
	flag.StringVar(&f.strategy, "strategy", "", "override the search strategy (grid, genetic, bayesian)")
	flag.IntVar(&f.budget, "budget", 0, "override the evaluation budget")
	flag.IntVar(&f.workers, "workers", 0, "override the worker count")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
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
	if f.strategy != "" {
		cfg.Strategy = f.strategy
	}
	if f.budget > 0 {
		cfg.Budget = f.budget
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}

	log, closeLog, err := logger.New(logger.Options{Debug: f.debug, Dir: cfg.OutputDir, Run: "optimize_" + cfg.Strategy})
	if err != nil {
		return err
	}
	defer closeLog()

	if f.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.Handler())
		go func() {
			if err := http.ListenAndServe(f.metricsAddr, mux); err != nil {
				log.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
	}

	provider := data.NewCachedProvider(data.NewCSVProvider(), 0)
	dataset, err := provider.Load(cfg.DataFile)
	if err != nil {
		return err
	}
	dataset = data.FilterSymbols(dataset, cfg.Symbols)
	ranged, err := cfg.DateRange()
	if err != nil {
		return err
	}
	dataset = data.FilterDateRange(dataset, ranged[0], ranged[1])
	if len(dataset) == 0 {
		return fmt.Errorf("no symbols to optimize after filtering")
	}

	train := dataset
	var valSet types.Dataset
	if cfg.TrainRatio < 1 {
		train, valSet, err = data.SplitByRatio(dataset, cfg.TrainRatio)
		if err != nil {
			return err
		}
	}
	log.Info("dataset ready",
		zap.Int("symbols", len(dataset)),
		zap.Int("train_snapshots", train.TotalSnapshots()),
		zap.Int("validation_snapshots", valSet.TotalSnapshots()))

	strategy, err := optimizer.NewStrategy(cfg.Strategy, params.DefaultSpace(), optimizer.StrategyConfig{
		Seed: cfg.Seed,
	})
	if err != nil {
		return err
	}

	opt, err := optimizer.New(train, valSet, optimizer.Options{
		Strategy:        strategy,
		Budget:          cfg.Budget,
		Workers:         cfg.Workers,
		EvalTimeout:     cfg.EvalTimeout(),
		Sizing:          backtest.SizingMode(cfg.Sizing),
		RiskFreeRate:    cfg.RiskFreeRate,
		DrawdownPenalty: cfg.DrawdownPenalty,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	best, err := opt.Run(ctx)
	if err != nil {
		return err
	}
	log.Info("search finished",
		zap.String("strategy", cfg.Strategy),
		zap.Int("evaluated", opt.Store().Len()),
		zap.Float64("best_score", best.Score),
		zap.String("best_params", best.Key()))

	board := opt.Store().Leaderboard()
	console := reporting.NewConsoleReporter()
	console.PrintLeaderboard(board, leaderboardLimit)

	if err := reporting.WriteLeaderboardCSV(board, filepath.Join(cfg.OutputDir, "leaderboard.csv")); err != nil {
		return fmt.Errorf("write leaderboard.csv: %w", err)
	}
	if err := reporting.WriteLeaderboardXLSX(board, filepath.Join(cfg.OutputDir, "leaderboard.xlsx")); err != nil {
		return fmt.Errorf("write leaderboard.xlsx: %w", err)
	}
	if err := reporting.WriteBestParamsJSON(best, opt.Store().Len(), filepath.Join(cfg.OutputDir, "best.json")); err != nil {
		return fmt.Errorf("write best.json: %w", err)
	}
	return nil
}
