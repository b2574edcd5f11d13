// Package config loads run configuration from JSON files with environment
// overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	simerrors "github.com/quantlab/stocklab/internal/errors"
	"github.com/quantlab/stocklab/pkg/params"
)

const dateLayout = "2006-01-02"

// RunConfig describes one backtest or optimization run.
type RunConfig struct {
	DataFile string   `json:"data_file"`
	Symbols  []string `json:"symbols,omitempty"`

	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// Strategy selects the search: grid, genetic or bayesian.
	Strategy string `json:"strategy,omitempty"`
	Budget   int    `json:"budget,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	Seed     int64  `json:"seed,omitempty"`

	EvalTimeoutSec  int     `json:"eval_timeout_sec,omitempty"`
	TrainRatio      float64 `json:"train_ratio,omitempty"`
	RiskFreeRate    float64 `json:"risk_free_rate,omitempty"`
	DrawdownPenalty float64 `json:"drawdown_penalty,omitempty"`

	// Sizing is "fixed" or "fraction".
	Sizing string `json:"sizing,omitempty"`

	// Params overrides the default parameter values for direct backtests
	// and for keys the search space does not tune.
	Params map[string]float64 `json:"params,omitempty"`

	OutputDir string `json:"output_dir,omitempty"`
}

// Load reads the JSON file at path, applies .env and process environment
// overrides and validates the result.
func Load(path string) (*RunConfig, error) {
	// Missing .env is fine; explicit environment still applies.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "config", "load", "cannot read "+path)
	}
	cfg := defaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "config", "load", "malformed json in "+path)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *RunConfig {
	return &RunConfig{
		Strategy:        "grid",
		Workers:         0, // NumCPU
		EvalTimeoutSec:  60,
		TrainRatio:      0.7,
		DrawdownPenalty: 1.0,
		Sizing:          "fixed",
		OutputDir:       "results",
	}
}

// applyEnv lets deployment environments relocate inputs and outputs and
// resize the pool without editing config files.
func (c *RunConfig) applyEnv() {
	if v := os.Getenv("STOCKLAB_DATA_FILE"); v != "" {
		c.DataFile = v
	}
	if v := os.Getenv("STOCKLAB_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("STOCKLAB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
}

// Validate checks the config before anything executes.
func (c *RunConfig) Validate() error {
	if c.DataFile == "" {
		return simerrors.NewInvalidConfig("config", "validate", "data_file is required")
	}
	switch c.Strategy {
	case "grid", "genetic", "bayesian":
	default:
		return simerrors.NewInvalidConfig("config", "validate", "unknown strategy "+c.Strategy)
	}
	switch c.Sizing {
	case "fixed", "fraction":
	default:
		return simerrors.NewInvalidConfig("config", "validate", "sizing must be fixed or fraction")
	}
	if c.TrainRatio <= 0 || c.TrainRatio > 1 {
		return simerrors.NewInvalidConfig("config", "validate", "train_ratio must be in (0, 1]")
	}
	if c.Budget < 0 {
		return simerrors.NewInvalidConfig("config", "validate", "budget cannot be negative")
	}
	if c.EvalTimeoutSec < 0 {
		return simerrors.NewInvalidConfig("config", "validate", "eval_timeout_sec cannot be negative")
	}
	if _, err := c.DateRange(); err != nil {
		return err
	}
	if err := params.ValidateRules(c.ParameterSet()); err != nil {
		return simerrors.Wrap(err, simerrors.CategoryInvalidConfig, "config", "validate", "bad parameter override")
	}
	return nil
}

// ParameterSet returns the defaults merged with the config's overrides.
func (c *RunConfig) ParameterSet() params.Set {
	return params.Defaults().Merge(params.Set(c.Params))
}

// EvalTimeout returns the per-candidate deadline.
func (c *RunConfig) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutSec) * time.Second
}

// DateRange parses the optional start and end dates.
func (c *RunConfig) DateRange() (ranged [2]time.Time, err error) {
	if c.StartDate != "" {
		ranged[0], err = time.Parse(dateLayout, c.StartDate)
		if err != nil {
			return ranged, simerrors.NewInvalidConfig("config", "validate", fmt.Sprintf("bad start_date %q", c.StartDate))
		}
	}
	if c.EndDate != "" {
		ranged[1], err = time.Parse(dateLayout, c.EndDate)
		if err != nil {
			return ranged, simerrors.NewInvalidConfig("config", "validate", fmt.Sprintf("bad end_date %q", c.EndDate))
		}
	}
	if !ranged[0].IsZero() && !ranged[1].IsZero() && ranged[1].Before(ranged[0]) {
		return ranged, simerrors.NewInvalidConfig("config", "validate", "end_date precedes start_date")
	}
	return ranged, nil
}
