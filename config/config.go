// Package config loads and validates engine configuration from YAML or
// JSON files and maps the sections onto the packages that consume them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/optsim/backtest"
	"github.com/rustyeddy/optsim/exit"
	"github.com/rustyeddy/optsim/live"
	"github.com/rustyeddy/optsim/sim"
)

// Config represents the complete engine configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Exit      ExitConfig      `json:"exit" yaml:"exit"`
	Backtest  BacktestConfig  `json:"backtest" yaml:"backtest"`
	Live      LiveConfig      `json:"live" yaml:"live"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger"`
	Report    ReportConfig    `json:"report" yaml:"report"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	StrategyID string  `json:"strategy_id" yaml:"strategy_id"`
	Balance    float64 `json:"balance" yaml:"balance"`
}

// ExecutionConfig contains fill-model parameters
type ExecutionConfig struct {
	SlippageFrac   float64 `json:"slippage_frac" yaml:"slippage_frac"`
	PerContractFee float64 `json:"per_contract_fee" yaml:"per_contract_fee"`
	PerTradeFee    float64 `json:"per_trade_fee" yaml:"per_trade_fee"`
	Multiplier     float64 `json:"multiplier" yaml:"multiplier"`
}

// Costs maps the section onto the execution simulator.
func (e ExecutionConfig) Costs() sim.Costs {
	return sim.Costs{
		SlippageFrac:   e.SlippageFrac,
		PerContractFee: e.PerContractFee,
		PerTradeFee:    e.PerTradeFee,
		Multiplier:     e.Multiplier,
	}
}

// ExitConfig contains exit-rule thresholds
type ExitConfig struct {
	ProfitTargetFrac float64 `json:"profit_target_frac" yaml:"profit_target_frac"`
	StopLossFrac     float64 `json:"stop_loss_frac" yaml:"stop_loss_frac"`
	MinHoldDays      float64 `json:"min_hold_days" yaml:"min_hold_days"`
}

// Rules maps the section onto the exit evaluator.
func (e ExitConfig) Rules() exit.Rules {
	return exit.Rules{
		ProfitTargetFrac: e.ProfitTargetFrac,
		StopLossFrac:     e.StopLossFrac,
		MinHoldDays:      e.MinHoldDays,
	}
}

// BacktestConfig contains walk-forward harness parameters
type BacktestConfig struct {
	TrainDays          int     `json:"train_days" yaml:"train_days"`
	TestDays           int     `json:"test_days" yaml:"test_days"`
	MinConfidence      float64 `json:"min_confidence" yaml:"min_confidence"`
	MaxCapitalPerTrade float64 `json:"max_capital_per_trade" yaml:"max_capital_per_trade"`
	DTE                int     `json:"dte" yaml:"dte"`
	HalfSpreadFrac     float64 `json:"half_spread_frac" yaml:"half_spread_frac"`
	DefaultVol         float64 `json:"default_vol" yaml:"default_vol"`
	MinTestBars        int     `json:"min_test_bars" yaml:"min_test_bars"`
	MaxOpen            int     `json:"max_open" yaml:"max_open"`
	Parallel           bool    `json:"parallel" yaml:"parallel"`
	Timeout            string  `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "5m", "30s"
	Lookback           int     `json:"lookback" yaml:"lookback"`                   // momentum signal SMA window
}

// ParseTimeout converts the timeout string to time.Duration
func (b BacktestConfig) ParseTimeout() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(b.Timeout)
}

// Params maps the section onto the harness, pulling the account balance
// from the account section.
func (c *Config) Params() (backtest.Params, error) {
	timeout, err := c.Backtest.ParseTimeout()
	if err != nil {
		return backtest.Params{}, fmt.Errorf("backtest.timeout: %w", err)
	}
	return backtest.Params{
		TrainDays:          c.Backtest.TrainDays,
		TestDays:           c.Backtest.TestDays,
		MinConfidence:      c.Backtest.MinConfidence,
		MaxCapitalPerTrade: c.Backtest.MaxCapitalPerTrade,
		InitialBalance:     c.Account.Balance,
		DTE:                c.Backtest.DTE,
		HalfSpreadFrac:     c.Backtest.HalfSpreadFrac,
		DefaultVol:         c.Backtest.DefaultVol,
		MinTestBars:        c.Backtest.MinTestBars,
		MaxOpen:            c.Backtest.MaxOpen,
		Parallel:           c.Backtest.Parallel,
		Timeout:            timeout,
	}, nil
}

// LiveConfig contains polling-loop parameters
type LiveConfig struct {
	Underlying    string  `json:"underlying" yaml:"underlying"`
	Interval      string  `json:"interval" yaml:"interval"` // e.g. "1m", "30s"
	RetryBudget   int     `json:"retry_budget" yaml:"retry_budget"`
	MaxCapital    float64 `json:"max_capital" yaml:"max_capital"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
	DTE           int     `json:"dte" yaml:"dte"`
	MaxOpen       int     `json:"max_open" yaml:"max_open"`
}

// Options maps the section onto the live engine.
func (l LiveConfig) Options() (live.Options, error) {
	interval, err := time.ParseDuration(l.Interval)
	if err != nil {
		return live.Options{}, fmt.Errorf("live.interval: %w", err)
	}
	return live.Options{
		Underlying:    l.Underlying,
		Interval:      interval,
		RetryBudget:   l.RetryBudget,
		MaxCapital:    l.MaxCapital,
		MinConfidence: l.MinConfidence,
		DTE:           l.DTE,
		MaxOpen:       l.MaxOpen,
	}, nil
}

// LedgerConfig contains persistence parameters
type LedgerConfig struct {
	Type   string `json:"type" yaml:"type"` // "memory" or "sqlite"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// ReportConfig contains output parameters
type ReportConfig struct {
	OutDir string `json:"out_dir" yaml:"out_dir"`
	Chart  bool   `json:"chart" yaml:"chart"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.StrategyID == "" {
		return fmt.Errorf("account.strategy_id is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Execution.SlippageFrac < 0 || c.Execution.SlippageFrac > 1 {
		return fmt.Errorf("execution.slippage_frac must be between 0 and 1")
	}
	if c.Execution.PerContractFee < 0 || c.Execution.PerTradeFee < 0 {
		return fmt.Errorf("execution fees must not be negative")
	}
	if c.Execution.Multiplier <= 0 {
		return fmt.Errorf("execution.multiplier must be positive")
	}
	if c.Exit.ProfitTargetFrac <= 0 {
		return fmt.Errorf("exit.profit_target_frac must be positive")
	}
	if c.Exit.StopLossFrac <= 0 || c.Exit.StopLossFrac > 1 {
		return fmt.Errorf("exit.stop_loss_frac must be between 0 and 1")
	}
	if c.Exit.MinHoldDays < 0 {
		return fmt.Errorf("exit.min_hold_days must not be negative")
	}
	if c.Backtest.TrainDays <= 0 || c.Backtest.TestDays <= 0 {
		return fmt.Errorf("backtest train_days and test_days must be positive")
	}
	if c.Backtest.MinConfidence < 0 || c.Backtest.MinConfidence > 1 {
		return fmt.Errorf("backtest.min_confidence must be between 0 and 1")
	}
	if c.Backtest.MaxCapitalPerTrade <= 0 {
		return fmt.Errorf("backtest.max_capital_per_trade must be positive")
	}
	if c.Backtest.DTE <= 0 {
		return fmt.Errorf("backtest.dte must be positive")
	}
	if c.Backtest.MinTestBars < 1 {
		return fmt.Errorf("backtest.min_test_bars must be at least 1")
	}
	if c.Backtest.Lookback <= 1 {
		return fmt.Errorf("backtest.lookback must be greater than 1")
	}
	if _, err := c.Backtest.ParseTimeout(); err != nil {
		return fmt.Errorf("backtest.timeout: %w", err)
	}
	if c.Live.Interval != "" {
		if _, err := time.ParseDuration(c.Live.Interval); err != nil {
			return fmt.Errorf("live.interval: %w", err)
		}
	}
	if c.Live.RetryBudget < 0 {
		return fmt.Errorf("live.retry_budget must not be negative")
	}
	if c.Ledger.Type != "memory" && c.Ledger.Type != "sqlite" {
		return fmt.Errorf("ledger.type must be 'memory' or 'sqlite'")
	}
	if c.Ledger.Type == "sqlite" && c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path required for SQLite type")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	p := backtest.DefaultParams()
	costs := sim.DefaultCosts()
	rules := exit.DefaultRules()
	return &Config{
		Account: AccountConfig{
			StrategyID: "momentum-001",
			Balance:    p.InitialBalance,
		},
		Execution: ExecutionConfig{
			SlippageFrac:   costs.SlippageFrac,
			PerContractFee: costs.PerContractFee,
			PerTradeFee:    costs.PerTradeFee,
			Multiplier:     costs.Multiplier,
		},
		Exit: ExitConfig{
			ProfitTargetFrac: rules.ProfitTargetFrac,
			StopLossFrac:     rules.StopLossFrac,
			MinHoldDays:      rules.MinHoldDays,
		},
		Backtest: BacktestConfig{
			TrainDays:          p.TrainDays,
			TestDays:           p.TestDays,
			MinConfidence:      p.MinConfidence,
			MaxCapitalPerTrade: p.MaxCapitalPerTrade,
			DTE:                p.DTE,
			HalfSpreadFrac:     p.HalfSpreadFrac,
			DefaultVol:         p.DefaultVol,
			MinTestBars:        p.MinTestBars,
			MaxOpen:            p.MaxOpen,
			Parallel:           true,
			Lookback:           20,
		},
		Live: LiveConfig{
			Underlying:    "SPY",
			Interval:      "1m",
			RetryBudget:   3,
			MaxCapital:    p.MaxCapitalPerTrade,
			MinConfidence: p.MinConfidence,
			DTE:           p.DTE,
			MaxOpen:       1,
		},
		Ledger: LedgerConfig{
			Type:   "sqlite",
			DBPath: "./optsim.db",
		},
		Report: ReportConfig{
			OutDir: "./results",
			Chart:  true,
		},
	}
}
