package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	yaml := `
account:
  strategy_id: wf-spy
  balance: 25000
execution:
  slippage_frac: 0.03
  per_contract_fee: 0.50
  multiplier: 100
exit:
  profit_target_frac: 0.8
  stop_loss_frac: 0.4
  min_hold_days: 1
backtest:
  train_days: 120
  test_days: 20
  min_confidence: 0.7
  max_capital_per_trade: 2500
  dte: 45
  half_spread_frac: 0.04
  default_vol: 0.25
  min_test_bars: 5
  max_open: 2
  parallel: true
  timeout: 2m
  lookback: 30
ledger:
  type: sqlite
  db_path: /tmp/wf.db
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "wf-spy", cfg.Account.StrategyID)
	assert.Equal(t, 25000.0, cfg.Account.Balance)
	assert.Equal(t, 0.03, cfg.Execution.SlippageFrac)
	assert.Equal(t, 120, cfg.Backtest.TrainDays)
	assert.Equal(t, "/tmp/wf.db", cfg.Ledger.DBPath)

	timeout, err := cfg.Backtest.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, timeout)
}

func TestLoadJSONFallback(t *testing.T) {
	cfg := Default()
	cfg.Account.StrategyID = "json-test"

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "json-test", loaded.Account.StrategyID)
}

func TestSaveRoundTripYAML(t *testing.T) {
	cfg := Default()
	cfg.Backtest.Timeout = "90s"

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backtest, loaded.Backtest)
	assert.Equal(t, cfg.Exit, loaded.Exit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing strategy id", func(c *Config) { c.Account.StrategyID = "" }, "strategy_id"},
		{"negative balance", func(c *Config) { c.Account.Balance = -1 }, "balance"},
		{"slippage above one", func(c *Config) { c.Execution.SlippageFrac = 1.5 }, "slippage_frac"},
		{"zero multiplier", func(c *Config) { c.Execution.Multiplier = 0 }, "multiplier"},
		{"stop above one", func(c *Config) { c.Exit.StopLossFrac = 1.2 }, "stop_loss_frac"},
		{"zero test days", func(c *Config) { c.Backtest.TestDays = 0 }, "test_days"},
		{"zero min test bars", func(c *Config) { c.Backtest.MinTestBars = 0 }, "min_test_bars"},
		{"bad timeout", func(c *Config) { c.Backtest.Timeout = "soon" }, "timeout"},
		{"bad interval", func(c *Config) { c.Live.Interval = "whenever" }, "interval"},
		{"unknown ledger type", func(c *Config) { c.Ledger.Type = "csv" }, "ledger.type"},
		{"sqlite without path", func(c *Config) { c.Ledger.Type = "sqlite"; c.Ledger.DBPath = "" }, "db_path"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := Default()

	costs := cfg.Execution.Costs()
	assert.Equal(t, cfg.Execution.Multiplier, costs.Multiplier)

	rules := cfg.Exit.Rules()
	assert.Equal(t, cfg.Exit.ProfitTargetFrac, rules.ProfitTargetFrac)

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, cfg.Account.Balance, params.InitialBalance)
	assert.Equal(t, cfg.Backtest.TrainDays, params.TrainDays)

	opts, err := cfg.Live.Options()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, opts.Interval)
}
