package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Trading.LiveTrading)
	assert.Equal(t, 30*time.Second, cfg.Monitoring.Interval.Std())
	assert.Equal(t, "127.0.0.1:7497#1", cfg.Connection.Endpoint().String())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Connection.Port = 0 }, "connection.port"},
		{"fast interval", func(c *Config) { c.Monitoring.Interval = Duration(time.Millisecond) }, "refresh_interval"},
		{"timeout over interval", func(c *Config) { c.Monitoring.CallTimeout = Duration(time.Minute) }, "call_timeout"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"positive loss limit", func(c *Config) { c.Risk.Limits.MaxDailyLoss = 0.03 }, "max_daily_loss"},
		{"negative weight", func(c *Config) { c.Risk.Weights.Margin = -25 }, "risk.weights: margin"},
		{"negative magnitude scale", func(c *Config) { c.Risk.Weights.MagnitudeScale = -1 }, "magnitude_scale"},
		{"unknown strategy", func(c *Config) { c.Strategies[0].Kind = "fibonacci" }, "unknown strategy kind"},
		{"duplicate strategy", func(c *Config) { c.Strategies[1].Name = c.Strategies[0].Name }, "duplicate"},
		{"no trades per day", func(c *Config) { c.Trading.MaxTradesPerDay = 0 }, "max_trades_per_day"},
		{"no position count", func(c *Config) { c.Trading.MaxPositionCount = -1 }, "max_position_count"},
		{"position size limit over one", func(c *Config) { c.Trading.MaxPositionSizePct = 1.5 }, "max_position_size_pct"},
		{"sizing over the limit", func(c *Config) { c.Trading.PositionSizePct = 0.2 }, "must not exceed max_position_size_pct"},
		{"unknown timezone", func(c *Config) { c.Monitoring.Timezone = "Mars/Olympus_Mons" }, "monitoring.timezone"},
		{"live without confirmation", func(c *Config) { c.Trading.LiveTrading = true }, LiveConfirmPhrase},
		{"half telegram", func(c *Config) { c.Alerts.TelegramToken = "x" }, "telegram"},
		{"unknown feed", func(c *Config) { c.Feed.Kind = "ib" }, "feed.kind"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTradingLimitsAndTimezone(t *testing.T) {
	t.Parallel()

	cfg := Default()
	loc, err := cfg.Monitoring.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Monitoring.Timezone = "America/New_York"
	require.NoError(t, cfg.Validate())
	loc, err = cfg.Monitoring.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	rc := cfg.Trading.Router(loc)
	assert.False(t, rc.Live)
	assert.Equal(t, 10, rc.MaxTradesPerDay)
	assert.Equal(t, 15, rc.MaxPositionCount)
	assert.InDelta(t, 0.10, rc.MaxPositionPct, 1e-9)
	assert.InDelta(t, 0.05, rc.PositionSizePct, 1e-9)
	assert.Same(t, loc, rc.Location)
}

func TestLoadTradingLimits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
monitoring:
  timezone: UTC
trading:
  max_trades_per_day: 3
  max_position_size_pct: 0.08
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Monitoring.Timezone)
	assert.Equal(t, 3, cfg.Trading.MaxTradesPerDay)
	assert.Equal(t, 15, cfg.Trading.MaxPositionCount)
	assert.InDelta(t, 0.08, cfg.Trading.MaxPositionSizePct, 1e-9)
}

func TestLiveTradingWithConfirmation(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Trading.LiveTrading = true
	cfg.Trading.LiveConfirm = LiveConfirmPhrase
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"portmon.yaml", "portmon.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Monitoring.Interval = Duration(45 * time.Second)
			cfg.Alerts.WebhookURL = "https://example.invalid/hook"
			require.NoError(t, cfg.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, 45*time.Second, got.Monitoring.Interval.Std())
			assert.Equal(t, cfg.Alerts.WebhookURL, got.Alerts.WebhookURL)
			assert.Equal(t, cfg.Strategies, got.Strategies)
			assert.Equal(t, cfg.Risk, got.Risk)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connection:
  port: 4002
monitoring:
  refresh_interval: 1m
risk:
  limits:
    max_position_weight: 0.25
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 4002, cfg.Connection.Port)
	assert.Equal(t, "127.0.0.1", cfg.Connection.Host)
	assert.Equal(t, time.Minute, cfg.Monitoring.Interval.Std())
	assert.Equal(t, 0.25, cfg.Risk.Limits.MaxPositionWeight)
	assert.Equal(t, -0.03, cfg.Risk.Limits.MaxDailyLoss)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading:\n  live_trading: true\n"), 0o600))

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestDurationJSON(t *testing.T) {
	t.Parallel()

	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"90s","b":5}`), &v))
	assert.Equal(t, 90*time.Second, v.A.Std())
	assert.Equal(t, 5*time.Second, v.B.Std())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1m30s","b":"5s"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"soon"}`), &v))
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvHost:            "10.0.0.5",
		EnvPort:            "4001",
		EnvClientID:        "7",
		EnvRefreshInterval: "15",
		EnvLogLevel:        "DEBUG",
		EnvTelegramToken:   "tok",
		EnvTelegramChatID:  "42",
		EnvWebhookURL:      "https://example.invalid/hook",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "10.0.0.5", cfg.Connection.Host)
	assert.Equal(t, 4001, cfg.Connection.Port)
	assert.Equal(t, 7, cfg.Connection.ClientID)
	assert.Equal(t, 15*time.Second, cfg.Monitoring.Interval.Std())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "tok", cfg.Alerts.TelegramToken)
	assert.Equal(t, "42", cfg.Alerts.TelegramChatID)
	require.NoError(t, cfg.Validate())

	env[EnvPort] = "gateway"
	assert.ErrorContains(t, Default().ApplyEnv(lookup), EnvPort)
}

func TestLoadDotEnvIgnoresMissing(t *testing.T) {
	t.Parallel()

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestAlertCooldowns(t *testing.T) {
	t.Parallel()

	cd := Default().Alerts.Cooldowns()
	assert.Equal(t, alert.DefaultCooldowns(), cd)

	cd = AlertsConfig{SignalCooldown: Duration(time.Minute)}.Cooldowns()
	assert.Equal(t, alert.Cooldowns{alert.KindSignal: time.Minute}, cd)
}
