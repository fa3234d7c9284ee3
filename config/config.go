package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/broker"
	"github.com/rustyeddy/portmon/broker/sim"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/router"
	"github.com/rustyeddy/portmon/session"
	"github.com/rustyeddy/portmon/strategies"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// LiveConfirmPhrase must be set in trading.live_confirm before live order
// submission is allowed.
const LiveConfirmPhrase = "I_UNDERSTAND_THE_RISKS"

// Config is the complete monitor configuration.
type Config struct {
	Connection ConnectionConfig    `json:"connection" yaml:"connection"`
	Monitoring MonitoringConfig    `json:"monitoring" yaml:"monitoring"`
	Session    SessionConfig       `json:"session" yaml:"session"`
	Logging    LoggingConfig       `json:"logging" yaml:"logging"`
	Risk       risk.Config         `json:"risk" yaml:"risk"`
	Strategies []strategies.Config `json:"strategies" yaml:"strategies"`
	Trading    TradingConfig       `json:"trading" yaml:"trading"`
	Alerts     AlertsConfig        `json:"alerts" yaml:"alerts"`
	Journal    JournalConfig       `json:"journal" yaml:"journal"`
	Feed       FeedConfig          `json:"feed" yaml:"feed"`
	Dashboard  DashboardConfig     `json:"dashboard" yaml:"dashboard"`
}

// ConnectionConfig addresses the brokerage gateway.
type ConnectionConfig struct {
	Host     string   `json:"host" yaml:"host"`
	Port     int      `json:"port" yaml:"port"`
	ClientID int      `json:"client_id" yaml:"client_id"`
	Timeout  Duration `json:"timeout" yaml:"timeout"`
}

func (c ConnectionConfig) Endpoint() broker.Endpoint {
	return broker.Endpoint{Host: c.Host, Port: c.Port, ClientID: c.ClientID}
}

type MonitoringConfig struct {
	Interval      Duration `json:"refresh_interval" yaml:"refresh_interval"`
	CallTimeout   Duration `json:"call_timeout" yaml:"call_timeout"`
	HistoryWindow int      `json:"history_window" yaml:"history_window"`
	Retention     int      `json:"retention" yaml:"retention"`
	// MaxCycleFailures consecutive failed cycles demote the session.
	MaxCycleFailures int `json:"max_cycle_failures" yaml:"max_cycle_failures"`
	// StaleAfterCycles intervals without a fresh capture marks data stale.
	StaleAfterCycles int  `json:"stale_after_cycles" yaml:"stale_after_cycles"`
	AutoTrade        bool `json:"auto_trade" yaml:"auto_trade"`
	// SnapshotEvery writes a snapshot file every n cycles; 0 disables.
	SnapshotEvery int `json:"snapshot_every" yaml:"snapshot_every"`
	// Timezone is an IANA zone name. Trading days roll over at its midnight.
	// Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// Location resolves Timezone.
func (m MonitoringConfig) Location() (*time.Location, error) {
	if m.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(m.Timezone)
}

type SessionConfig struct {
	MissThreshold int      `json:"miss_threshold" yaml:"miss_threshold"`
	RetryBudget   int      `json:"retry_budget" yaml:"retry_budget"`
	BackoffMin    Duration `json:"backoff_min" yaml:"backoff_min"`
	BackoffMax    Duration `json:"backoff_max" yaml:"backoff_max"`
	BackoffFactor float64  `json:"backoff_factor" yaml:"backoff_factor"`
	BackoffJitter float64  `json:"backoff_jitter" yaml:"backoff_jitter"`
}

func (s SessionConfig) Machine() session.Config {
	return session.Config{
		MissThreshold: s.MissThreshold,
		RetryBudget:   s.RetryBudget,
		Backoff: session.Backoff{
			Min:    s.BackoffMin.Std(),
			Max:    s.BackoffMax.Std(),
			Factor: s.BackoffFactor,
			Jitter: s.BackoffJitter,
		},
	}
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // "text" or "json"
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type TradingConfig struct {
	LiveTrading        bool    `json:"live_trading" yaml:"live_trading"`
	LiveConfirm        string  `json:"live_confirm,omitempty" yaml:"live_confirm,omitempty"`
	PositionSizePct    float64 `json:"position_size_pct" yaml:"position_size_pct"`
	MaxTradesPerDay    int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	MaxPositionCount   int     `json:"max_position_count" yaml:"max_position_count"`
	MaxPositionSizePct float64 `json:"max_position_size_pct" yaml:"max_position_size_pct"`
}

func (t TradingConfig) Router(loc *time.Location) router.Config {
	return router.Config{
		Live:             t.LiveTrading,
		PositionSizePct:  t.PositionSizePct,
		MaxTradesPerDay:  t.MaxTradesPerDay,
		MaxPositionCount: t.MaxPositionCount,
		MaxPositionPct:   t.MaxPositionSizePct,
		Location:         loc,
	}
}

type AlertsConfig struct {
	RiskCooldown         Duration `json:"risk_cooldown" yaml:"risk_cooldown"`
	SignalCooldown       Duration `json:"signal_cooldown" yaml:"signal_cooldown"`
	ConnectivityCooldown Duration `json:"connectivity_cooldown" yaml:"connectivity_cooldown"`
	QueueSize            int      `json:"queue_size" yaml:"queue_size"`
	Retries              int      `json:"retries" yaml:"retries"`
	RetryDelay           Duration `json:"retry_delay" yaml:"retry_delay"`
	WebhookURL           string   `json:"webhook_url,omitempty" yaml:"webhook_url,omitempty"`
	TelegramToken        string   `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChatID       string   `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
}

func (a AlertsConfig) Cooldowns() alert.Cooldowns {
	cd := alert.Cooldowns{}
	if a.RiskCooldown > 0 {
		cd[alert.KindRisk] = a.RiskCooldown.Std()
	}
	if a.SignalCooldown > 0 {
		cd[alert.KindSignal] = a.SignalCooldown.Std()
	}
	if a.ConnectivityCooldown > 0 {
		cd[alert.KindConnectivity] = a.ConnectivityCooldown.Std()
	}
	return cd
}

type JournalConfig struct {
	DBPath      string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	SnapshotDir string `json:"snapshot_dir" yaml:"snapshot_dir"`
}

type FeedConfig struct {
	Kind string      `json:"kind" yaml:"kind"`
	Sim  *sim.Config `json:"sim,omitempty" yaml:"sim,omitempty"`
}

type DashboardConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// LoadFromFile loads configuration from a file (YAML or JSON) and validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration. Any error here is fatal at startup.
func (c *Config) Validate() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection.port must be between 1 and 65535")
	}
	if c.Connection.ClientID < 0 {
		return fmt.Errorf("connection.client_id must not be negative")
	}
	if c.Monitoring.Interval.Std() < time.Second {
		return fmt.Errorf("monitoring.refresh_interval must be at least 1s")
	}
	if c.Monitoring.CallTimeout <= 0 {
		return fmt.Errorf("monitoring.call_timeout must be positive")
	}
	if c.Monitoring.CallTimeout > c.Monitoring.Interval {
		return fmt.Errorf("monitoring.call_timeout must not exceed refresh_interval")
	}
	if c.Monitoring.HistoryWindow <= 0 {
		return fmt.Errorf("monitoring.history_window must be positive")
	}
	if c.Monitoring.Retention < c.Monitoring.HistoryWindow {
		return fmt.Errorf("monitoring.retention must be at least history_window")
	}
	if c.Monitoring.MaxCycleFailures <= 0 {
		return fmt.Errorf("monitoring.max_cycle_failures must be positive")
	}
	if c.Monitoring.StaleAfterCycles <= 0 {
		return fmt.Errorf("monitoring.stale_after_cycles must be positive")
	}
	if _, err := c.Monitoring.Location(); err != nil {
		return fmt.Errorf("monitoring.timezone: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := c.Logging.Format; f != "" && f != "text" && f != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}
	if err := c.Risk.Limits.Validate(); err != nil {
		return fmt.Errorf("risk.limits: %w", err)
	}
	if err := c.Risk.Weights.Validate(); err != nil {
		return fmt.Errorf("risk.weights: %w", err)
	}
	if v := c.Risk.VaRConfidence; v <= 0 || v >= 1 {
		return fmt.Errorf("risk.var_confidence must be between 0 and 1")
	}

	names := make(map[string]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("strategies: %w", err)
		}
		if names[s.Name] {
			return fmt.Errorf("strategies: duplicate name %q", s.Name)
		}
		names[s.Name] = true
	}

	if p := c.Trading.PositionSizePct; p <= 0 || p > 1 {
		return fmt.Errorf("trading.position_size_pct must be in (0, 1]")
	}
	if c.Trading.MaxTradesPerDay <= 0 {
		return fmt.Errorf("trading.max_trades_per_day must be positive")
	}
	if c.Trading.MaxPositionCount <= 0 {
		return fmt.Errorf("trading.max_position_count must be positive")
	}
	if p := c.Trading.MaxPositionSizePct; p <= 0 || p > 1 {
		return fmt.Errorf("trading.max_position_size_pct must be in (0, 1]")
	}
	if c.Trading.PositionSizePct > c.Trading.MaxPositionSizePct {
		return fmt.Errorf("trading.position_size_pct must not exceed max_position_size_pct")
	}
	if c.Trading.LiveTrading && c.Trading.LiveConfirm != LiveConfirmPhrase {
		return fmt.Errorf("trading.live_trading requires live_confirm: %s", LiveConfirmPhrase)
	}

	if c.Alerts.QueueSize <= 0 {
		return fmt.Errorf("alerts.queue_size must be positive")
	}
	if c.Alerts.Retries < 0 {
		return fmt.Errorf("alerts.retries must not be negative")
	}
	if (c.Alerts.TelegramToken == "") != (c.Alerts.TelegramChatID == "") {
		return fmt.Errorf("alerts.telegram_token and telegram_chat_id must be set together")
	}

	if k := strings.ToLower(c.Feed.Kind); k != "sim" {
		return fmt.Errorf("feed.kind %q is not supported", c.Feed.Kind)
	}
	return nil
}

// SimConfig returns the simulated account to run against.
func (c *Config) SimConfig() sim.Config {
	if c.Feed.Sim != nil {
		return *c.Feed.Sim
	}
	return sim.Demo()
}

// Default returns a configuration with sensible defaults: paper trading
// against the simulated feed on the standard paper gateway port.
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host:     "127.0.0.1",
			Port:     7497,
			ClientID: 1,
			Timeout:  Duration(10 * time.Second),
		},
		Monitoring: MonitoringConfig{
			Interval:         Duration(30 * time.Second),
			CallTimeout:      Duration(10 * time.Second),
			HistoryWindow:    100,
			Retention:        500,
			MaxCycleFailures: 3,
			StaleAfterCycles: 3,
			AutoTrade:        true,
		},
		Session: SessionConfig{
			MissThreshold: 2,
			RetryBudget:   3,
			BackoffMin:    Duration(5 * time.Second),
			BackoffMax:    Duration(5 * time.Minute),
			BackoffFactor: 2,
			BackoffJitter: 0.2,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Risk: risk.DefaultConfig(),
		Strategies: []strategies.Config{
			{
				Name:        "ma_cross",
				Kind:        strategies.KindMACrossover,
				Instruments: []string{"AAPL", "MSFT", "SPY"},
				Enabled:     true,
				Params:      strategies.Params{FastWindow: 10, SlowWindow: 30},
			},
			{
				Name:        "rsi",
				Kind:        strategies.KindRSIMeanReversion,
				Instruments: []string{"AAPL", "MSFT", "SPY"},
				Enabled:     true,
				Params:      strategies.Params{RSIPeriod: 14, Oversold: 30, Overbought: 70},
			},
			{
				Name:        "momentum",
				Kind:        strategies.KindMomentum,
				Instruments: []string{"QQQ", "TSLA"},
				Enabled:     false,
				Params:      strategies.Params{Lookback: 20, Threshold: 0.05},
			},
		},
		Trading: TradingConfig{
			PositionSizePct:    0.05,
			MaxTradesPerDay:    10,
			MaxPositionCount:   15,
			MaxPositionSizePct: 0.10,
		},
		Alerts: AlertsConfig{
			RiskCooldown:         Duration(15 * time.Minute),
			SignalCooldown:       Duration(time.Hour),
			ConnectivityCooldown: Duration(5 * time.Minute),
			QueueSize:            64,
			Retries:              2,
			RetryDelay:           Duration(2 * time.Second),
		},
		Journal: JournalConfig{
			DBPath:      "./portmon.db",
			SnapshotDir: "./snapshots",
		},
		Feed: FeedConfig{Kind: "sim"},
	}
}
