package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rustyeddy/portmon/alert"
	"github.com/rustyeddy/portmon/broker/sim"
	"github.com/rustyeddy/portmon/config"
	"github.com/rustyeddy/portmon/dashboard"
	"github.com/rustyeddy/portmon/journal"
	"github.com/rustyeddy/portmon/logging"
	"github.com/rustyeddy/portmon/monitor"
	"github.com/rustyeddy/portmon/notify"
	"github.com/rustyeddy/portmon/risk"
	"github.com/rustyeddy/portmon/router"
	"github.com/rustyeddy/portmon/session"
	"github.com/rustyeddy/portmon/strategies"
	"github.com/spf13/cobra"
)

// loadConfig layers defaults, the config file, .env and the environment, and
// command-line flags, then validates the result.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if dbPath != "" {
		cfg.Journal.DBPath = dbPath
	}
	if noJournal {
		cfg.Journal.DBPath = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is the wired monitor behind every command.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	feed    *sim.Feed
	journal *journal.SQLite
	queue   *notify.Queue
	hub     *dashboard.Hub
	monitor *monitor.Orchestrator
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return build(cfg, cmd.ErrOrStderr())
}

func build(cfg *config.Config, logOut io.Writer) (*app, error) {
	lg, err := logging.New(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: lg, feed: sim.New(cfg.SimConfig())}

	var (
		jr  journal.Journal = journal.Nop{}
		rec router.Recorder
	)
	if cfg.Journal.DBPath != "" {
		j, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			lg.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal, jr, rec = j, j, j
	}

	sinks := []notify.Sink{notify.NewLogSink(lg.Component("alerts"))}
	client := &http.Client{Timeout: cfg.Connection.Timeout.Std()}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Alerts.WebhookURL, client))
	}
	if cfg.Alerts.TelegramToken != "" {
		sinks = append(sinks, notify.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID, client))
	}
	a.queue = notify.NewQueue(notify.QueueConfig{
		Capacity:   cfg.Alerts.QueueSize,
		Attempts:   cfg.Alerts.Retries + 1,
		RetryDelay: cfg.Alerts.RetryDelay.Std(),
	}, lg.Component("notify"), sinks...)

	engine, err := strategies.NewEngine(cfg.Strategies, lg.Component("strategy"))
	if err != nil {
		a.Close()
		return nil, err
	}

	loc, err := cfg.Monitoring.Location()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("monitoring.timezone: %w", err)
	}

	var pub monitor.Publisher
	if cfg.Dashboard.Addr != "" {
		a.hub = dashboard.NewHub(lg.Component("dashboard"))
		pub = a.hub
	}

	a.monitor = monitor.New(monitor.Options{
		Endpoint:      cfg.Connection.Endpoint(),
		Interval:      cfg.Monitoring.Interval.Std(),
		CallTimeout:   cfg.Monitoring.CallTimeout.Std(),
		HistoryWindow: cfg.Monitoring.HistoryWindow,
		Retention:     cfg.Monitoring.Retention,
		MaxFailures:   cfg.Monitoring.MaxCycleFailures,
		StaleAfter:    cfg.Monitoring.StaleAfterCycles,
		AutoTrade:     cfg.Monitoring.AutoTrade,
		SnapshotEvery: cfg.Monitoring.SnapshotEvery,
		SnapshotDir:   cfg.Journal.SnapshotDir,
		Location:      loc,
	}, monitor.Deps{
		Feed:       a.feed,
		Session:    session.NewMachine(cfg.Session.Machine()),
		Engine:     engine,
		Scorer:     risk.NewScorer(cfg.Risk),
		Dispatcher: alert.NewDispatcher(a.queue, cfg.Alerts.Cooldowns(), lg.Component("alerts")),
		Router:     router.New(cfg.Trading.Router(loc), a.feed, rec, lg.Component("router")),
		Journal:    jr,
		Publisher:  pub,
		Log:        lg.Component("monitor"),
	})
	return a, nil
}

// startQueue delivers alerts in the background. The returned func closes the
// queue and waits for it to drain, up to the given grace period.
func (a *app) startQueue(grace time.Duration) func() {
	done := make(chan struct{})
	go func() {
		a.queue.Run(context.Background())
		close(done)
	}()
	return func() {
		a.queue.Close()
		select {
		case <-done:
		case <-time.After(grace):
			a.log.Warn("alert queue did not drain")
		}
	}
}

func (a *app) Close() error {
	_ = a.feed.Disconnect()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("close journal")
		}
	}
	return a.log.Close()
}
