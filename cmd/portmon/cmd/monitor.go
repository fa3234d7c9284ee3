package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/portmon/config"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring loop until interrupted",
	Long: `Poll the account every refresh interval: score risk, evaluate
strategies, dispatch alerts and, with auto_trade, route signals. Orders are
paper trades unless live trading is enabled and confirmed in the config.`,
	RunE: runMonitor,
}

var (
	monitorInterval  time.Duration
	monitorDashboard string
)

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 0, "refresh interval (overrides config)")
	monitorCmd.Flags().StringVar(&monitorDashboard, "dashboard", "", "serve the live dashboard on this address, e.g. :8080")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if monitorInterval > 0 {
		cfg.Monitoring.Interval = config.Duration(monitorInterval)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if monitorDashboard != "" {
		cfg.Dashboard.Addr = monitorDashboard
	}

	a, err := build(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drain := a.startQueue(10 * time.Second)
	defer drain()

	if a.hub != nil {
		hctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go a.hub.Run(hctx)
		go func() {
			if err := a.hub.Serve(hctx, cfg.Dashboard.Addr); err != nil {
				a.log.WithError(err).Error("dashboard stopped")
			}
		}()
	}

	mode := "paper"
	if cfg.Trading.LiveTrading {
		mode = "LIVE"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s every %s (%s trading). Ctrl-C to stop.\n",
		cfg.Connection.Endpoint(), cfg.Monitoring.Interval, mode)

	return a.monitor.Run(ctx)
}
