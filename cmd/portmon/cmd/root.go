package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	dbPath    string
	noJournal bool
)

var rootCmd = &cobra.Command{
	Use:   "portmon",
	Short: "Portfolio risk monitor for an Interactive Brokers style account",
	Long: `Portmon watches a brokerage account on a fixed interval.

It provides tools for:
  - Account summaries, positions and working orders
  - Risk scoring: concentration, daily loss, margin, stop-loss, VaR, volatility
  - Strategy signals: moving-average crossover, RSI mean reversion, momentum
  - Deduplicated alerts to the log, a webhook, or Telegram
  - Paper trading by default; live orders only with explicit confirmation`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite journal database (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noJournal, "no-journal", false, "do not open the SQLite journal")
}
