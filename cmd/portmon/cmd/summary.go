package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rustyeddy/portmon/monitor"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the account summary, P&L and risk score",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.Monitoring.CallTimeout.Std())
	defer cancel()

	sum, err := a.monitor.Summary(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), sum)
	return nil
}

func printSummary(w io.Writer, s monitor.Summary) {
	acct := s.Snapshot.Account
	fmt.Fprintf(w, "Account %s  (%s)\n", acct.ID, acct.CapturedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Net liquidation:   %14.2f\n", acct.NetLiquidation)
	fmt.Fprintf(w, "  Available cash:    %14.2f\n", acct.AvailableCash)
	fmt.Fprintf(w, "  Unrealized P&L:    %14.2f\n", acct.UnrealizedPnL)
	fmt.Fprintf(w, "  Realized P&L:      %14.2f\n", acct.RealizedPnL)
	fmt.Fprintf(w, "  Daily P&L:         %14.2f\n", s.DailyPnL)
	fmt.Fprintf(w, "  Margin used:       %14.2f  (%.1f%%)\n", acct.MarginUsed, 100*acct.MarginUtilization)
	fmt.Fprintf(w, "  Positions:         %14d\n", len(s.Snapshot.Positions))

	r := s.Assessment
	fmt.Fprintf(w, "\nRisk score %.1f/100\n", r.Score)
	if r.VaR.Ready {
		fmt.Fprintf(w, "  VaR %.0f%%: %.2f (%.2f%% of NLV, %d days)\n", 100*r.VaR.Confidence, r.VaR.Amount, 100*r.VaR.Pct, r.VaR.Samples)
	} else {
		fmt.Fprintf(w, "  VaR: not enough history (%d days)\n", r.VaR.Samples)
	}
	breaches := r.Breaches()
	if len(breaches) == 0 {
		fmt.Fprintln(w, "  No limits breached")
	}
	for _, c := range breaches {
		fmt.Fprintf(w, "  ! %s\n", c.Msg)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
