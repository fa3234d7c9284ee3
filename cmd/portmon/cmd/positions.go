package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rustyeddy/portmon/journal"
	"github.com/rustyeddy/portmon/market"
	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List positions with weights and unrealized P&L",
	RunE:  runPositions,
}

var positionsSave string

func init() {
	rootCmd.AddCommand(positionsCmd)
	positionsCmd.Flags().StringVar(&positionsSave, "save", "", "also write the positions to this CSV file")
}

func runPositions(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.Monitoring.CallTimeout.Std())
	defer cancel()

	positions, err := a.monitor.Positions(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printPositions(out, positions)

	if positionsSave != "" {
		if err := journal.SavePositionsCSV(positionsSave, positions); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Saved %d positions to %s\n", len(positions), positionsSave)
	}
	return nil
}

func printPositions(w io.Writer, positions []market.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(w, "No open positions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "INSTRUMENT\tQTY\tAVG COST\tPRICE\tVALUE\tUNREAL P&L\tP&L %\tWEIGHT\t")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%.0f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\t%.1f%%\t\n",
			p.Instrument, p.Quantity, p.AvgCost, p.MarketPrice, p.MarketValue,
			p.UnrealizedPnL, 100*p.UnrealizedPct(), 100*p.Weight)
	}
	tw.Flush()
}
