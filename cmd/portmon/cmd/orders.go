package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List working orders and recent order decisions",
	RunE:  runOrders,
}

var ordersHistory int

func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.Flags().IntVar(&ordersHistory, "history", 10, "recent journaled order decisions to show (0 for none)")
}

func runOrders(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.Monitoring.CallTimeout.Std())
	defer cancel()

	orders, err := a.monitor.Orders(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(orders) == 0 {
		fmt.Fprintln(out, "No working orders")
	} else {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tINSTRUMENT\tSIDE\tTYPE\tQTY\tFILLED\tLIMIT\tSTATUS")
		for _, o := range orders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				o.OrderID, o.Instrument, o.Side, o.Type, o.Quantity, o.Filled, o.LimitPrice, o.Status)
		}
		tw.Flush()
	}

	if a.journal == nil || ordersHistory <= 0 {
		return nil
	}
	recs, err := a.journal.ListOrders(ordersHistory)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent decisions")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tINSTRUMENT\tSIDE\tQTY\tSTRATEGY\tMODE\tSTATUS\tREASON")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Time.Format("2006-01-02 15:04:05"), r.Instrument, r.Side, r.Quantity, r.Strategy, r.Mode, r.Status, r.Reason)
	}
	return tw.Flush()
}
