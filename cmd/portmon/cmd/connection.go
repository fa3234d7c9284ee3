package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Connect to the gateway and time one heartbeat",
	RunE:  runTestConnection,
}

func init() {
	rootCmd.AddCommand(testConnectionCmd)
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Connection.Timeout.Std())
	defer cancel()

	out := cmd.OutOrStdout()
	rep, err := a.monitor.TestConnection(ctx)
	if err != nil {
		fmt.Fprintf(out, "✗ Connection to %s failed: %v\n", rep.Endpoint, err)
		return err
	}
	fmt.Fprintf(out, "✓ Connected to %s (%s, heartbeat %s)\n", rep.Endpoint, rep.State, rep.Latency.Round(time.Microsecond))
	return nil
}
