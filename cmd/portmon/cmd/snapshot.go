package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save the account, positions and working orders to a file",
	Long: `Write a point-in-time snapshot as JSON, or YAML when the file ends in
.yaml or .yml. Without --file a timestamped JSON file is written to the
configured snapshot directory.`,
	RunE: runSnapshot,
}

var snapshotFile string

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().StringVarP(&snapshotFile, "file", "f", "", "output file")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*a.cfg.Monitoring.CallTimeout.Std())
	defer cancel()

	path, err := a.monitor.SaveSnapshot(ctx, snapshotFile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Snapshot saved: %s\n", path)
	return nil
}
