package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	snapshotsLimit int
	snapshotTopN   int
)

// snapshotsCmd is the parent command for stored snapshots
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List, inspect and delete stored snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.Store.ListSnapshots(cmd.Context(), snapshotsLimit)
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		return renderSnapshots(cmd.OutOrStdout(), list)
	},
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the stored holdings of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Store.GetSnapshot(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), snap)
		}
		topN := snapshotTopN
		if topN == 0 {
			topN = snap.TopN
		}
		return renderSnapshot(cmd.OutOrStdout(), snap, topN)
	},
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot and its rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
			return err
		}
		a.Logger.Info().Str("snapshot_id", args[0]).Msg("Snapshot deleted")
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsListCmd, snapshotsShowCmd, snapshotsDeleteCmd)

	snapshotsListCmd.Flags().IntVar(&snapshotsLimit, "limit", 20, "Maximum snapshots to list (0 for all)")
	snapshotsShowCmd.Flags().IntVar(&snapshotTopN, "top-n", 0, "Rows per manager to display (default: the snapshot's top_n)")
}
