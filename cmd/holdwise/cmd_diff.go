package main

import (
	"github.com/spf13/cobra"
)

// diffCmd implements 'holdwise diff'
var diffCmd = &cobra.Command{
	Use:   "diff <from-id> <to-id>",
	Short: "Compare two snapshots",
	Long: `Compare two stored snapshots for the combined portfolio and for each
manager. Positions are matched by ticker, falling back to the normalised
name when one side has no ticker. Weight changes below the configured
materiality threshold are counted as unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		cmp, err := a.Differ.Compare(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), cmp)
		}
		return renderComparison(cmd.OutOrStdout(), cmp)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
