package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd implements 'holdwise history'
var historyCmd = &cobra.Command{
	Use:   "history <ticker>",
	Short: "Show every stored appearance of a ticker, newest run first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ticker := strings.ToUpper(strings.TrimSpace(args[0]))
		entries, err := a.Store.TickerHistory(cmd.Context(), ticker, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", ticker, err)
		}
		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		return renderHistory(cmd.OutOrStdout(), ticker, entries)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Maximum entries (0 for all)")
}
