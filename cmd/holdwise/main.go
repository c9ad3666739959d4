// Command holdwise fetches 13F holdings for a set of fund managers, combines
// them into one weighted portfolio and keeps point-in-time snapshots.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/holdwise/internal/app"
	"github.com/bobmcallan/holdwise/internal/common"
)

var (
	configPath   string
	outputFormat string
)

// rootCmd is the base command for the holdwise CLI
var rootCmd = &cobra.Command{
	Use:   "holdwise",
	Short: "13F portfolio aggregation engine",
	Long: `holdwise builds a combined portfolio from the quarterly 13F filings of
several fund managers, enriches every position with market data and keeps
immutable snapshots that can be compared over time.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case formatTable, formatJSON:
			return nil
		}
		return &common.ConfigError{Field: "format", Err: fmt.Errorf("unsupported output format %q", outputFormat)}
	},
}

// versionCmd implements 'holdwise version'
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "holdwise %s\n", common.GetFullVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to holdwise.toml (default: $HOLDWISE_CONFIG or config/holdwise.toml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatTable, "Output format: table, json")
}

// openApp loads configuration and builds the application for one command.
func openApp(ctx context.Context) (*app.App, error) {
	return app.NewApp(ctx, configPath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
