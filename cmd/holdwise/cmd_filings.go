package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/holdwise/internal/filings"
)

// filingsCmd is the parent command for the local filing archive
var filingsCmd = &cobra.Command{
	Use:   "filings",
	Short: "Manage the local 13F filing archive",
}

var filingsImportCmd = &cobra.Command{
	Use:   "import <file.json>...",
	Short: "Import filing documents into the archive",
	Long: `Import one or more filing documents. Each file holds a JSON object with
manager, period_of_report, filed_at and a holdings array of cusip, name,
ticker, shares and value. Amendments are stored alongside the original
and the latest filed_at wins.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			var doc filings.Document
			if err := json.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			saved, err := a.Filings.Save(&doc)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", path, err)
			}
			a.Logger.Info().Str("manager", doc.Manager).Str("period", doc.PeriodOfReport).Int("holdings", len(doc.Holdings)).Msg("Filing imported")
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, saved)
		}
		return nil
	},
}

var filingsPeriodsCmd = &cobra.Command{
	Use:   "periods <manager>",
	Short: "List the archived filing periods for a manager, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		periods, err := a.Filings.Periods(args[0])
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return writeJSON(cmd.OutOrStdout(), periods)
		}
		for _, p := range periods {
			fmt.Fprintln(cmd.OutOrStdout(), fmtDate(p))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filingsCmd)
	filingsCmd.AddCommand(filingsImportCmd, filingsPeriodsCmd)
}
