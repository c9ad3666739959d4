package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/holdwise/internal/app"
	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/models"
)

var (
	runQuarterEnd string
	runTopN       int
	runLabel      string
	runPersist    bool
	runQuiet      bool
)

// runCmd implements 'holdwise run'
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, resolve and enrich every configured manager and aggregate the result",
	Long: `Run the full pipeline for every manager in the configuration: load the
latest 13F filing on or before the quarter end, resolve CUSIPs to tickers,
enrich each stock with market data and combine the managers into one
weighted portfolio. Interrupting the run keeps the managers that already
finished.

Example usage:
  holdwise run                               # Last completed quarter
  holdwise run --quarter-end=2025-09-30      # Specific quarter
  holdwise run --persist --label="Q3 review" # Save a snapshot
  holdwise run --format=json                 # JSON output`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runQuarterEnd, "quarter-end", "", "Quarter end date YYYY-MM-DD (default: configured or last completed quarter)")
	runCmd.Flags().IntVar(&runTopN, "top-n", 0, "Number of positions to display (default: configured top_n)")
	runCmd.Flags().StringVar(&runLabel, "label", "", "Label stored with the snapshot")
	runCmd.Flags().BoolVar(&runPersist, "persist", false, "Save the run as a snapshot")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress banner and progress output")
}

func parseQuarterEnd(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, &common.ConfigError{Field: "quarter-end", Err: err}
	}
	return t, nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	quarterEnd, err := parseQuarterEnd(runQuarterEnd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	verbose := !runQuiet && outputFormat == formatTable

	if verbose {
		common.PrintBanner(errOut, a.Config, a.Logger)
	}
	a.StartMetricsServer()

	req := a.RunRequest(app.RunOptions{
		QuarterEnd: quarterEnd,
		TopN:       runTopN,
		Label:      runLabel,
		Persist:    runPersist,
	})

	var progress func(models.RunEvent)
	if verbose {
		progress = func(ev models.RunEvent) { renderEvent(errOut, ev) }
	}

	res, runErr := a.Runner.Run(ctx, req, progress)
	if res == nil {
		return runErr
	}

	if outputFormat == formatJSON {
		if err := writeJSON(out, newRunReport(res)); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "\nQuarter ending %s, top %d\n\n", fmtDate(req.QuarterEnd), req.TopN)
		if err := renderRun(out, res, req.TopN); err != nil {
			return err
		}
	}
	return runErr
}
