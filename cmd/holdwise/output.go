package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/services/aggregate"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func fmtRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func displayTicker(ticker string) string {
	if ticker == "" {
		return "-"
	}
	return ticker
}

// runReport is the JSON form of a run: the result plus the portfolio
// breakdowns shown in the table view.
type runReport struct {
	*models.RunResult
	ManagerTotals map[string]models.PortfolioTotals `json:"manager_totals"`
	Sectors       []models.BreakdownEntry           `json:"sectors"`
	Countries     []models.BreakdownEntry           `json:"countries"`
	Overlap       []models.OverlapEntry             `json:"overlap"`
}

func newRunReport(res *models.RunResult) *runReport {
	r := &runReport{RunResult: res, ManagerTotals: make(map[string]models.PortfolioTotals, len(res.Sets))}
	for _, set := range res.Sets {
		r.ManagerTotals[set.Manager] = aggregate.ManagerTotals(set)
	}
	if res.Portfolio != nil {
		r.Sectors = aggregate.SectorBreakdown(res.Portfolio)
		r.Countries = aggregate.CountryBreakdown(res.Portfolio)
		r.Overlap = aggregate.Overlap(res.Portfolio)
	}
	return r
}

// renderEvent prints one progress line for a run.
func renderEvent(w io.Writer, ev models.RunEvent) {
	switch ev.Type {
	case models.EventRunStarted:
		fmt.Fprintf(w, "Run %s: fetching %d managers\n", ev.RunID, ev.Total)
	case models.EventManagerDone:
		m := ev.Manager
		line := fmt.Sprintf("[%d/%d] %-30s %s", ev.Completed, ev.Total, m.Manager, m.Status)
		switch m.Status {
		case models.ManagerSucceeded:
			line += fmt.Sprintf(" (%d positions, %d unresolved)", m.Positions, m.Unresolved)
		case models.ManagerFailed:
			line += ": " + m.Error
		}
		fmt.Fprintln(w, line)
	}
}

// renderRun prints the top positions of a run with contributing managers
// and the full-portfolio totals.
func renderRun(w io.Writer, res *models.RunResult, topN int) error {
	if res.Aborted {
		fmt.Fprintln(w, "Run cancelled - showing managers that completed")
	}
	if res.Portfolio == nil || len(res.Portfolio.Positions) == 0 {
		fmt.Fprintln(w, "No holdings")
		return nil
	}

	p := res.Portfolio
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tTICKER\tNAME\tWEIGHT\tMANAGERS\tFWD P/E\tQTD")
	for i, pos := range p.Top(topN) {
		managers := make([]string, 0, len(pos.Contributions))
		for _, c := range pos.Contributions {
			managers = append(managers, c.Manager)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			i+1, displayTicker(pos.Ticker), pos.Name, pos.CombinedWeight,
			strings.Join(managers, ", "), fmtRatio(pos.Attributes.ForwardPE), fmtPct(pos.Attributes.QTDReturnPct))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	renderTotals(w, &p.Totals)

	report := newRunReport(res)
	if err := renderManagers(w, res.Sets, report.ManagerTotals); err != nil {
		return err
	}
	renderBreakdown(w, "Sectors", report.Sectors, 5)
	renderBreakdown(w, "Countries", report.Countries, 5)
	if len(report.Overlap) > 0 {
		fmt.Fprintf(w, "\nHeld by several managers: %d\n", len(report.Overlap))
		for i, o := range report.Overlap {
			if i == 5 {
				break
			}
			fmt.Fprintf(w, "  %-8s %6.2f  %s\n", displayTicker(o.Ticker), o.CombinedWeight, strings.Join(o.Managers, ", "))
		}
	}

	if res.SnapshotID != "" {
		fmt.Fprintf(w, "\nSnapshot saved: %s\n", res.SnapshotID)
	}
	return nil
}

func renderTotals(w io.Writer, t *models.PortfolioTotals) {
	fmt.Fprintf(w, "Positions %d across %d managers (weight %.2f)\n", t.Positions, t.Managers, t.TotalWeight)
	fmt.Fprintf(w, "Forward P/E %s  EPS growth %s  Dividend yield %s  Expected return %s\n",
		fmtRatio(t.ForwardPE), fmtPct(t.EPSGrowthPct), fmtPct(t.DividendYieldPct), fmtPct(t.ExpectedReturnPct))
	fmt.Fprintf(w, "Filing quarter %s  Prior quarter %s  QTD %s  EPS beat rate %s\n",
		fmtPct(t.FilingQuarterReturnPct), fmtPct(t.PriorQuarterReturnPct), fmtPct(t.QTDReturnPct), fmtPct(t.EPSBeatRatePct))
	if len(t.MonthlyReturns) > 0 {
		parts := make([]string, 0, len(t.MonthlyReturns))
		for _, m := range t.MonthlyReturns {
			label := m.Label
			if m.Partial {
				label += "*"
			}
			parts = append(parts, fmt.Sprintf("%s %.2f%%", label, m.ReturnPct))
		}
		fmt.Fprintf(w, "Monthly %s\n", strings.Join(parts, "  "))
	}
}

func renderManagers(w io.Writer, sets []*models.ManagerHoldingsSet, totals map[string]models.PortfolioTotals) error {
	if len(sets) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw := newTable(w)
	fmt.Fprintln(tw, "MANAGER\tPERIOD\tPOSITIONS\tFWD P/E\tFILING QTR\tQTD")
	for _, set := range sets {
		t := totals[set.Manager]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			set.Manager, fmtDate(set.Period), t.Positions, fmtRatio(t.ForwardPE), fmtPct(t.FilingQuarterReturnPct), fmtPct(t.QTDReturnPct))
	}
	return tw.Flush()
}

func renderBreakdown(w io.Writer, title string, entries []models.BreakdownEntry, limit int) {
	if len(entries) == 0 {
		return
	}
	parts := make([]string, 0, limit)
	for i, e := range entries {
		if i == limit {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %.2f", e.Name, e.Weight))
	}
	fmt.Fprintf(w, "%s: %s\n", title, strings.Join(parts, ", "))
}

func renderSnapshots(w io.Writer, list []*models.SnapshotSummary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No snapshots")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tLABEL\tPERIOD\tRUN DATE\tMANAGERS\tHOLDINGS")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
			s.ID, s.Label, fmtDate(s.PeriodDate), fmtDate(s.RunDate), s.ManagerCount, s.HoldingCount)
	}
	return tw.Flush()
}

// renderSnapshot prints the top rows of every manager in a snapshot.
func renderSnapshot(w io.Writer, snap *models.Snapshot, topN int) error {
	fmt.Fprintf(w, "Snapshot %s", snap.ID)
	if snap.Label != "" {
		fmt.Fprintf(w, " (%s)", snap.Label)
	}
	fmt.Fprintf(w, "\nPeriod %s  Run %s\n\n", fmtDate(snap.PeriodDate), fmtDate(snap.RunDate))

	for _, m := range snap.Managers {
		if m.Status != models.ManagerSucceeded {
			fmt.Fprintf(w, "%s: %s %s\n", m.Manager, m.Status, m.Error)
		}
	}

	type rowKey struct {
		manager string
		rank    int
	}
	combined := make(map[rowKey]float64, len(snap.Rows))
	for _, r := range snap.Rows {
		combined[rowKey{r.Manager, r.Rank}] = r.CombinedWeight
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "MANAGER\tRANK\tTICKER\tNAME\tPCT\tCOMBINED")
	for _, set := range snap.HoldingsSets() {
		for _, h := range set.Top(topN) {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%.2f\t%.2f\n",
				set.Manager, h.Rank, displayTicker(h.Ticker), h.Name, h.PctOfPortfolio, combined[rowKey{set.Manager, h.Rank}])
		}
	}
	return tw.Flush()
}

// renderComparison prints the portfolio diff followed by each manager's.
func renderComparison(w io.Writer, cmp *models.SnapshotComparison) error {
	fmt.Fprintf(w, "%s (%s) -> %s (%s), threshold %.2f\n",
		cmp.From.ID, fmtDate(cmp.From.PeriodDate), cmp.To.ID, fmtDate(cmp.To.PeriodDate), cmp.Threshold)

	fmt.Fprintln(w, "\nPortfolio")
	if err := renderDiff(w, cmp.Portfolio); err != nil {
		return err
	}

	managers := make([]string, 0, len(cmp.Managers))
	for m := range cmp.Managers {
		managers = append(managers, m)
	}
	sort.Strings(managers)
	for _, m := range managers {
		fmt.Fprintf(w, "\n%s\n", m)
		if err := renderDiff(w, cmp.Managers[m]); err != nil {
			return err
		}
	}
	return nil
}

func renderDiff(w io.Writer, d *models.DiffResult) error {
	if d == nil || d.IsEmpty() {
		fmt.Fprintf(w, "  no material changes\n")
		return nil
	}
	tw := newTable(w)
	for _, c := range d.Added {
		fmt.Fprintf(tw, "  +\t%s\t%s\t\t%.2f\t\n", displayTicker(c.Ticker), c.Name, c.Current)
	}
	for _, c := range d.Removed {
		fmt.Fprintf(tw, "  -\t%s\t%s\t%.2f\t\t\n", displayTicker(c.Ticker), c.Name, c.Previous)
	}
	for _, c := range d.Changed {
		fmt.Fprintf(tw, "  ~\t%s\t%s\t%.2f\t%.2f\t%+.2f\n", displayTicker(c.Ticker), c.Name, c.Previous, c.Current, c.Delta)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "  %d unchanged\n", d.UnchangedCount)
	return nil
}

func renderHistory(w io.Writer, ticker string, entries []*models.TickerHistoryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No history for %s\n", ticker)
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SNAPSHOT\tPERIOD\tRUN DATE\tMANAGER\tRANK\tPCT\tCOMBINED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\n",
			e.SnapshotID, fmtDate(e.PeriodDate), fmtDate(e.RunDate), e.Manager, e.Rank, e.PctOfPortfolio, e.CombinedWeight)
	}
	return tw.Flush()
}
