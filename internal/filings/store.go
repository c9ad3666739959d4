// Package filings supplies parsed 13F information tables from JSON files
// on disk, one directory per manager.
package filings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
)

const dateLayout = "2006-01-02"

// ErrNoFiling is returned when a manager has no filing for the period.
var ErrNoFiling = errors.New("no filing found")

// Document is one filing as written to disk.
type Document struct {
	Manager        string `json:"manager"`
	CIK            string `json:"cik,omitempty"`
	PeriodOfReport string `json:"period_of_report"` // YYYY-MM-DD
	FiledAt        string `json:"filed_at"`         // YYYY-MM-DD
	Holdings       []Row  `json:"holdings"`
}

// Row is one line of the information table.
type Row struct {
	CUSIP  string  `json:"cusip"`
	Name   string  `json:"name"`
	Ticker string  `json:"ticker,omitempty"`
	Shares float64 `json:"shares"`
	Value  float64 `json:"value"`
}

// Store reads and writes filing documents under basePath.
type Store struct {
	basePath string
	logger   *common.Logger
}

// NewStore creates a Store rooted at basePath.
func NewStore(basePath string, logger *common.Logger) *Store {
	return &Store{basePath: basePath, logger: logger}
}

// Slug turns a manager name into its directory name.
func Slug(manager string) string {
	r := strings.NewReplacer(" ", "_", "(", "", ")", "", "/", "", "\\", "", "&", "and", "..", "_", ":", "_")
	return r.Replace(strings.ToLower(strings.TrimSpace(manager)))
}

func (s *Store) managerDir(manager string) string {
	return filepath.Join(s.basePath, Slug(manager))
}

// FetchHoldings returns the holdings of the manager's filing with the
// latest period on or before quarterEnd. Amendments for the same period
// are resolved by the latest filed date.
func (s *Store) FetchHoldings(ctx context.Context, manager models.ManagerInput, quarterEnd time.Time) ([]models.RawHolding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs, err := s.load(manager.Name)
	if err != nil {
		return nil, err
	}

	var best *parsed
	for i := range docs {
		d := &docs[i]
		if !quarterEnd.IsZero() && d.period.After(quarterEnd) {
			continue
		}
		if best == nil || d.period.After(best.period) ||
			(d.period.Equal(best.period) && d.filed.After(best.filed)) {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s on or before %s: %w", manager.Name, quarterEnd.Format(dateLayout), ErrNoFiling)
	}

	s.logger.Debug().
		Str("manager", manager.Name).
		Str("period", best.period.Format(dateLayout)).
		Str("file", best.path).
		Int("rows", len(best.doc.Holdings)).
		Msg("Filing loaded")

	out := make([]models.RawHolding, 0, len(best.doc.Holdings))
	for _, r := range best.doc.Holdings {
		out = append(out, models.RawHolding{
			Manager:        manager.Name,
			CUSIP:          strings.TrimSpace(r.CUSIP),
			Name:           strings.TrimSpace(r.Name),
			Ticker:         strings.TrimSpace(r.Ticker),
			Shares:         r.Shares,
			Value:          r.Value,
			PeriodOfReport: best.period,
			FiledAt:        best.filed,
		})
	}
	return out, nil
}

// Save writes doc atomically as <manager>/<period>_<filed>.json.
func (s *Store) Save(doc *Document) (string, error) {
	if strings.TrimSpace(doc.Manager) == "" {
		return "", fmt.Errorf("filing manager is required")
	}
	if _, err := time.Parse(dateLayout, doc.PeriodOfReport); err != nil {
		return "", fmt.Errorf("invalid period_of_report %q: %w", doc.PeriodOfReport, err)
	}
	if doc.FiledAt == "" {
		doc.FiledAt = doc.PeriodOfReport
	}
	if _, err := time.Parse(dateLayout, doc.FiledAt); err != nil {
		return "", fmt.Errorf("invalid filed_at %q: %w", doc.FiledAt, err)
	}

	dir := s.managerDir(doc.Manager)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal filing: %w", err)
	}
	data = append(data, '\n')

	target := filepath.Join(dir, doc.PeriodOfReport+"_"+doc.FiledAt+".json")
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return target, nil
}

// Periods lists the reporting periods on disk for a manager, newest first.
func (s *Store) Periods(manager string) ([]time.Time, error) {
	docs, err := s.load(manager)
	if err != nil {
		return nil, err
	}
	seen := make(map[time.Time]bool)
	var out []time.Time
	for _, d := range docs {
		if !seen[d.period] {
			seen[d.period] = true
			out = append(out, d.period)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].After(out[j]) })
	return out, nil
}

type parsed struct {
	path   string
	period time.Time
	filed  time.Time
	doc    Document
}

func (s *Store) load(manager string) ([]parsed, error) {
	dir := s.managerDir(manager)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", manager, ErrNoFiling)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var docs []parsed
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("Skipping unreadable filing")
			continue
		}
		period, err := time.Parse(dateLayout, doc.PeriodOfReport)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("Skipping filing without a valid period")
			continue
		}
		filed, err := time.Parse(dateLayout, doc.FiledAt)
		if err != nil {
			filed = period
		}
		docs = append(docs, parsed{path: path, period: period, filed: filed, doc: doc})
	}
	return docs, nil
}

var _ interfaces.FilingSource = (*Store)(nil)
