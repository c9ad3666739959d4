package models

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrSnapshotNotFound is returned when a snapshot id is unknown.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSnapshotExists is returned when saving over an existing snapshot.
	ErrSnapshotExists = errors.New("snapshot already exists")
)

// ManagerRunStatus is the outcome of one manager's pipeline in a run.
type ManagerRunStatus string

const (
	ManagerPending   ManagerRunStatus = "pending"
	ManagerRunning   ManagerRunStatus = "running"
	ManagerSucceeded ManagerRunStatus = "succeeded"
	ManagerFailed    ManagerRunStatus = "failed"
	ManagerCancelled ManagerRunStatus = "cancelled"
)

// ManagerStatus is reported per manager as the run progresses.
type ManagerStatus struct {
	Manager     string           `json:"manager"`
	Status      ManagerRunStatus `json:"status"`
	Positions   int              `json:"positions"`
	Unresolved  int              `json:"unresolved"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at,omitempty"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
}

// SnapshotRow is one manager holding persisted with its combined weight
// and the full enriched attribute set.
type SnapshotRow struct {
	Manager          string           `json:"manager"`
	ManagerWeight    *float64         `json:"manager_weight,omitempty"`
	Period           time.Time        `json:"period"`
	FiledAt          time.Time        `json:"filed_at"`
	Rank             int              `json:"rank"`
	Name             string           `json:"name"`
	CUSIP            string           `json:"cusip"`
	Ticker           string           `json:"ticker,omitempty"`
	ResolutionMethod ResolutionMethod `json:"resolution_method"`
	Shares           float64          `json:"shares"`
	Value            float64          `json:"value"`
	PctOfPortfolio   float64          `json:"pct_of_portfolio"`
	CombinedWeight   float64          `json:"combined_weight"`
	Attributes       Attributes       `json:"attributes"`
}

// Snapshot is a persisted point-in-time run. Rows are never modified
// after creation.
type Snapshot struct {
	ID             string             `json:"id"`
	Label          string             `json:"label,omitempty"`
	RunDate        time.Time          `json:"run_date"`
	PeriodDate     time.Time          `json:"period_date"`
	CreatedAt      time.Time          `json:"created_at"`
	TopN           int                `json:"top_n"`
	ManagerWeights map[string]float64 `json:"manager_weights,omitempty"`
	Managers       []ManagerStatus    `json:"managers"`
	Rows           []SnapshotRow      `json:"rows"`
}

// SnapshotSummary is the listing form of a snapshot.
type SnapshotSummary struct {
	ID           string    `json:"id"`
	Label        string    `json:"label,omitempty"`
	RunDate      time.Time `json:"run_date"`
	PeriodDate   time.Time `json:"period_date"`
	CreatedAt    time.Time `json:"created_at"`
	ManagerCount int       `json:"manager_count"`
	HoldingCount int       `json:"holding_count"`
}

// TickerHistoryEntry is one appearance of a ticker in a stored snapshot.
type TickerHistoryEntry struct {
	SnapshotID     string     `json:"snapshot_id"`
	RunDate        time.Time  `json:"run_date"`
	PeriodDate     time.Time  `json:"period_date"`
	Manager        string     `json:"manager"`
	Rank           int        `json:"rank"`
	PctOfPortfolio float64    `json:"pct_of_portfolio"`
	CombinedWeight float64    `json:"combined_weight"`
	Value          float64    `json:"value"`
	Attributes     Attributes `json:"attributes"`
}

// Summary returns the listing form of the snapshot.
func (s *Snapshot) Summary() *SnapshotSummary {
	managers := make(map[string]struct{})
	for _, r := range s.Rows {
		managers[r.Manager] = struct{}{}
	}
	return &SnapshotSummary{
		ID:           s.ID,
		Label:        s.Label,
		RunDate:      s.RunDate,
		PeriodDate:   s.PeriodDate,
		CreatedAt:    s.CreatedAt,
		ManagerCount: len(managers),
		HoldingCount: len(s.Rows),
	}
}

// HoldingsSets rebuilds the per-manager holdings sets stored in the
// snapshot, ordered by manager name and rank.
func (s *Snapshot) HoldingsSets() []*ManagerHoldingsSet {
	byManager := make(map[string]*ManagerHoldingsSet)
	var order []string
	for _, r := range s.Rows {
		set, ok := byManager[r.Manager]
		if !ok {
			set = &ManagerHoldingsSet{
				Manager: r.Manager,
				Period:  r.Period,
				FiledAt: r.FiledAt,
				Weight:  r.ManagerWeight,
			}
			byManager[r.Manager] = set
			order = append(order, r.Manager)
		}
		set.TotalValue += r.Value
		set.Holdings = append(set.Holdings, PositionHolding{
			EnrichedHolding: EnrichedHolding{
				ResolvedHolding: ResolvedHolding{
					RawHolding: RawHolding{
						Manager:        r.Manager,
						CUSIP:          r.CUSIP,
						Name:           r.Name,
						Shares:         r.Shares,
						Value:          r.Value,
						PeriodOfReport: r.Period,
						FiledAt:        r.FiledAt,
					},
					Ticker: r.Ticker,
					Method: r.ResolutionMethod,
				},
				Attributes: r.Attributes,
			},
			Rank:           r.Rank,
			PctOfPortfolio: r.PctOfPortfolio,
		})
	}

	sort.Strings(order)
	sets := make([]*ManagerHoldingsSet, 0, len(order))
	for _, m := range order {
		set := byManager[m]
		sort.SliceStable(set.Holdings, func(i, j int) bool {
			return set.Holdings[i].Rank < set.Holdings[j].Rank
		})
		set.TotalPositions = len(set.Holdings)
		sets = append(sets, set)
	}
	return sets
}
