package models

// DefaultMaterialityThreshold is the minimum weight change, in percentage
// points, for a matched position to count as changed.
const DefaultMaterialityThreshold = 0.5

// PositionChange is one entry of a diff. Added positions carry only Current,
// removed ones only Previous. Delta is always Current - Previous.
type PositionChange struct {
	Key      string  `json:"key"`
	Ticker   string  `json:"ticker,omitempty"`
	Name     string  `json:"name"`
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
	Value    float64 `json:"value,omitempty"`
	Rank     int     `json:"rank,omitempty"`
}

// DiffResult is the comparison of two snapshots. It is computed on demand
// and never stored.
type DiffResult struct {
	Added          []PositionChange `json:"added"`
	Removed        []PositionChange `json:"removed"`
	Changed        []PositionChange `json:"changed"`
	UnchangedCount int              `json:"unchanged_count"`
}

// IsEmpty reports whether the diff found no material differences.
func (d *DiffResult) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// SnapshotComparison is the diff of two stored snapshots, globally and
// per manager.
type SnapshotComparison struct {
	From      *SnapshotSummary       `json:"from"`
	To        *SnapshotSummary       `json:"to"`
	Threshold float64                `json:"threshold"`
	Portfolio *DiffResult            `json:"portfolio"`
	Managers  map[string]*DiffResult `json:"managers"`
}
