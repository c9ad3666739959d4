package models

import "time"

// ManagerInput names a manager to fetch and its optional weight.
type ManagerInput struct {
	Name   string   `json:"name"`
	CIK    string   `json:"cik,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// RunRequest describes one fetch run.
type RunRequest struct {
	Managers   []ManagerInput `json:"managers"`
	QuarterEnd time.Time      `json:"quarter_end"`
	TopN       int            `json:"top_n"`
	Label      string         `json:"label,omitempty"`
	Persist    bool           `json:"persist"`
}

// RunEventType classifies progress events.
type RunEventType string

const (
	EventRunStarted     RunEventType = "run_started"
	EventManagerStarted RunEventType = "manager_started"
	EventManagerDone    RunEventType = "manager_done"
	EventRunFinished    RunEventType = "run_finished"
)

// RunEvent is emitted as managers start and complete.
type RunEvent struct {
	Type      RunEventType   `json:"type"`
	RunID     string         `json:"run_id"`
	Manager   *ManagerStatus `json:"manager,omitempty"`
	Completed int            `json:"completed"`
	Total     int            `json:"total"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunResult is the outcome of a run. When Aborted is true the portfolio
// covers only managers that finished before cancellation.
type RunResult struct {
	RunID      string                `json:"run_id"`
	Aborted    bool                  `json:"aborted"`
	Managers   []ManagerStatus       `json:"managers"`
	Sets       []*ManagerHoldingsSet `json:"sets"`
	Portfolio  *WeightedPortfolio    `json:"portfolio"`
	SnapshotID string                `json:"snapshot_id,omitempty"`
}
