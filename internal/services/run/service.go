// Package run executes a fetch run: every manager's filing is fetched,
// resolved and enriched on a bounded worker pool, then the completed sets
// are aggregated and optionally persisted as a snapshot.
package run

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/services/aggregate"
	"github.com/bobmcallan/holdwise/internal/services/holdings"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// Service runs the per-manager pipelines.
type Service struct {
	filings  interfaces.FilingSource
	resolver interfaces.IdentifierResolver
	enricher interfaces.Enricher
	store    interfaces.SnapshotStore
	workers  int
	metrics  *metrics.Metrics
	logger   *common.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithStore enables persisting snapshots.
func WithStore(store interfaces.SnapshotStore) Option {
	return func(s *Service) { s.store = store }
}

// WithWorkers sets the number of managers processed concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMetrics records manager outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides run id generation.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService creates a run Service.
func NewService(filings interfaces.FilingSource, resolver interfaces.IdentifierResolver, enricher interfaces.Enricher, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		filings:  filings,
		resolver: resolver,
		enricher: enricher,
		workers:  DefaultWorkers,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// outcome is one manager's pipeline result.
type outcome struct {
	set    *models.ManagerHoldingsSet
	status models.ManagerStatus
}

// Run processes every manager in req. A failed manager is reported in
// the result and left out of the portfolio. When ctx is cancelled the
// run stops starting managers, abandons in-flight ones, and returns the
// managers already completed with Aborted set; nothing is persisted.
func (s *Service) Run(ctx context.Context, req models.RunRequest, progress interfaces.ProgressFunc) (*models.RunResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(models.RunEvent) {}
	}

	quarterEnd := req.QuarterEnd
	if quarterEnd.IsZero() {
		quarterEnd = common.LastQuarterEnd(s.now())
	}

	runID := s.newID()
	total := len(req.Managers)
	result := &models.RunResult{RunID: runID}
	started := s.now()

	s.logger.Info().
		Str("run_id", runID).
		Int("managers", total).
		Str("quarter_end", quarterEnd.Format("2006-01-02")).
		Int("workers", s.workers).
		Msg("Run started")
	progress(models.RunEvent{Type: models.EventRunStarted, RunID: runID, Total: total, Timestamp: started})

	outcomes := make([]outcome, total)
	for i, m := range req.Managers {
		outcomes[i].status = models.ManagerStatus{Manager: m.Name, Status: models.ManagerPending}
	}

	var (
		mu        sync.Mutex
		completed int
		wg        sync.WaitGroup
	)
	emit := func(typ models.RunEventType, st models.ManagerStatus) {
		mu.Lock()
		if typ == models.EventManagerDone {
			completed++
		}
		ev := models.RunEvent{Type: typ, RunID: runID, Manager: &st, Completed: completed, Total: total, Timestamp: s.now()}
		progress(ev)
		mu.Unlock()
	}

	jobs := make(chan int)
	workers := s.workers
	if workers > total {
		workers = total
	}
	for w := 0; w < workers; w++ {
		s.safeGo(&wg, fmt.Sprintf("run-worker-%d", w), func() {
			for i := range jobs {
				m := req.Managers[i]
				if ctx.Err() != nil {
					outcomes[i].status.Status = models.ManagerCancelled
					continue
				}
				emit(models.EventManagerStarted, models.ManagerStatus{Manager: m.Name, Status: models.ManagerRunning, StartedAt: s.now()})
				outcomes[i] = s.processManager(ctx, m, quarterEnd)
				emit(models.EventManagerDone, outcomes[i].status)
			}
		})
	}

dispatch:
	for i := range req.Managers {
		select {
		case jobs <- i:
		case <-ctx.Done():
			for j := i; j < total; j++ {
				outcomes[j].status.Status = models.ManagerCancelled
			}
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	result.Aborted = ctx.Err() != nil
	weights := make(map[string]float64)
	for i, m := range req.Managers {
		o := outcomes[i]
		result.Managers = append(result.Managers, o.status)
		if o.set != nil && o.status.Status == models.ManagerSucceeded {
			result.Sets = append(result.Sets, o.set)
			if m.Weight != nil {
				weights[m.Name] = *m.Weight
			}
		}
	}
	result.Portfolio = aggregate.Aggregate(result.Sets, weights)

	var saveErr error
	if req.Persist && !result.Aborted && s.store != nil && len(result.Sets) > 0 {
		snap := BuildSnapshot(runID, req, quarterEnd, s.now(), result)
		if err := s.store.SaveSnapshot(ctx, snap); err != nil {
			saveErr = fmt.Errorf("failed to save snapshot %s: %w", runID, err)
			s.logger.Error().Err(err).Str("run_id", runID).Msg("Snapshot save failed")
		} else {
			result.SnapshotID = snap.ID
		}
	}

	progress(models.RunEvent{Type: models.EventRunFinished, RunID: runID, Completed: completed, Total: total, Timestamp: s.now()})
	s.logger.Info().
		Str("run_id", runID).
		Bool("aborted", result.Aborted).
		Int("succeeded", len(result.Sets)).
		Int("positions", len(result.Portfolio.Positions)).
		Str("snapshot", result.SnapshotID).
		Dur("elapsed", s.now().Sub(started)).
		Msg("Run finished")

	return result, saveErr
}

// processManager runs fetch, resolve, enrich and build for one manager.
// A panic anywhere in the pipeline fails only this manager.
func (s *Service) processManager(ctx context.Context, m models.ManagerInput, quarterEnd time.Time) (out outcome) {
	start := s.now()
	out.status = models.ManagerStatus{Manager: m.Name, Status: models.ManagerRunning, StartedAt: start}
	s.metrics.ManagerStarted()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("manager", m.Name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in manager pipeline")
			out.set = nil
			out.status.Status = models.ManagerFailed
			out.status.Error = fmt.Sprintf("panic: %v", r)
		}
		out.status.CompletedAt = s.now()
		s.metrics.ManagerFinished(string(out.status.Status), out.status.CompletedAt.Sub(start))
	}()

	cancelled := func() bool {
		if ctx.Err() != nil {
			out.status.Status = models.ManagerCancelled
			out.status.Error = ctx.Err().Error()
			return true
		}
		return false
	}

	if cancelled() {
		return out
	}
	raws, err := s.filings.FetchHoldings(ctx, m, quarterEnd)
	if err != nil {
		if cancelled() {
			return out
		}
		s.logger.Warn().Err(err).Str("manager", m.Name).Msg("Filing fetch failed")
		out.status.Status = models.ManagerFailed
		out.status.Error = err.Error()
		return out
	}

	if cancelled() {
		return out
	}
	resolved := s.resolver.ResolveAll(ctx, raws)

	if cancelled() {
		return out
	}
	enriched := s.enricher.EnrichAll(ctx, resolved, quarterEnd)

	// enrichment under a cancelled context is incomplete
	if cancelled() {
		return out
	}

	out.set = holdings.Build(m.Name, m.Weight, enriched)
	out.status.Status = models.ManagerSucceeded
	out.status.Positions = len(out.set.Holdings)
	for _, h := range out.set.Holdings {
		if !h.HasTicker() {
			out.status.Unresolved++
		}
	}

	s.logger.Debug().
		Str("manager", m.Name).
		Int("positions", out.status.Positions).
		Int("unresolved", out.status.Unresolved).
		Msg("Manager completed")
	return out
}

// safeGo launches a goroutine with panic recovery and logging.
func (s *Service) safeGo(wg *sync.WaitGroup, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in run worker")
			}
		}()
		fn()
	}()
}

func validate(req models.RunRequest) error {
	if len(req.Managers) == 0 {
		return &common.ConfigError{Field: "managers", Err: fmt.Errorf("at least one manager is required")}
	}
	seen := make(map[string]bool)
	for _, m := range req.Managers {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return &common.ConfigError{Field: "managers.name", Err: fmt.Errorf("manager name is required")}
		}
		if seen[name] {
			return &common.ConfigError{Field: "managers.name", Err: fmt.Errorf("duplicate manager %q", name)}
		}
		seen[name] = true
		if m.Weight != nil && (*m.Weight < 0 || *m.Weight > 100) {
			return &common.ConfigError{Field: "managers.weight", Err: fmt.Errorf("weight for %s must be within 0-100", name)}
		}
	}
	if req.TopN < 0 {
		return &common.ConfigError{Field: "top_n", Err: fmt.Errorf("must not be negative")}
	}
	return nil
}
