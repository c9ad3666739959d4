// Package resolver maps raw filing holdings to canonical tickers through a
// prioritised chain of resolution stages.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/holdwise/internal/cache"
	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/metrics"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/refdata"
)

const (
	DefaultBatchSize   = 50
	DefaultAttempts    = 2
	DefaultRetryDelay  = 5 * time.Second
	DefaultCallTimeout = 20 * time.Second
)

// Service implements IdentifierResolver
type Service struct {
	chain     Chain
	tables    *refdata.Tables
	mapper    interfaces.IdentifierMapper
	companies interfaces.CompanyIndexClient
	cusips    cache.Store[string] // "" records a CUSIP known to have no ticker
	logger    *common.Logger
	metrics   *metrics.Metrics

	batchSize   int
	attempts    int
	retryDelay  time.Duration
	callTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	indexMu     sync.Mutex
	index       *NameIndex
	indexLoaded time.Time
}

var _ interfaces.IdentifierResolver = (*Service)(nil)

// Option configures the service
type Option func(*Service)

// WithMapper enables the batched external stage
func WithMapper(m interfaces.IdentifierMapper) Option {
	return func(s *Service) { s.mapper = m }
}

// WithCompanyIndex enables the name fallback stage
func WithCompanyIndex(c interfaces.CompanyIndexClient) Option {
	return func(s *Service) { s.companies = c }
}

// WithNameIndex installs a prebuilt name index
func WithNameIndex(idx *NameIndex) Option {
	return func(s *Service) { s.index = idx }
}

// WithCache replaces the per-process CUSIP cache with a shared one
func WithCache(c cache.Store[string]) Option {
	return func(s *Service) { s.cusips = c }
}

// WithTables replaces the embedded reference tables
func WithTables(t *refdata.Tables) Option {
	return func(s *Service) { s.tables = t }
}

// WithMetrics records resolution outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithBatching sets batch size, attempts per batch, the delay between
// attempts and the timeout of each call. Non-positive values keep defaults.
func WithBatching(size, attempts int, retryDelay, callTimeout time.Duration) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
		if attempts > 0 {
			s.attempts = attempts
		}
		if retryDelay >= 0 {
			s.retryDelay = retryDelay
		}
		if callTimeout > 0 {
			s.callTimeout = callTimeout
		}
	}
}

// NewService creates a resolver. Without a mapper or company index the
// corresponding stages never match.
func NewService(logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		logger:      logger,
		batchSize:   DefaultBatchSize,
		attempts:    DefaultAttempts,
		retryDelay:  DefaultRetryDelay,
		callTimeout: DefaultCallTimeout,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tables == nil {
		s.tables = refdata.Default()
	}
	if s.cusips == nil {
		s.cusips = cache.NewMemoryStore[string]()
	}
	if s.index != nil {
		s.indexLoaded = time.Now()
	}
	s.chain = DefaultChain(s.tables)
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResolveAll resolves every holding, preserving order and count.
func (s *Service) ResolveAll(ctx context.Context, raws []models.RawHolding) []models.ResolvedHolding {
	bc := s.Prepare(ctx, raws)

	out := make([]models.ResolvedHolding, len(raws))
	unresolved := 0
	for i, raw := range raws {
		out[i] = s.chain.Resolve(raw, bc)
		s.metrics.Resolved(string(out[i].Method))
		if !out[i].HasTicker() {
			unresolved++
		}
	}

	if len(raws) > 0 {
		s.logger.Debug().
			Str("manager", raws[0].Manager).
			Int("holdings", len(raws)).
			Int("unresolved", unresolved).
			Msg("holdings resolved")
	}
	return out
}

// Resolve runs the chain for a single holding against a prepared context.
func (s *Service) Resolve(raw models.RawHolding, bc *BatchContext) models.ResolvedHolding {
	return s.chain.Resolve(raw, bc)
}

// Prepare performs the network work the chain needs for raws: one batched
// external lookup for every CUSIP the offline stages cannot resolve, and the
// name index if anything is still missing afterwards.
func (s *Service) Prepare(ctx context.Context, raws []models.RawHolding) *BatchContext {
	bc := &BatchContext{External: map[string]string{}}

	seen := make(map[string]bool)
	var needs []string
	for _, raw := range raws {
		if models.NormalizeTicker(raw.Ticker) != "" {
			continue
		}
		cusip := normalizeCUSIP(raw.CUSIP)
		if _, ok := s.tables.TickerForCUSIP(cusip); ok {
			continue
		}
		if !validCUSIP(cusip) || seen[cusip] {
			continue
		}
		seen[cusip] = true
		needs = append(needs, cusip)
	}
	sort.Strings(needs)

	if len(needs) > 0 && s.mapper != nil {
		bc.External = s.lookupBatched(ctx, needs)
	}

	needNames := false
	for _, raw := range raws {
		if models.NormalizeTicker(raw.Ticker) != "" {
			continue
		}
		cusip := normalizeCUSIP(raw.CUSIP)
		if _, ok := s.tables.TickerForCUSIP(cusip); ok {
			continue
		}
		if _, ok := bc.External[cusip]; ok {
			continue
		}
		needNames = true
		break
	}
	if needNames {
		bc.Names = s.nameIndex(ctx)
	}
	return bc
}

// lookupBatched resolves CUSIPs through the external mapper in fixed-size
// batches. A batch that fails every attempt leaves its members unresolved
// and uncached; other batches are unaffected.
func (s *Service) lookupBatched(ctx context.Context, cusips []string) map[string]string {
	result := make(map[string]string)

	var pending []string
	for _, c := range cusips {
		if t, ok := s.cusips.Get(ctx, c); ok {
			if t != "" {
				result[c] = t
			}
			continue
		}
		pending = append(pending, c)
	}

	for start := 0; start < len(pending); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Int("skipped", len(pending)-start).Msg("external resolution cancelled")
			break
		}
		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		found, err := s.callWithRetry(ctx, batch)
		if err != nil {
			s.metrics.BatchCall("failed")
			s.logger.Warn().Err(err).Int("batch_size", len(batch)).Msg("external resolution batch failed, members left unresolved")
			continue
		}
		s.metrics.BatchCall("ok")

		for _, c := range batch {
			t := models.NormalizeTicker(found[c])
			s.cusips.Set(ctx, c, t, 0)
			if t != "" {
				result[c] = t
			}
		}
	}
	return result
}

func (s *Service) callWithRetry(ctx context.Context, batch []string) (map[string]string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		found, err := s.mapper.MapCUSIPs(callCtx, batch)
		cancel()
		if err == nil {
			return found, nil
		}
		lastErr = err
		s.logger.Debug().Err(err).Int("attempt", attempt).Msg("external resolution attempt failed")

		if attempt < s.attempts {
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return nil, fmt.Errorf("retry wait: %w", err)
			}
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.attempts, lastErr)
}

// nameIndex returns the company name index, loading it on first use and
// reloading it once it is older than common.FreshnessCompanyIndex. A failed
// load is retried on the next call; a stale index is kept until then.
func (s *Service) nameIndex(ctx context.Context) *NameIndex {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if s.companies == nil || ctx.Err() != nil {
		return s.index
	}
	if s.index != nil && common.IsFresh(s.indexLoaded, common.FreshnessCompanyIndex) {
		return s.index
	}

	rows, err := s.companies.GetCompanyTickers(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("company name index unavailable")
		return s.index
	}
	s.index = NewNameIndex(rows)
	s.indexLoaded = time.Now()
	s.logger.Info().Int("names", s.index.Len()).Msg("company name index loaded")
	return s.index
}
