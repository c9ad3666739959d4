package diff

import (
	"context"
	"errors"
	"fmt"

	"github.com/bobmcallan/holdwise/internal/common"
	"github.com/bobmcallan/holdwise/internal/interfaces"
	"github.com/bobmcallan/holdwise/internal/models"
	"github.com/bobmcallan/holdwise/internal/services/aggregate"
)

// Service compares stored snapshots on demand. Results are never stored.
type Service struct {
	store     interfaces.SnapshotStore
	threshold float64
	logger    *common.Logger
}

// NewService creates a diff service. A negative threshold selects
// models.DefaultMaterialityThreshold.
func NewService(store interfaces.SnapshotStore, threshold float64, logger *common.Logger) *Service {
	if threshold < 0 {
		threshold = models.DefaultMaterialityThreshold
	}
	return &Service{store: store, threshold: threshold, logger: logger}
}

// Compare diffs snapshot fromID (earlier) against toID (later). Unknown
// ids fail this call with a *common.ConfigError.
func (s *Service) Compare(ctx context.Context, fromID, toID string) (*models.SnapshotComparison, error) {
	from, err := s.load(ctx, "from", fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.load(ctx, "to", toID)
	if err != nil {
		return nil, err
	}

	fromSets, toSets := from.HoldingsSets(), to.HoldingsSets()
	fromPortfolio := aggregate.Aggregate(fromSets, from.ManagerWeights)
	toPortfolio := aggregate.Aggregate(toSets, to.ManagerWeights)

	cmp := &models.SnapshotComparison{
		From:      from.Summary(),
		To:        to.Summary(),
		Threshold: s.threshold,
		Portfolio: DiffPortfolios(fromPortfolio, toPortfolio, s.threshold),
		Managers:  DiffHoldings(fromSets, toSets, s.threshold),
	}

	s.logger.Debug().
		Str("from", fromID).
		Str("to", toID).
		Int("added", len(cmp.Portfolio.Added)).
		Int("removed", len(cmp.Portfolio.Removed)).
		Int("changed", len(cmp.Portfolio.Changed)).
		Msg("Snapshots compared")

	return cmp, nil
}

func (s *Service) load(ctx context.Context, field, id string) (*models.Snapshot, error) {
	if id == "" {
		return nil, &common.ConfigError{Field: field, Err: errors.New("snapshot id is required")}
	}
	snap, err := s.store.GetSnapshot(ctx, id)
	if errors.Is(err, models.ErrSnapshotNotFound) {
		return nil, &common.ConfigError{Field: field, Err: fmt.Errorf("%s: %w", id, models.ErrSnapshotNotFound)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}
	return snap, nil
}
