package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
)

const (
	DEFAULT_STALE_CLAIM_AFTER = 10 * time.Minute
)

// StaleClaimSweeperConfig holds configuration for the stale claim sweeper
type StaleClaimSweeperConfig struct {
	StaleAfter time.Duration // Claims older than this are released
	Interval   time.Duration // Time between sweep cycles, defaults to half of StaleAfter
}

// staleClaimSweeper moves rows left in submitting by a crashed or partitioned
// submission loop back to unset
type staleClaimSweeper struct {
	config    StaleClaimSweeperConfig
	store     store.Store
	clock     adapter.Clock
	metrics   *metrics.Metrics
	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewStaleClaimSweeper creates a new stale claim sweeper
func NewStaleClaimSweeper(config StaleClaimSweeperConfig, st store.Store, clock adapter.Clock, m *metrics.Metrics) Sweeper {
	if config.StaleAfter <= 0 {
		config.StaleAfter = DEFAULT_STALE_CLAIM_AFTER
	}
	if config.Interval <= 0 {
		config.Interval = config.StaleAfter / 2
	}
	return &staleClaimSweeper{
		config:    config,
		store:     st,
		clock:     clock,
		metrics:   m,
	}
}

// Name returns the sweeper's name
func (s *staleClaimSweeper) Name() string {
	return "stale-claim-sweeper"
}

// Start runs a sweep cycle right away and then every interval
func (s *staleClaimSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	stopChan := make(chan struct{})
	stoppedCh := make(chan struct{})
	s.stopChan, s.stoppedCh = stopChan, stoppedCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopChan = nil
		s.mu.Unlock()
		close(stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting stale claim sweeper",
		zap.Duration("stale_after", s.config.StaleAfter),
		zap.Duration("interval", s.config.Interval),
	)

	for {
		if err := s.runSweepCycle(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err)
			}
		}

		if !s.sleep(ctx, stopChan, s.config.Interval) {
			logger.InfoCtx(ctx, "Stale claim sweeper stopping")
			return nil
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *staleClaimSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running || s.stopChan == nil {
		s.mu.Unlock()
		return nil // Already stopped
	}
	stopChan, stoppedCh := s.stopChan, s.stoppedCh
	s.stopChan = nil
	s.mu.Unlock()

	logger.InfoCtx(ctx, "Stopping stale claim sweeper")
	close(stopChan)

	select {
	case <-stoppedCh:
		logger.InfoCtx(ctx, "Stale claim sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Stale claim sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle releases every claim older than the stale threshold
func (s *staleClaimSweeper) runSweepCycle(ctx context.Context) error {
	before := s.clock.Now().Add(-s.config.StaleAfter)

	released, err := s.store.ReleaseStaleClaims(ctx, before)
	if err != nil {
		return fmt.Errorf("failed to release stale claims: %w", err)
	}

	if released > 0 {
		logger.WarnCtx(ctx, "Released stale mint claims",
			zap.Int64("count", released),
			zap.Time("claimed_before", before),
		)
		s.metrics.Released(released)
	}

	return nil
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// or the stop signal. Returns true if sleep completed normally.
func (s *staleClaimSweeper) sleep(ctx context.Context, stopChan <-chan struct{}, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-stopChan:
		return false
	}
}
