package minting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/mintapi"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
)

const (
	DEFAULT_INTERVAL            = time.Second
	DEFAULT_BATCH_SIZE          = 1000
	DEFAULT_MAX_NUMBER_OF_TRIES = 3
	DEFAULT_CALL_TIMEOUT        = 30 * time.Second
	DEFAULT_WORKER_POOL_SIZE    = 10

	// writeBackTimeout bounds persisting a chunk outcome, including during shutdown
	writeBackTimeout = time.Minute
)

// SubmitterConfig holds configuration for the submission loop
type SubmitterConfig struct {
	Interval         time.Duration // Pause between iterations
	BatchSize        int           // Rows claimed per iteration while no quota is reported
	ChunkSize        int           // Rows per API call, at most 100
	MaxNumberOfTries int           // Failed attempts after which a row is given up
	CallTimeout      time.Duration // Timeout of a single API call
	WorkerPoolSize   int           // Concurrent API calls
}

func (c SubmitterConfig) withDefaults() SubmitterConfig {
	if c.Interval <= 0 {
		c.Interval = DEFAULT_INTERVAL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DEFAULT_BATCH_SIZE
	}
	if c.ChunkSize <= 0 || c.ChunkSize > domain.MAX_MINT_CHUNK_SIZE {
		c.ChunkSize = domain.MAX_MINT_CHUNK_SIZE
	}
	if c.MaxNumberOfTries <= 0 {
		c.MaxNumberOfTries = DEFAULT_MAX_NUMBER_OF_TRIES
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DEFAULT_CALL_TIMEOUT
	}
	if c.WorkerPoolSize <= 0 {
		c.WorkerPoolSize = DEFAULT_WORKER_POOL_SIZE
	}
	return c
}

// Submitter is the submission loop: it claims unset mint requests, submits them to the
// minting API per contract and applies the outcome of every chunk.
// Any number of submitters may run against the same store.
type Submitter struct {
	cfg     SubmitterConfig
	store   store.Store
	client  mintapi.Client
	clock   adapter.Clock
	metrics *metrics.Metrics
	quota   quotaTracker
	pool    pond.Pool

	// newBackOff builds the retry policy of outcome write-backs
	newBackOff func() backoff.BackOff

	// mu guards running and the per-run stop channels
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewSubmitter creates a new submission loop
func NewSubmitter(cfg SubmitterConfig, st store.Store, client mintapi.Client, clock adapter.Clock, m *metrics.Metrics) *Submitter {
	cfg = cfg.withDefaults()
	return &Submitter{
		cfg:        cfg,
		store:      st,
		client:     client,
		clock:      clock,
		metrics:    m,
		newBackOff: defaultWriteBackOff,
	}
}

// SubmitMintingRequests runs the submission loop until ctx is canceled
func SubmitMintingRequests(ctx context.Context, st store.Store, client mintapi.Client, clock adapter.Clock, cfg SubmitterConfig) error {
	return NewSubmitter(cfg, st, client, clock, nil).Start(ctx)
}

func defaultWriteBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	return b
}

// Name returns the submitter's name
func (s *Submitter) Name() string {
	return "mint-submitter"
}

// Start runs the loop. It blocks until ctx is canceled or Stop is called.
// Errors of a single iteration are logged and never end the loop.
func (s *Submitter) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("submitter already running")
	}
	s.running = true
	stopCh := make(chan struct{})
	stoppedCh := make(chan struct{})
	s.stopCh, s.stoppedCh = stopCh, stoppedCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.stopCh = nil
		s.mu.Unlock()
		close(stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting mint submitter",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Int("chunk_size", s.cfg.ChunkSize),
		zap.Int("max_number_of_tries", s.cfg.MaxNumberOfTries),
		zap.Int("worker_pool_size", s.cfg.WorkerPoolSize),
	)

	s.pool = pond.NewPool(s.cfg.WorkerPoolSize)
	defer s.pool.StopAndWait()

	for {
		if !s.sleep(ctx, stopCh, s.cfg.Interval) {
			logger.InfoCtx(ctx, "Mint submitter stopping")
			return nil
		}

		if err := s.runIteration(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err)
			}
		}
	}
}

// Stop gracefully stops the loop, waiting for in-flight chunks to settle
func (s *Submitter) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running || s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	stopCh, stoppedCh := s.stopCh, s.stoppedCh
	s.stopCh = nil
	s.mu.Unlock()

	logger.InfoCtx(ctx, "Stopping mint submitter")
	close(stopCh)

	select {
	case <-stoppedCh:
		logger.InfoCtx(ctx, "Mint submitter stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Mint submitter stop interrupted by context timeout")
		return ctx.Err()
	}
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// or the stop signal. Returns true if sleep completed normally.
func (s *Submitter) sleep(ctx context.Context, stopCh <-chan struct{}, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	}
}

// runIteration claims one batch, submits its chunks concurrently and waits for all of them to settle
func (s *Submitter) runIteration(ctx context.Context) error {
	batchSize, ok := s.quota.batchSize(s.clock.Now(), s.cfg.BatchSize)
	if !ok {
		logger.DebugCtx(ctx, "Mint quota exhausted, skipping iteration")
		return nil
	}

	assets, err := s.store.ClaimPendingMintAssets(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending mint requests: %w", err)
	}
	if len(assets) == 0 {
		logger.DebugCtx(ctx, "No pending mint requests")
		return nil
	}
	s.metrics.Claimed(len(assets))

	chunks := ChunkByContract(assets, s.cfg.ChunkSize)
	logger.InfoCtx(ctx, "Claimed mint requests",
		zap.Int("count", len(assets)),
		zap.Int("chunks", len(chunks)),
		zap.Int("batch_size", batchSize),
	)

	// Settle all: every chunk records its own outcome, one failing chunk never cancels another
	tasks := make([]pond.Task, 0, len(chunks))
	for _, chunk := range chunks {
		tasks = append(tasks, s.pool.Submit(func() {
			s.submitChunk(ctx, chunk)
		}))
	}
	for i, task := range tasks {
		if err := task.Wait(); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("chunk submission task failed: %w", err),
				zap.String("contract_address", chunks[i].ContractAddress),
				zap.Int("chunk_size", len(chunks[i].Assets)),
			)
		}
	}

	return nil
}

// submitChunk makes one API call and applies its outcome to the chunk's rows
func (s *Submitter) submitChunk(ctx context.Context, chunk Chunk) {
	fields := []zap.Field{
		zap.String("contract_address", chunk.ContractAddress),
		zap.Int("chunk_size", len(chunk.Assets)),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	result, err := s.client.CreateMintRequest(callCtx, chunk.ContractAddress, chunk.MintAssets())
	cancel()

	// Outcomes are persisted even when the loop is shutting down
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancelWrite()

	var conflict *mintapi.ConflictError
	switch {
	case err == nil:
		if result != nil && result.Quota != nil {
			s.quota.update(*result.Quota)
			s.metrics.QuotaRemaining(result.Quota.Remaining)
		}
		s.metrics.Chunk(metrics.ChunkSuccess)
		logger.InfoCtx(ctx, "Submitted mint chunk", fields...)
		s.writeBack(writeCtx, chunk.IDs(), store.ClaimedMintAssetUpdate{
			Status: domain.MintingStatusSubmitted,
		})

	case errors.As(err, &conflict) && s.hasConflictingAssets(chunk, conflict):
		conflicting, rest := chunk.PartitionByReferenceIDs(conflict.ReferenceIDs)
		s.metrics.Chunk(metrics.ChunkConflict)
		logger.WarnCtx(ctx, "Mint chunk rejected with conflicting reference ids",
			append(fields, zap.Strings("reference_ids", conflict.ReferenceIDs))...)
		s.writeBack(writeCtx, conflicting, store.ClaimedMintAssetUpdate{
			Status: domain.MintingStatusConflicting,
			Error:  errorPayload(err),
		})
		s.writeBack(writeCtx, rest, store.ClaimedMintAssetUpdate{
			Status: domain.MintingStatusUnset,
		})

	case ctx.Err() != nil:
		// The loop is shutting down, the attempt does not count
		logger.InfoCtx(ctx, "Mint chunk interrupted by shutdown, releasing", fields...)
		s.writeBack(writeCtx, chunk.IDs(), store.ClaimedMintAssetUpdate{
			Status: domain.MintingStatusUnset,
		})

	default:
		retry, exhausted := chunk.PartitionByTries(s.cfg.MaxNumberOfTries)
		s.metrics.Chunk(metrics.ChunkFailure)
		logger.ErrorCtx(ctx, fmt.Errorf("failed to submit mint chunk: %w", err),
			append(fields, zap.Int("retry", len(retry)), zap.Int("exhausted", len(exhausted)))...)
		s.writeBack(writeCtx, retry, store.ClaimedMintAssetUpdate{
			Status:              domain.MintingStatusUnset,
			IncrementTriedCount: true,
			Error:               errorPayload(err),
		})
		s.writeBack(writeCtx, exhausted, store.ClaimedMintAssetUpdate{
			Status:              domain.MintingStatusSubmissionFailed,
			IncrementTriedCount: true,
			Error:               errorPayload(fmt.Errorf("%w: %w", domain.ErrExhaustedRetries, err)),
		})
	}
}

// hasConflictingAssets reports whether the conflict names at least one asset of the chunk.
// A conflict naming none of them is handled as an ordinary failure so that it counts
// towards the retry limit.
func (s *Submitter) hasConflictingAssets(chunk Chunk, conflict *mintapi.ConflictError) bool {
	listed, _ := chunk.PartitionByReferenceIDs(conflict.ReferenceIDs)
	return len(listed) > 0
}

// writeBack applies an update to rows that are still submitting, retrying store errors
// with exponential backoff. Rows left behind are released later by the stale claim sweeper.
func (s *Submitter) writeBack(ctx context.Context, ids []string, update store.ClaimedMintAssetUpdate) {
	if len(ids) == 0 {
		return
	}

	var updated int64
	operation := func() error {
		n, err := s.store.UpdateClaimedMintAssets(ctx, ids, update)
		if err != nil {
			return err
		}
		updated = n
		return nil
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		logger.WarnCtx(ctx, "Mint outcome write-back failed, retrying",
			zap.Error(err),
			zap.String("status", string(update.Status)),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(s.newBackOff(), ctx), notifyOnError); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to write back mint outcome after %d retries: %w", attemptCount, err),
			zap.String("status", string(update.Status)),
			zap.Strings("ids", ids),
		)
		return
	}

	if int(updated) < len(ids) {
		// Rows already moved on, typically reconciled by a webhook event first
		logger.InfoCtx(ctx, "Some mint requests were no longer submitting",
			zap.String("status", string(update.Status)),
			zap.Int("count", len(ids)),
			zap.Int64("updated", updated),
		)
	}
	s.metrics.Records(string(update.Status), int(updated))
}

// errorPayload builds the error column value of a failed submission
func errorPayload(err error) datatypes.JSON {
	payload := map[string]interface{}{
		"message": err.Error(),
	}

	var apiErr *mintapi.APIError
	var conflict *mintapi.ConflictError
	switch {
	case errors.As(err, &conflict):
		payload["code"] = "CONFLICT_ERROR"
		payload["reference_ids"] = conflict.ReferenceIDs
	case errors.As(err, &apiErr):
		payload["status_code"] = apiErr.StatusCode
		if apiErr.Code != "" {
			payload["code"] = apiErr.Code
		}
	}
	if errors.Is(err, domain.ErrExhaustedRetries) {
		payload["exhausted"] = true
	}

	b, _ := json.Marshal(payload)
	return datatypes.JSON(b)
}
