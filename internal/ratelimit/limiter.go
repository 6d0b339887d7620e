package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
)

const (
	DEFAULT_KEY                   = "ff:mint:limiter:mint-requests"
	DEFAULT_MAX_WAIT              = 2 * time.Minute
	DEFAULT_HEALTH_CHECK_INTERVAL = 10 * time.Second
	DEFAULT_FALLBACK_MULTIPLIER   = 0.5
)

// ErrLimiterClosed is returned by Wait once the limiter is closed
var ErrLimiterClosed = errors.New("rate limiter is closed")

// Limiter paces calls to the minting API across every submitter process
type Limiter interface {
	// Wait blocks until a call may be made, the context is done or MaxWait elapses
	Wait(ctx context.Context) error

	// Close stops the health check and closes the Redis connection
	Close() error
}

// Config holds the limiter configuration
type Config struct {
	// Key is the Redis key shared by every submitter
	Key string
	// RequestsPerSecond is the total rate across all submitters
	RequestsPerSecond int
	// Burst defaults to RequestsPerSecond
	Burst int
	// MaxWait bounds a single Wait
	MaxWait time.Duration
	// EnableLocalFallback paces locally while Redis is unreachable
	EnableLocalFallback bool
	// LocalFallbackMultiplier scales the local rate, as other replicas are likely falling back too
	LocalFallbackMultiplier float64
	HealthCheckInterval     time.Duration
}

type limiter struct {
	config         Config
	redis          adapter.RedisClient
	distributed    adapter.RedisRateLimiter
	local          *rate.Limiter
	preFilter      *rate.Limiter
	clock          adapter.Clock
	redisAvailable atomic.Bool
	closed         atomic.Bool
	closeOnce      sync.Once
	stopChan       chan struct{}
}

// NewLimiter creates a limiter. A nil Redis client paces locally only.
func NewLimiter(cfg Config, rc adapter.RedisClient, clock adapter.Clock) (Limiter, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if rc == nil {
		cfg.EnableLocalFallback = true
		cfg.LocalFallbackMultiplier = 1
	}

	localRate := max(float64(cfg.RequestsPerSecond)*cfg.LocalFallbackMultiplier, 1.0)
	l := &limiter{
		config:    cfg,
		redis:     rc,
		local:     rate.NewLimiter(rate.Limit(localRate), cfg.Burst),
		preFilter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		clock:     clock,
		stopChan:  make(chan struct{}),
	}

	if rc == nil {
		logger.Info("Mint request limiter running without Redis", zap.Int("requests_per_second", cfg.RequestsPerSecond))
		return l, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	available := true
	if err := rc.Ping(ctx).Err(); err != nil {
		available = false
		if !cfg.EnableLocalFallback {
			return nil, fmt.Errorf("redis unavailable and fallback disabled: %w", err)
		}
		logger.Warn("Redis unavailable, will use local fallback", zap.Error(err))
	}
	l.redisAvailable.Store(available)
	l.distributed = rc.NewRateLimiter()

	go l.monitorRedisHealth()

	logger.Info("Mint request limiter initialized",
		zap.String("key", cfg.Key),
		zap.Int("requests_per_second", cfg.RequestsPerSecond),
		zap.Int("burst", cfg.Burst),
		zap.Bool("local_fallback", cfg.EnableLocalFallback),
	)

	return l, nil
}

func (l *limiter) Wait(ctx context.Context) error {
	if l.closed.Load() {
		return ErrLimiterClosed
	}

	ctx, cancel := context.WithTimeout(ctx, l.config.MaxWait)
	defer cancel()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if l.redisAvailable.Load() {
			// Keeps this process from hammering Redis beyond its own share
			if err := waitToken(ctx, l.preFilter); err != nil {
				return err
			}

			allowed, retryAfter, err := l.tryDistributed(ctx)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return ctx.Err()
				}

				l.redisAvailable.Store(false)
				if !l.config.EnableLocalFallback {
					return fmt.Errorf("redis rate limiter unavailable: %w", err)
				}
				logger.WarnCtx(ctx, "Redis rate limiter error, falling back to local", zap.Error(err))
			case allowed:
				return nil
			default:
				// 50-150% of retryAfter so waiting submitters do not retry in lockstep
				jitter := time.Duration(float64(retryAfter) * (0.5 + rand.Float64())) //nolint:gosec,G404
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-l.clock.After(jitter):
				}
				continue
			}
		}

		if l.config.EnableLocalFallback {
			return waitToken(ctx, l.local)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(100 * time.Millisecond):
		}
	}
}

// waitToken waits on a local limiter. rate refuses up front when the token would arrive
// after the context deadline; that refusal is reported as context.DeadlineExceeded.
func waitToken(ctx context.Context, lim *rate.Limiter) error {
	err := lim.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// tryDistributed returns whether a token was taken and, when not, how long to wait.
// Any error comes from Redis.
func (l *limiter) tryDistributed(ctx context.Context) (bool, time.Duration, error) {
	res, err := l.distributed.Allow(ctx, l.config.Key, redis_rate.Limit{
		Rate:   l.config.RequestsPerSecond,
		Burst:  l.config.Burst,
		Period: time.Second,
	})
	if err != nil {
		return false, 0, err
	}

	if res.Allowed == 0 {
		logger.DebugCtx(ctx, "Mint request token unavailable, waiting",
			zap.Duration("retry_after", res.RetryAfter),
			zap.Int("remaining", res.Remaining),
		)
		retryAfter := res.RetryAfter
		if retryAfter <= 0 {
			retryAfter = 10 * time.Millisecond
		}
		return false, retryAfter, nil
	}

	return true, 0, nil
}

func (l *limiter) monitorRedisHealth() {
	for {
		select {
		case <-l.stopChan:
			return
		case <-l.clock.After(l.config.HealthCheckInterval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := l.redis.Ping(ctx).Err()
		cancel()

		available := err == nil
		if !l.redisAvailable.Swap(available) && available {
			logger.Info("Redis connection restored")
		}
	}
}

func (l *limiter) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopChan)

		if l.redis == nil {
			return
		}
		if err = l.redis.Close(); err != nil {
			logger.Warn("Error closing Redis connection", zap.Error(err))
		}
	})
	return err
}

// validateConfig validates and sets defaults for the configuration
func validateConfig(cfg *Config) error {
	if cfg.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.Key == "" {
		cfg.Key = DEFAULT_KEY
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DEFAULT_MAX_WAIT
	}
	if cfg.LocalFallbackMultiplier <= 0 || cfg.LocalFallbackMultiplier > 1 {
		cfg.LocalFallbackMultiplier = DEFAULT_FALLBACK_MULTIPLIER
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = DEFAULT_HEALTH_CHECK_INTERVAL
	}
	return nil
}
