package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/golang/mock/gomock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/mocks"
	"github.com/feral-file/ff-mint-reconciler/internal/ratelimit"
)

const testHealthInterval = time.Hour

type testLimiterMocks struct {
	redisClient      *mocks.MockRedisClient
	redisRateLimiter *mocks.MockRedisRateLimiter
	clock            *mocks.MockClock
}

func setupTestLimiter(t *testing.T) *testLimiterMocks {
	ctrl := gomock.NewController(t)
	m := &testLimiterMocks{
		redisClient:      mocks.NewMockRedisClient(ctrl),
		redisRateLimiter: mocks.NewMockRedisRateLimiter(ctrl),
		clock:            mocks.NewMockClock(ctrl),
	}

	// Health checks never fire, backoff sleeps return at once
	m.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		if d == testHealthInterval {
			return make(chan time.Time)
		}
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}).AnyTimes()

	return m
}

func pingResult(err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func newTestConfig() ratelimit.Config {
	return ratelimit.Config{
		Key:                 "test:mint",
		RequestsPerSecond:   1000,
		EnableLocalFallback: true,
		HealthCheckInterval: testHealthInterval,
	}
}

func newDistributedLimiter(t *testing.T, m *testLimiterMocks, cfg ratelimit.Config, pingErr error) ratelimit.Limiter {
	m.redisClient.EXPECT().Ping(gomock.Any()).Return(pingResult(pingErr))
	m.redisClient.EXPECT().NewRateLimiter().Return(m.redisRateLimiter)
	m.redisClient.EXPECT().Close().Return(nil)

	l, err := ratelimit.NewLimiter(cfg, m.redisClient, m.clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestNewLimiter_InvalidConfig(t *testing.T) {
	_, err := ratelimit.NewLimiter(ratelimit.Config{}, nil, adapter.NewClock())
	assert.Error(t, err)
}

func TestNewLimiter_RedisDownWithoutFallback(t *testing.T) {
	m := setupTestLimiter(t)
	m.redisClient.EXPECT().Ping(gomock.Any()).Return(pingResult(errors.New("connection refused")))

	cfg := newTestConfig()
	cfg.EnableLocalFallback = false

	_, err := ratelimit.NewLimiter(cfg, m.redisClient, m.clock)
	assert.Error(t, err)
}

func TestLimiter_LocalOnly(t *testing.T) {
	l, err := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1000}, nil, adapter.NewClock())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	for range 5 {
		assert.NoError(t, l.Wait(context.Background()))
	}
}

func TestLimiter_LocalOnlyRespectsContext(t *testing.T) {
	l, err := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, Burst: 1}, nil, adapter.NewClock())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestLimiter_DistributedAllowed(t *testing.T) {
	m := setupTestLimiter(t)
	l := newDistributedLimiter(t, m, newTestConfig(), nil)

	m.redisRateLimiter.EXPECT().
		Allow(gomock.Any(), "test:mint", redis_rate.Limit{Rate: 1000, Burst: 1000, Period: time.Second}).
		Return(&redis_rate.Result{Allowed: 1, Remaining: 999}, nil)

	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_DistributedWaitsForToken(t *testing.T) {
	m := setupTestLimiter(t)
	l := newDistributedLimiter(t, m, newTestConfig(), nil)

	gomock.InOrder(
		m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&redis_rate.Result{Allowed: 0, RetryAfter: 5 * time.Millisecond}, nil),
		m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&redis_rate.Result{Allowed: 1}, nil),
	)

	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_FallsBackToLocalOnRedisError(t *testing.T) {
	m := setupTestLimiter(t)
	l := newDistributedLimiter(t, m, newTestConfig(), nil)

	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis timeout")).
		Times(1)

	assert.NoError(t, l.Wait(context.Background()))
	// Redis stays marked unavailable until the health check restores it
	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_RedisErrorWithoutFallback(t *testing.T) {
	m := setupTestLimiter(t)
	cfg := newTestConfig()
	cfg.EnableLocalFallback = false
	l := newDistributedLimiter(t, m, cfg, nil)

	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis timeout"))

	assert.Error(t, l.Wait(context.Background()))
}

func TestLimiter_RedisDownAtStartUsesLocal(t *testing.T) {
	m := setupTestLimiter(t)
	l := newDistributedLimiter(t, m, newTestConfig(), errors.New("connection refused"))

	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_MaxWait(t *testing.T) {
	m := setupTestLimiter(t)
	cfg := newTestConfig()
	cfg.MaxWait = 20 * time.Millisecond
	l := newDistributedLimiter(t, m, cfg, nil)

	// Denied once, then Redis hangs until the deadline
	gomock.InOrder(
		m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&redis_rate.Result{Allowed: 0, RetryAfter: time.Millisecond}, nil),
		m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ string, _ redis_rate.Limit) (*redis_rate.Result, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
	)

	err := l.Wait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_MaxWaitWhileRedisDeniesWithoutFallback(t *testing.T) {
	m := setupTestLimiter(t)
	cfg := newTestConfig()
	cfg.MaxWait = 20 * time.Millisecond
	cfg.EnableLocalFallback = false
	l := newDistributedLimiter(t, m, cfg, nil)

	// A healthy Redis that keeps denying; the retries quickly drain the local share
	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 0, RetryAfter: time.Millisecond}, nil).
		AnyTimes()

	err := l.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "redis rate limiter unavailable")
}

func TestLimiter_MaxWaitOnLocalShareKeepsRedisAvailable(t *testing.T) {
	m := setupTestLimiter(t)
	cfg := newTestConfig()
	// One token every 50ms for this process, far beyond MaxWait
	cfg.RequestsPerSecond = 20
	cfg.Burst = 1
	cfg.MaxWait = 10 * time.Millisecond
	cfg.EnableLocalFallback = false
	l := newDistributedLimiter(t, m, cfg, nil)

	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 1}, nil).
		Times(2)

	require.NoError(t, l.Wait(context.Background()))

	// The local share is empty: the wait times out without touching Redis
	err := l.Wait(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, err.Error(), "redis rate limiter unavailable")

	// Redis was not marked down, so once the share refills the next call goes to Redis again
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, l.Wait(context.Background()))
}

func TestLimiter_MaxWaitOnLocalShareWithFallback(t *testing.T) {
	m := setupTestLimiter(t)
	cfg := newTestConfig()
	cfg.RequestsPerSecond = 20
	cfg.Burst = 1
	cfg.MaxWait = 10 * time.Millisecond
	l := newDistributedLimiter(t, m, cfg, nil)

	m.redisRateLimiter.EXPECT().Allow(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&redis_rate.Result{Allowed: 1}, nil).
		Times(1)

	require.NoError(t, l.Wait(context.Background()))

	// Must not be mistaken for a Redis failure and let through by the local fallback
	assert.ErrorIs(t, l.Wait(context.Background()), context.DeadlineExceeded)
}

func TestLimiter_LocalOnlyMaxWait(t *testing.T) {
	l, err := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1, Burst: 1, MaxWait: 10 * time.Millisecond}, nil, adapter.NewClock())
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	require.NoError(t, l.Wait(context.Background()))
	assert.ErrorIs(t, l.Wait(context.Background()), context.DeadlineExceeded)
}

func TestLimiter_Close(t *testing.T) {
	m := setupTestLimiter(t)
	l := newDistributedLimiter(t, m, newTestConfig(), nil)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Wait(context.Background()), ratelimit.ErrLimiterClosed)
}
