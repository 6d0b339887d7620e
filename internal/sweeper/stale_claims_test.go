package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-mint-reconciler/internal/mocks"
	"github.com/feral-file/ff-mint-reconciler/internal/sweeper"
)

// testSweeperMocks contains all the mocks needed for testing the sweeper
type testSweeperMocks struct {
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	clock   *mocks.MockClock
	sweeper sweeper.Sweeper
}

func setupTestSweeper(t *testing.T, config sweeper.StaleClaimSweeperConfig) *testSweeperMocks {
	ctrl := gomock.NewController(t)

	tm := &testSweeperMocks{
		ctrl:  ctrl,
		store: mocks.NewMockStore(ctrl),
		clock: mocks.NewMockClock(ctrl),
	}
	tm.sweeper = sweeper.NewStaleClaimSweeper(config, tm.store, tm.clock, nil)

	return tm
}

func TestStaleClaimSweeper_Name(t *testing.T) {
	tm := setupTestSweeper(t, sweeper.StaleClaimSweeperConfig{})
	defer tm.ctrl.Finish()

	assert.Equal(t, "stale-claim-sweeper", tm.sweeper.Name())
}

func TestStaleClaimSweeper_ReleasesOldClaims(t *testing.T) {
	tm := setupTestSweeper(t, sweeper.StaleClaimSweeperConfig{StaleAfter: 10 * time.Minute})
	defer tm.ctrl.Finish()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.clock.EXPECT().Now().Return(now)
	tm.store.EXPECT().
		ReleaseStaleClaims(gomock.Any(), now.Add(-10*time.Minute)).
		DoAndReturn(func(context.Context, time.Time) (int64, error) {
			cancel()
			return 3, nil
		})
	tm.clock.EXPECT().After(5 * time.Minute).Return(make(chan time.Time))

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(ctx)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStaleClaimSweeper_KeepsRunningAfterStoreError(t *testing.T) {
	tm := setupTestSweeper(t, sweeper.StaleClaimSweeperConfig{StaleAfter: time.Minute, Interval: time.Second})
	defer tm.ctrl.Finish()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elapsed := make(chan time.Time, 1)
	elapsed <- now

	tm.clock.EXPECT().Now().Return(now).Times(2)
	gomock.InOrder(
		tm.store.EXPECT().ReleaseStaleClaims(gomock.Any(), now.Add(-time.Minute)).Return(int64(0), errors.New("connection refused")),
		tm.store.EXPECT().ReleaseStaleClaims(gomock.Any(), now.Add(-time.Minute)).
			DoAndReturn(func(context.Context, time.Time) (int64, error) {
				cancel()
				return 0, nil
			}),
	)
	gomock.InOrder(
		tm.clock.EXPECT().After(time.Second).Return(elapsed),
		tm.clock.EXPECT().After(time.Second).Return(make(chan time.Time)),
	)

	require.NoError(t, tm.sweeper.Start(ctx))
}

func TestStaleClaimSweeper_Stop(t *testing.T) {
	tm := setupTestSweeper(t, sweeper.StaleClaimSweeperConfig{StaleAfter: time.Minute})
	defer tm.ctrl.Finish()

	swept := make(chan struct{})
	tm.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	tm.clock.EXPECT().After(30 * time.Second).Return(make(chan time.Time)).AnyTimes()
	tm.store.EXPECT().ReleaseStaleClaims(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time) (int64, error) {
			close(swept)
			return 0, nil
		})

	done := make(chan error, 1)
	go func() {
		done <- tm.sweeper.Start(context.Background())
	}()
	<-swept

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tm.sweeper.Stop(stopCtx))
	require.NoError(t, <-done)

	// Stopping twice is a no-op
	require.NoError(t, tm.sweeper.Stop(stopCtx))
}

func TestStaleClaimSweeper_Restart(t *testing.T) {
	tm := setupTestSweeper(t, sweeper.StaleClaimSweeperConfig{StaleAfter: time.Minute})
	defer tm.ctrl.Finish()

	swept := make(chan struct{}, 1)
	tm.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	tm.clock.EXPECT().After(30 * time.Second).Return(make(chan time.Time)).AnyTimes()
	tm.store.EXPECT().ReleaseStaleClaims(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, time.Time) (int64, error) {
			swept <- struct{}{}
			return 0, nil
		}).
		Times(2)

	for run := 1; run <= 2; run++ {
		done := make(chan error, 1)
		go func() {
			done <- tm.sweeper.Start(context.Background())
		}()
		<-swept

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		require.NoError(t, tm.sweeper.Stop(stopCtx), "run %d", run)
		require.NoError(t, <-done, "run %d", run)
		cancel()
	}
}
