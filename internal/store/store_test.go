package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

const testContract = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

// RunStoreTests runs the store test suite against the given backend
func RunStoreTests(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	t.Run("CreateMintAsset", func(t *testing.T) {
		testCreateMintAsset(t, initDB, cleanupDB)
	})
	t.Run("CreateMintAsset_Duplicate", func(t *testing.T) {
		testCreateMintAssetDuplicate(t, initDB, cleanupDB)
	})
	t.Run("GetMintAsset_NotFound", func(t *testing.T) {
		testGetMintAssetNotFound(t, initDB, cleanupDB)
	})
	t.Run("ClaimPendingMintAssets", func(t *testing.T) {
		testClaimPendingMintAssets(t, initDB, cleanupDB)
	})
	t.Run("UpdateClaimedMintAssets", func(t *testing.T) {
		testUpdateClaimedMintAssets(t, initDB, cleanupDB)
	})
	t.Run("UpdateClaimedMintAssets_SkipsReconciled", func(t *testing.T) {
		testUpdateClaimedMintAssetsSkipsReconciled(t, initDB, cleanupDB)
	})
	t.Run("ReleaseStaleClaims", func(t *testing.T) {
		testReleaseStaleClaims(t, initDB, cleanupDB)
	})
	t.Run("SyncMintingStatus_Insert", func(t *testing.T) {
		testSyncMintingStatusInsert(t, initDB, cleanupDB)
	})
	t.Run("SyncMintingStatus_Ordering", func(t *testing.T) {
		testSyncMintingStatusOrdering(t, initDB, cleanupDB)
	})
	t.Run("SyncMintingStatus_PreservesFields", func(t *testing.T) {
		testSyncMintingStatusPreservesFields(t, initDB, cleanupDB)
	})
}

// RunConcurrentClaimTests checks claim disjointness. The store must not be bound to a
// single transaction.
func RunConcurrentClaimTests(t *testing.T, s Store) {
	ctx := context.Background()

	const total = 60
	for i := 0; i < total; i++ {
		createTestAsset(t, s, fmt.Sprintf("ref-%03d", i))
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		claimed = make(map[string]int)
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				assets, err := s.ClaimPendingMintAssets(ctx, 7)
				if !assert.NoError(t, err) {
					return
				}
				if len(assets) == 0 {
					return
				}
				mu.Lock()
				for _, a := range assets {
					claimed[a.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, total)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "asset %s claimed more than once", id)
	}
}

func createTestAsset(t *testing.T, s Store, referenceID string) *schema.MintAsset {
	t.Helper()
	asset, err := s.CreateMintAsset(context.Background(), CreateMintAssetInput{
		ReferenceID:     referenceID,
		ContractAddress: testContract,
		OwnerAddress:    "0x000000000000000000000000000000000000dEaD",
		Metadata:        datatypes.JSON(`{"name":"token"}`),
	})
	require.NoError(t, err)
	require.NotNil(t, asset)
	return asset
}

func claimedIDs(assets []schema.MintAsset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids
}

func testCreateMintAsset(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	tokenID := "42"
	asset, err := s.CreateMintAsset(ctx, CreateMintAssetInput{
		ReferenceID:     "ref-1",
		ContractAddress: testContract,
		OwnerAddress:    "0x000000000000000000000000000000000000dEaD",
		Metadata:        datatypes.JSON(`{"name":"token"}`),
		TokenID:         &tokenID,
	})
	require.NoError(t, err)
	assert.Len(t, asset.ID, 26)
	assert.Equal(t, domain.MintingStatusUnset, asset.MintingStatus)
	assert.Equal(t, 0, asset.TriedCount)

	got, err := s.GetMintAsset(ctx, testContract, "ref-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, asset.ID, got.ID)
	assert.Equal(t, domain.MintingStatusUnset, got.MintingStatus)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, "42", *got.TokenID)
	assert.Nil(t, got.Amount)
	assert.JSONEq(t, `{"name":"token"}`, string(got.Metadata))
	assert.Nil(t, got.LastEventKey)
}

func testCreateMintAssetDuplicate(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	first := createTestAsset(t, s, "ref-dup")

	_, err := s.CreateMintAsset(ctx, CreateMintAssetInput{
		ReferenceID:     "ref-dup",
		ContractAddress: testContract,
		OwnerAddress:    "0x0000000000000000000000000000000000000001",
		Metadata:        datatypes.JSON(`{"name":"other"}`),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateMintRequest)

	got, err := s.GetMintAsset(ctx, testContract, "ref-dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.OwnerAddress, got.OwnerAddress)
	assert.JSONEq(t, `{"name":"token"}`, string(got.Metadata))
}

func testGetMintAssetNotFound(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)

	got, err := s.GetMintAsset(context.Background(), testContract, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func testClaimPendingMintAssets(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createTestAsset(t, s, fmt.Sprintf("ref-%d", i))
	}

	assets, err := s.ClaimPendingMintAssets(ctx, 3)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	for _, a := range assets {
		assert.Equal(t, domain.MintingStatusSubmitting, a.MintingStatus)
	}

	rest, err := s.ClaimPendingMintAssets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)

	none, err := s.ClaimPendingMintAssets(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	seen := make(map[string]bool)
	for _, id := range append(claimedIDs(assets), claimedIDs(rest)...) {
		assert.False(t, seen[id])
		seen[id] = true
	}

	zero, err := s.ClaimPendingMintAssets(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, zero)
}

func testUpdateClaimedMintAssets(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	createTestAsset(t, s, "ref-a")
	createTestAsset(t, s, "ref-b")

	assets, err := s.ClaimPendingMintAssets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	n, err := s.UpdateClaimedMintAssets(ctx, claimedIDs(assets), ClaimedMintAssetUpdate{
		Status:              domain.MintingStatusUnset,
		IncrementTriedCount: true,
		Error:               datatypes.JSON(`{"message":"boom"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.GetMintAsset(ctx, testContract, "ref-a")
	require.NoError(t, err)
	assert.Equal(t, domain.MintingStatusUnset, got.MintingStatus)
	assert.Equal(t, 1, got.TriedCount)
	assert.JSONEq(t, `{"message":"boom"}`, string(got.Error))

	// Rows are no longer submitting, a second write-back is a no-op
	n, err = s.UpdateClaimedMintAssets(ctx, claimedIDs(assets), ClaimedMintAssetUpdate{
		Status: domain.MintingStatusSubmitted,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// Success clears the error
	assets, err = s.ClaimPendingMintAssets(ctx, 10)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	n, err = s.UpdateClaimedMintAssets(ctx, claimedIDs(assets), ClaimedMintAssetUpdate{
		Status: domain.MintingStatusSubmitted,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err = s.GetMintAsset(ctx, testContract, "ref-a")
	require.NoError(t, err)
	assert.Equal(t, domain.MintingStatusSubmitted, got.MintingStatus)
	assert.Equal(t, 1, got.TriedCount)
	assert.Empty(t, got.Error)
}

func testUpdateClaimedMintAssetsSkipsReconciled(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	createTestAsset(t, s, "ref-race")
	assets, err := s.ClaimPendingMintAssets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	// The reconciler wins the race with the submission write-back
	applied, err := s.SyncMintingStatus(ctx, SyncMintingStatusInput{
		ReferenceID:     "ref-race",
		ContractAddress: testContract,
		OwnerAddress:    assets[0].OwnerAddress,
		Status:          domain.MintingStatusSucceeded,
		EventID:         "evt-1",
		EventKey:        "evt-1",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	n, err := s.UpdateClaimedMintAssets(ctx, claimedIDs(assets), ClaimedMintAssetUpdate{
		Status: domain.MintingStatusSubmitted,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	got, err := s.GetMintAsset(ctx, testContract, "ref-race")
	require.NoError(t, err)
	assert.Equal(t, domain.MintingStatusSucceeded, got.MintingStatus)
}

func testReleaseStaleClaims(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	createTestAsset(t, s, "ref-stale")
	assets, err := s.ClaimPendingMintAssets(ctx, 1)
	require.NoError(t, err)
	require.Len(t, assets, 1)

	n, err := s.ReleaseStaleClaims(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.ReleaseStaleClaims(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetMintAsset(ctx, testContract, "ref-stale")
	require.NoError(t, err)
	assert.Equal(t, domain.MintingStatusUnset, got.MintingStatus)
}

func testSyncMintingStatusInsert(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	tokenID := "7"
	applied, err := s.SyncMintingStatus(ctx, SyncMintingStatusInput{
		ReferenceID:     "ref-unknown",
		ContractAddress: testContract,
		OwnerAddress:    "0x000000000000000000000000000000000000dEaD",
		Status:          domain.MintingStatusPending,
		TokenID:         &tokenID,
		EventID:         "evt-1",
		EventKey:        "evt-1",
	})
	require.NoError(t, err)
	assert.True(t, applied)

	got, err := s.GetMintAsset(ctx, testContract, "ref-unknown")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.MintingStatusPending, got.MintingStatus)
	assert.Equal(t, 0, got.TriedCount)
	require.NotNil(t, got.LastEventID)
	assert.Equal(t, "evt-1", *got.LastEventID)
	assert.JSONEq(t, `{}`, string(got.Metadata))
}

func testSyncMintingStatusOrdering(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	createTestAsset(t, s, "ref-order")

	apply := func(status domain.MintingStatus, key string) bool {
		applied, err := s.SyncMintingStatus(ctx, SyncMintingStatusInput{
			ReferenceID:     "ref-order",
			ContractAddress: testContract,
			OwnerAddress:    "0x000000000000000000000000000000000000dEaD",
			Status:          status,
			EventID:         key,
			EventKey:        key,
		})
		require.NoError(t, err)
		return applied
	}

	assert.True(t, apply(domain.MintingStatusPending, "01B"))
	assert.True(t, apply(domain.MintingStatusSucceeded, "01D"))
	// Older event arriving late is ignored
	assert.False(t, apply(domain.MintingStatusPending, "01C"))
	// Replay of the applied event is ignored
	assert.False(t, apply(domain.MintingStatusSucceeded, "01D"))

	got, err := s.GetMintAsset(ctx, testContract, "ref-order")
	require.NoError(t, err)
	assert.Equal(t, domain.MintingStatusSucceeded, got.MintingStatus)
	require.NotNil(t, got.LastEventID)
	assert.Equal(t, "01D", *got.LastEventID)
}

func testSyncMintingStatusPreservesFields(t *testing.T, initDB func(*testing.T) Store, cleanupDB func(*testing.T)) {
	s := initDB(t)
	defer cleanupDB(t)
	ctx := context.Background()

	asset := createTestAsset(t, s, "ref-keep")

	tokenID := "99"
	applied, err := s.SyncMintingStatus(ctx, SyncMintingStatusInput{
		ReferenceID:     "ref-keep",
		ContractAddress: testContract,
		OwnerAddress:    asset.OwnerAddress,
		Status:          domain.MintingStatusPending,
		TokenID:         &tokenID,
		EventID:         "evt-1",
		EventKey:        "evt-1",
	})
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = s.SyncMintingStatus(ctx, SyncMintingStatusInput{
		ReferenceID:     "ref-keep",
		ContractAddress: testContract,
		OwnerAddress:    asset.OwnerAddress,
		Status:          domain.MintingStatusFailed,
		Error:           datatypes.JSON(`{"code":"REVERTED"}`),
		EventID:         "evt-2",
		EventKey:        "evt-2",
	})
	require.NoError(t, err)
	require.True(t, applied)

	got, err := s.GetMintAsset(ctx, testContract, "ref-keep")
	require.NoError(t, err)
	assert.Equal(t, asset.ID, got.ID)
	assert.Equal(t, domain.MintingStatusFailed, got.MintingStatus)
	require.NotNil(t, got.TokenID)
	assert.Equal(t, "99", *got.TokenID)
	assert.JSONEq(t, `{"name":"token"}`, string(got.Metadata))
	assert.JSONEq(t, `{"code":"REVERTED"}`, string(got.Error))
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	maxOpen, maxIdle, lifetime, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
	assert.Equal(t, 20, maxOpen)
	assert.Equal(t, 5, maxIdle)
	assert.Equal(t, 5*time.Minute, lifetime)
	assert.Equal(t, 10*time.Minute, idleTime)

	maxOpen, maxIdle, _, _ = NormalizeConnectionPoolSettings(4, 8, time.Minute, time.Minute)
	assert.Equal(t, 4, maxOpen)
	assert.Equal(t, 4, maxIdle)
}
