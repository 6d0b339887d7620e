package minting

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

const (
	contractA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	contractB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	ownerA    = "0x000000000000000000000000000000000000dEaD"
	ownerB    = "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "mint.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewPGStore(db)
}

func recordTestMint(t *testing.T, st store.Store, referenceID, contract string) *schema.MintAsset {
	t.Helper()
	asset, err := RecordMint(context.Background(), st, adapter.NewCanonicalizer(), domain.MintRequest{
		ReferenceID:     referenceID,
		ContractAddress: contract,
		OwnerAddress:    ownerA,
		Metadata:        []byte(`{"name":"Sword"}`),
	})
	require.NoError(t, err)
	return asset
}

func getTestMint(t *testing.T, st store.Store, referenceID, contract string) *schema.MintAsset {
	t.Helper()
	asset, err := st.GetMintAsset(context.Background(), contract, referenceID)
	require.NoError(t, err)
	require.NotNil(t, asset, "mint asset %s not found", referenceID)
	return asset
}
