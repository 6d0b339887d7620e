package store

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

// CreateMintAssetInput represents the input for recording a new mint request
type CreateMintAssetInput struct {
	ReferenceID     string
	ContractAddress string
	OwnerAddress    string
	Metadata        datatypes.JSON
	TokenID         *string
	Amount          *string
}

// ClaimedMintAssetUpdate describes the transition applied to claimed rows once their chunk resolves
type ClaimedMintAssetUpdate struct {
	// Status is the status the rows move to
	Status domain.MintingStatus
	// IncrementTriedCount increments tried_count by one
	IncrementTriedCount bool
	// Error is recorded on the rows; nil clears the column
	Error datatypes.JSON
}

// SyncMintingStatusInput represents a reconciliation event merged into a record
type SyncMintingStatusInput struct {
	ReferenceID     string
	ContractAddress string
	OwnerAddress    string
	Status          domain.MintingStatus
	TokenID         *string
	Amount          *string
	MetadataID      *string
	Error           datatypes.JSON
	EventID         string
	// EventKey is the ordering key of the event, see domain.EventOrderingKey
	EventKey string
}

// Store defines the interface for mint asset persistence
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// CreateMintAsset inserts a new record in the unset status.
	// Returns domain.ErrDuplicateMintRequest if the (reference id, contract) pair already exists.
	CreateMintAsset(ctx context.Context, input CreateMintAssetInput) (*schema.MintAsset, error)

	// GetMintAsset retrieves a record by its natural key, nil if absent
	GetMintAsset(ctx context.Context, contractAddress, referenceID string) (*schema.MintAsset, error)

	// GetMintAssetsByIDs retrieves records by their internal ids
	GetMintAssetsByIDs(ctx context.Context, ids []string) ([]schema.MintAsset, error)

	// ClaimPendingMintAssets atomically moves up to limit unset rows to submitting and returns them.
	// Rows claimed by a concurrent caller are never returned twice.
	ClaimPendingMintAssets(ctx context.Context, limit int) ([]schema.MintAsset, error)

	// UpdateClaimedMintAssets transitions rows that are still submitting and returns the number of rows changed
	UpdateClaimedMintAssets(ctx context.Context, ids []string, update ClaimedMintAssetUpdate) (int64, error)

	// ReleaseStaleClaims moves rows stuck in submitting since before the given time back to unset
	ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error)

	// SyncMintingStatus upserts a record from a reconciliation event.
	// An existing record is only updated when its last event key is null or older than the input's.
	// Returns true if the event was applied.
	SyncMintingStatus(ctx context.Context, input SyncMintingStatusInput) (bool, error)
}
