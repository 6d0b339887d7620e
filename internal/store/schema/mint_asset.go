package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
)

// MintAsset represents the mint_assets table - one row per (reference id, contract) mint request
type MintAsset struct {
	// ID is an opaque internal identifier (ULID) assigned at creation
	ID string `gorm:"column:id;primaryKey;type:varchar(26)" json:"id"`
	// ReferenceID is the caller-supplied external identifier of the asset
	ReferenceID string `gorm:"column:reference_id;not null;type:text;uniqueIndex:idx_mint_assets_reference_contract,priority:1" json:"reference_id"`
	// ContractAddress is the destination contract of the mint, EIP-55 checksummed when hex
	ContractAddress string `gorm:"column:contract_address;not null;type:text;uniqueIndex:idx_mint_assets_reference_contract,priority:2" json:"contract_address"`
	// OwnerAddress is the best-known recipient address
	OwnerAddress string `gorm:"column:owner_address;not null;type:text" json:"owner_address"`
	// Metadata is the caller-defined payload stored as canonical JSON
	Metadata datatypes.JSON `gorm:"column:metadata;not null" json:"metadata"`
	// TokenID is the token id, populated by the caller or once minted
	TokenID *string `gorm:"column:token_id;type:text" json:"token_id,omitempty"`
	// Amount is the quantity for multi-token assets
	Amount *string `gorm:"column:amount;type:text" json:"amount,omitempty"`
	// MintingStatus is the current lifecycle status
	MintingStatus domain.MintingStatus `gorm:"column:minting_status;not null;type:text" json:"minting_status"`
	// TriedCount is the number of failed submission attempts so far
	TriedCount int `gorm:"column:tried_count;not null" json:"tried_count"`
	// MetadataID is the identifier assigned by the minting service once minted
	MetadataID *string `gorm:"column:metadata_id;type:text" json:"metadata_id,omitempty"`
	// LastEventID is the id of the most recently applied reconciliation event
	LastEventID *string `gorm:"column:last_event_id;type:text" json:"last_event_id,omitempty"`
	// LastEventKey is the ordering key of the most recently applied reconciliation event
	LastEventKey *string `gorm:"column:last_event_key;type:text" json:"-"`
	// Error is the last recorded error payload
	Error datatypes.JSON `gorm:"column:error" json:"error,omitempty"`
	// CreatedAt is the timestamp when the record was created
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	// UpdatedAt is the timestamp when the record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for the MintAsset model
func (MintAsset) TableName() string {
	return "mint_assets"
}
