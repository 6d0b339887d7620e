package rest

import (
	"encoding/json"
	"time"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

// CreateMintRequest is the body of POST /api/v1/mints
type CreateMintRequest struct {
	ReferenceID     string          `json:"reference_id" binding:"required"`
	ContractAddress string          `json:"contract_address" binding:"required"`
	OwnerAddress    string          `json:"owner_address" binding:"required"`
	Metadata        json.RawMessage `json:"metadata" binding:"required"`
	TokenID         *string         `json:"token_id,omitempty"`
	Amount          *string         `json:"amount,omitempty"`
}

// ToDomain converts the request body to a domain mint request
func (r CreateMintRequest) ToDomain() domain.MintRequest {
	return domain.MintRequest{
		ReferenceID:     r.ReferenceID,
		ContractAddress: r.ContractAddress,
		OwnerAddress:    r.OwnerAddress,
		Metadata:        []byte(r.Metadata),
		TokenID:         r.TokenID,
		Amount:          r.Amount,
	}
}

// MintAssetResponse is the API representation of a mint asset record
type MintAssetResponse struct {
	ID              string               `json:"id"`
	ReferenceID     string               `json:"reference_id"`
	ContractAddress string               `json:"contract_address"`
	OwnerAddress    string               `json:"owner_address"`
	Metadata        json.RawMessage      `json:"metadata"`
	TokenID         *string              `json:"token_id,omitempty"`
	Amount          *string              `json:"amount,omitempty"`
	MintingStatus   domain.MintingStatus `json:"minting_status"`
	TriedCount      int                  `json:"tried_count"`
	MetadataID      *string              `json:"metadata_id,omitempty"`
	LastEventID     *string              `json:"last_event_id,omitempty"`
	Error           json.RawMessage      `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// MapMintAssetToResponse maps a stored record to its API representation
func MapMintAssetToResponse(a *schema.MintAsset) MintAssetResponse {
	resp := MintAssetResponse{
		ID:              a.ID,
		ReferenceID:     a.ReferenceID,
		ContractAddress: a.ContractAddress,
		OwnerAddress:    a.OwnerAddress,
		Metadata:        json.RawMessage(a.Metadata),
		TokenID:         a.TokenID,
		Amount:          a.Amount,
		MintingStatus:   a.MintingStatus,
		TriedCount:      a.TriedCount,
		MetadataID:      a.MetadataID,
		LastEventID:     a.LastEventID,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if len(a.Error) > 0 {
		resp.Error = json.RawMessage(a.Error)
	}
	return resp
}

// WebhookResponse is returned to the webhook sender
type WebhookResponse struct {
	// Result is applied, stale or ignored when processed inline, queued when published
	Result string `json:"result"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status string `json:"status"`
}
