package webhook

import (
	"encoding/json"
	"time"
)

// Header names of a signed delivery
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
)

// Event is the envelope of a webhook delivery from the minting service
type Event struct {
	// EventName is the type of event (e.g., "imtbl_zkevm_mint_request_updated")
	EventName string `json:"event_name"`
	// EventID is the unique identifier of the event
	EventID string `json:"event_id"`
	// Chain is the chain the event originates from
	Chain *Chain `json:"chain,omitempty"`
	// Data is the event payload
	Data EventData `json:"data"`
}

// Chain identifies the chain of an event
type Chain struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventData is the payload of a mint status update
type EventData struct {
	ContractAddress string          `json:"contract_address"`
	OwnerAddress    string          `json:"owner_address"`
	ReferenceID     string          `json:"reference_id"`
	MetadataID      *string         `json:"metadata_id,omitempty"`
	TokenID         *string         `json:"token_id,omitempty"`
	Status          string          `json:"status"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	ActivityID      *string         `json:"activity_id,omitempty"`
	Error           json.RawMessage `json:"error,omitempty"`
	CreatedAt       *time.Time      `json:"created_at,omitempty"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
	Amount          *string         `json:"amount,omitempty"`
}

// HasError reports whether the event carries a non-null error payload
func (d EventData) HasError() bool {
	return len(d.Error) > 0 && string(d.Error) != "null"
}
