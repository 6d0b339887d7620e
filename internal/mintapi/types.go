package mintapi

import (
	"encoding/json"
	"time"
)

// MintAsset is one entry of a mint request
type MintAsset struct {
	ReferenceID  string          `json:"reference_id"`
	OwnerAddress string          `json:"owner_address"`
	TokenID      *string         `json:"token_id,omitempty"`
	Amount       *string         `json:"amount,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
}

// createMintRequestBody is the request body of the mint-requests endpoint
type createMintRequestBody struct {
	Assets []MintAsset `json:"assets"`
}

// createMintRequestResponse is the success body of the mint-requests endpoint.
// The quota fields are sent as strings by some API versions, json.Number accepts both.
type createMintRequestResponse struct {
	RemainingMintRequests  json.Number `json:"imx_remaining_mint_requests"`
	MintRequestsLimit      json.Number `json:"imx_mint_requests_limit"`
	MintRequestsLimitReset string      `json:"imx_mint_requests_limit_reset"`
}

// errorResponse is the error body returned by the minting API
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details *struct {
		Values []string `json:"values"`
	} `json:"details"`
}

// Quota is the rate limit state reported by a successful call
type Quota struct {
	// Remaining is the number of mint requests left in the current window
	Remaining int
	// Limit is the size of the window
	Limit int
	// ResetAt is when the window resets
	ResetAt time.Time
}

// CreateMintRequestResult is the outcome of a successful call
type CreateMintRequestResult struct {
	// Quota is nil when the response did not report one
	Quota *Quota
}
