package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MintingStatus is the lifecycle status of a mint asset record
type MintingStatus string

const (
	// MintingStatusUnset marks a record as eligible for claiming
	MintingStatusUnset MintingStatus = "unset"
	// MintingStatusSubmitting marks a record claimed by a submission loop
	MintingStatusSubmitting MintingStatus = "submitting"
	// MintingStatusSubmitted marks a record accepted by the minting API
	MintingStatusSubmitted MintingStatus = "submitted"
	// MintingStatusConflicting marks a record whose reference id was already used for the contract
	MintingStatusConflicting MintingStatus = "conflicting"
	// MintingStatusSubmissionFailed marks a record that exhausted its submission attempts
	MintingStatusSubmissionFailed MintingStatus = "submission_failed"

	// Statuses reported by the minting service through webhook events
	MintingStatusPending   MintingStatus = "pending"
	MintingStatusSucceeded MintingStatus = "succeeded"
	MintingStatusFailed    MintingStatus = "failed"
)

// Claimable reports whether a record in this status may be claimed by the submission loop
func (s MintingStatus) Claimable() bool {
	return s == MintingStatusUnset
}

// Terminal reports whether the submission loop will never touch a record in this status again
func (s MintingStatus) Terminal() bool {
	switch s {
	case MintingStatusUnset, MintingStatusSubmitting:
		return false
	default:
		return true
	}
}

// IsHexAddress checks whether an address is a 0x-prefixed 20-byte EVM hex address
func IsHexAddress(address string) bool {
	return strings.HasPrefix(address, "0x") && common.IsHexAddress(address)
}

// NormalizeAddress trims an address and converts EVM hex addresses to their EIP-55
// checksum form. Other values are opaque and returned trimmed.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if IsHexAddress(address) {
		return common.HexToAddress(address).Hex()
	}
	return address
}

// ValidUint256String checks whether s is a base-10 unsigned integer that fits in 256 bits
func ValidUint256String(s string) bool {
	if s == "" {
		return false
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return false
	}
	return n.BitLen() <= 256
}

// MintRequest is a caller's intent to mint one asset to one owner on one contract
type MintRequest struct {
	ReferenceID     string  `json:"reference_id"`
	ContractAddress string  `json:"contract_address"`
	OwnerAddress    string  `json:"owner_address"`
	Metadata        []byte  `json:"metadata"`
	TokenID         *string `json:"token_id,omitempty"`
	Amount          *string `json:"amount,omitempty"`
}

// Validate checks the request fields
func (r *MintRequest) Validate() error {
	if strings.TrimSpace(r.ReferenceID) == "" {
		return fmt.Errorf("%w: reference_id is required", ErrInvalidMintRequest)
	}
	if strings.TrimSpace(r.ContractAddress) == "" {
		return fmt.Errorf("%w: contract_address is required", ErrInvalidMintRequest)
	}
	if strings.TrimSpace(r.OwnerAddress) == "" {
		return fmt.Errorf("%w: owner_address is required", ErrInvalidMintRequest)
	}
	if NormalizeAddress(r.OwnerAddress) == ETHEREUM_ZERO_ADDRESS {
		return fmt.Errorf("%w: owner_address must not be the zero address", ErrInvalidMintRequest)
	}
	if len(r.Metadata) == 0 {
		return fmt.Errorf("%w: metadata is required", ErrInvalidMintRequest)
	}
	if r.TokenID != nil && !ValidUint256String(*r.TokenID) {
		return fmt.Errorf("%w: invalid token_id %q", ErrInvalidMintRequest, *r.TokenID)
	}
	if r.Amount != nil && (!ValidUint256String(*r.Amount) || strings.Trim(*r.Amount, "0") == "") {
		return fmt.Errorf("%w: invalid amount %q", ErrInvalidMintRequest, *r.Amount)
	}
	return nil
}

// Normalize normalizes the addresses in place
func (r *MintRequest) Normalize() {
	r.ReferenceID = strings.TrimSpace(r.ReferenceID)
	r.ContractAddress = NormalizeAddress(r.ContractAddress)
	r.OwnerAddress = NormalizeAddress(r.OwnerAddress)
}

// EventOrderingKey builds the key used to decide whether a reconciliation event is newer
// than the one already applied to a record. Keys compare lexicographically.
//
// The key is the fixed-width UTC update timestamp of the event followed by the event id,
// so ordering does not depend on the id format. An event without a timestamp takes the
// zero time: it sorts before every timestamped event, and such events order among
// themselves by id, which the sender must keep monotonic (e.g. ULIDs).
func EventOrderingKey(eventID string, updatedAt *time.Time) string {
	ts := time.Time{}
	if updatedAt != nil && !updatedAt.IsZero() {
		ts = updatedAt.UTC()
	}
	return ts.Format(EVENT_ORDERING_TIME_LAYOUT) + "/" + eventID
}
