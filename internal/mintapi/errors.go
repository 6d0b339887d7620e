package mintapi

import (
	"fmt"
	"strings"
)

const errorCodeConflict = "CONFLICT_ERROR"

// ConflictError is returned when the minting API reports reference ids already used for the contract
type ConflictError struct {
	ReferenceIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reference ids already used: %s", strings.Join(e.ReferenceIDs, ", "))
}

// APIError is returned for every other non-2xx response
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("minting API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("minting API returned status %d: %s %s", e.StatusCode, e.Code, e.Message)
}
