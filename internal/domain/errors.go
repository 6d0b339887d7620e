package domain

import "errors"

var (
	// ErrDuplicateMintRequest is returned when a mint request is recorded twice for the same reference id and contract
	ErrDuplicateMintRequest = errors.New("duplicate mint request")

	// ErrInvalidMintRequest is returned when a mint request fails validation
	ErrInvalidMintRequest = errors.New("invalid mint request")

	// ErrMalformedWebhookEvent is returned when a webhook event lacks required fields
	ErrMalformedWebhookEvent = errors.New("malformed webhook event")

	// ErrExhaustedRetries is recorded on rows that failed submission too many times
	ErrExhaustedRetries = errors.New("exhausted submission retries")

	// ErrInvalidSignature is returned when a webhook delivery signature does not verify
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
