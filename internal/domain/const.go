package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// MAX_MINT_CHUNK_SIZE is the hard per-call asset limit of the minting API
	MAX_MINT_CHUNK_SIZE = 100

	// EVENT_NAME_MINT_REQUEST_UPDATED is the webhook event name carrying mint status updates
	EVENT_NAME_MINT_REQUEST_UPDATED = "imtbl_zkevm_mint_request_updated"

	// EVENT_ORDERING_TIME_LAYOUT is a fixed-width UTC layout so that formatted timestamps sort lexicographically
	EVENT_ORDERING_TIME_LAYOUT = "2006-01-02T15:04:05.000000000Z"
)
