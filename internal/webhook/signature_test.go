package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
)

func TestSign(t *testing.T) {
	body := []byte(`{"event_id":"evt-1"}`)
	signature := Sign("secret", 1700000000, "evt-1", body)

	h := hmac.New(sha256.New, []byte("secret"))
	h.Write([]byte(fmt.Sprintf("%d.%s.%s", 1700000000, "evt-1", body)))
	assert.Equal(t, "sha256="+hex.EncodeToString(h.Sum(nil)), signature)
}

func TestVerify(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"event_id":"evt-1"}`)
	valid := Sign("secret", now.Unix(), "evt-1", body)

	tests := []struct {
		name      string
		secret    string
		signature string
		timestamp string
		eventID   string
		body      []byte
		now       time.Time
		wantErr   bool
	}{
		{"valid", "secret", valid, "1700000000", "evt-1", body, now, false},
		{"within tolerance", "secret", valid, "1700000000", "evt-1", body, now.Add(4 * time.Minute), false},
		{"too old", "secret", valid, "1700000000", "evt-1", body, now.Add(6 * time.Minute), true},
		{"from the future", "secret", valid, "1700000000", "evt-1", body, now.Add(-6 * time.Minute), true},
		{"wrong secret", "other", valid, "1700000000", "evt-1", body, now, true},
		{"tampered body", "secret", valid, "1700000000", "evt-1", []byte(`{"event_id":"evt-2"}`), now, true},
		{"swapped event id", "secret", valid, "1700000000", "evt-2", body, now, true},
		{"missing signature", "secret", "", "1700000000", "evt-1", body, now, true},
		{"missing timestamp", "secret", valid, "", "evt-1", body, now, true},
		{"invalid timestamp", "secret", valid, "yesterday", "evt-1", body, now, true},
		{"unsupported scheme", "secret", "sha1=abc", "1700000000", "evt-1", body, now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.secret, tt.signature, tt.timestamp, tt.eventID, tt.body, tt.now, 5*time.Minute)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidSignature)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEventUnmarshal(t *testing.T) {
	payload := `{
		"event_name": "imtbl_zkevm_mint_request_updated",
		"event_id": "01HF3ZP7Q9Y0K6Z2WJ8Y5V4X3A",
		"chain": {"id": "eip155:13473", "name": "imtbl-zkevm-testnet"},
		"data": {
			"contract_address": "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
			"owner_address": "0x000000000000000000000000000000000000dead",
			"reference_id": "item-1",
			"metadata_id": "4e28df8d-f65c-4c11-ba04-6a9dd47b179b",
			"token_id": "1",
			"status": "succeeded",
			"transaction_hash": "0xabc",
			"activity_id": "act-1",
			"error": null,
			"created_at": "2026-10-18T10:00:00.123Z",
			"updated_at": "2026-10-18T10:00:05.456Z",
			"amount": null
		}
	}`

	var event Event
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, domain.EVENT_NAME_MINT_REQUEST_UPDATED, event.EventName)
	assert.Equal(t, "imtbl-zkevm-testnet", event.Chain.Name)
	assert.Equal(t, "item-1", event.Data.ReferenceID)
	require.NotNil(t, event.Data.TokenID)
	assert.Equal(t, "1", *event.Data.TokenID)
	assert.Nil(t, event.Data.Amount)
	assert.False(t, event.Data.HasError())
	require.NotNil(t, event.Data.UpdatedAt)
	assert.Equal(t, 456*time.Millisecond, time.Duration(event.Data.UpdatedAt.Nanosecond()))
}
