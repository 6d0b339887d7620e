package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
)

const signaturePrefix = "sha256="

// Sign computes the signature header value of a delivery.
// The signed payload is "{timestamp}.{event_id}.{body}" so that the timestamp and the
// event id cannot be swapped between deliveries.
func Sign(secret string, timestamp int64, eventID string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write([]byte(eventID))
	h.Write([]byte("."))
	h.Write(body)
	return signaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// Verify checks the signature and timestamp headers of a delivery.
// Deliveries whose timestamp is further than tolerance from now are rejected.
func Verify(secret, signature, timestamp, eventID string, body []byte, now time.Time, tolerance time.Duration) error {
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers", domain.ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid timestamp %q", domain.ErrInvalidSignature, timestamp)
	}

	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
		}
	}

	if !strings.HasPrefix(signature, signaturePrefix) {
		return fmt.Errorf("%w: unsupported signature scheme", domain.ErrInvalidSignature)
	}

	expected := Sign(secret, ts, eventID, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: signature mismatch", domain.ErrInvalidSignature)
	}

	return nil
}
