package minting

import (
	"sync"
	"time"

	"github.com/feral-file/ff-mint-reconciler/internal/mintapi"
)

// quotaTracker keeps the rate limit state of the most recently resolved successful call
type quotaTracker struct {
	mu    sync.Mutex
	quota *mintapi.Quota
}

func (q *quotaTracker) update(quota mintapi.Quota) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quota = &quota
}

// batchSize returns the number of rows to claim at now.
// ok is false when the quota is exhausted and its window has not reset yet.
func (q *quotaTracker) batchSize(now time.Time, defaultSize int) (size int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.quota == nil {
		return defaultSize, true
	}
	if !now.Before(q.quota.ResetAt) {
		// Window has reset
		q.quota = nil
		return defaultSize, true
	}
	if q.quota.Remaining <= 0 {
		return 0, false
	}
	return min(q.quota.Remaining, defaultSize), true
}
