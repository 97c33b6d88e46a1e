package session

import (
	"time"

	"github.com/dkeye/Glimpse/internal/domain"
)

const (
	DefaultRequestLimit    = 5
	DefaultRequestInterval = time.Minute
)

// requestLimiter caps how many join requests one user may attach to the host
// within a sliding window. Loop-owned, no locking.
type requestLimiter struct {
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func newRequestLimiter(limit int, interval time.Duration) *requestLimiter {
	return &requestLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *requestLimiter) allow(uid domain.UserID) bool {
	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}
	rl.history[uid] = append(fresh, now)
	return true
}
