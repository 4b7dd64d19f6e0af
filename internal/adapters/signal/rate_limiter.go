package signal

import (
	"sync"
	"time"

	"github.com/maxklim/huddle/internal/domain"
)

// JoinRateLimiter caps join attempts per user over a sliding window.
type JoinRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
}

func NewJoinRateLimiter(limit int, interval time.Duration) *JoinRateLimiter {
	return &JoinRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *JoinRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.pruneLocked(now.Add(-rl.interval))

	attempts := rl.history[uid]
	if len(attempts) >= rl.limit {
		return false
	}
	rl.history[uid] = append(attempts, now)
	return true
}

// pruneLocked drops attempts that fell out of the window and forgets users
// with none left, so departed users do not pin map entries forever.
func (rl *JoinRateLimiter) pruneLocked(windowStart time.Time) {
	for uid, attempts := range rl.history {
		fresh := attempts[:0]
		for _, t := range attempts {
			if t.After(windowStart) {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) == 0 {
			delete(rl.history, uid)
			continue
		}
		rl.history[uid] = fresh
	}
}
