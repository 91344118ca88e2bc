package classroom

import (
	"sync"
	"time"
)

// rateLimiter applies a per-username sliding window to chat messages.
// The window resets wholesale once its duration elapses, which keeps the
// bookkeeping to one counter per user.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	users  map[string]*userWindow
}

type userWindow struct {
	count       int
	windowStart time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		window: window,
		users:  make(map[string]*userWindow),
	}
}

// allow reports whether username may send another chat message.
func (rl *rateLimiter) allow(username string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, ok := rl.users[username]
	if !ok {
		rl.users[username] = &userWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(w.windowStart) >= rl.window {
		w.count = 1
		w.windowStart = now
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// cleanup drops stale user entries. Called opportunistically; entries
// older than five windows no longer affect any admission decision.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for username, w := range rl.users {
		if now.Sub(w.windowStart) > 5*rl.window {
			delete(rl.users, username)
		}
	}
}
