package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}

// FixedWindowRateLimiter counts requests per key and forgets every key at
// the end of each window.
type FixedWindowRateLimiter struct {
	mu          sync.Mutex
	clients     map[string]int
	windowStart time.Time
	limit       int
	window      time.Duration
	now         func() time.Time
}

func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowRateLimiter {
	return &FixedWindowRateLimiter{
		clients:     make(map[string]int),
		windowStart: time.Now(),
		limit:       limit,
		window:      window,
		now:         time.Now,
	}
}

// Allow reports whether key may make another request, and if not, how long
// until the window resets.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.windowStart); elapsed >= rl.window {
		rl.clients = make(map[string]int)
		rl.windowStart = now
	}

	if rl.clients[key] >= rl.limit {
		return false, rl.window - now.Sub(rl.windowStart)
	}
	rl.clients[key]++
	return true, 0
}

// Run drops stale counters once per window so idle keys do not pile up.
func (rl *FixedWindowRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			if rl.now().Sub(rl.windowStart) >= rl.window {
				rl.clients = make(map[string]int)
				rl.windowStart = rl.now()
			}
			rl.mu.Unlock()
		}
	}
}
