package server

import (
	"sync"
	"time"
)

// rateLimiter is a token bucket throttling inbound frames of one connection.
// A nil *rateLimiter allows everything.
type rateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	perSec   float64
	last     time.Time
	now      func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.Burst <= 0 {
		return nil
	}
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}

	rl := &rateLimiter{
		tokens:   float64(cfg.Burst),
		capacity: float64(cfg.Burst),
		perSec:   float64(cfg.Burst) / interval.Seconds(),
		now:      time.Now,
	}
	rl.last = rl.now()
	return rl
}

func (rl *rateLimiter) allow() bool {
	if rl == nil {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.perSec
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
