package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionSendMessage = "send_message"
	ActionCreateChat  = "create_chat"
	ActionHTTP        = "http"
)

// Limit is a token bucket refilled PerMinute times a minute holding at most
// Burst tokens.
type Limit struct {
	PerMinute int
	Burst     int
}

func (l Limit) every() rate.Limit {
	if l.PerMinute <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(l.PerMinute))
}

// DefaultLimits returns the per-action limits used by the service. Message
// sends are configurable, the rest are fixed.
func DefaultLimits(messagesPerMinute, messageBurst int) map[string]Limit {
	return map[string]Limit{
		ActionSendMessage: {PerMinute: messagesPerMinute, Burst: messageBurst},
		ActionCreateChat:  {PerMinute: 10, Burst: 5},
		ActionHTTP:        {PerMinute: 300, Burst: 60},
	}
}

var defaultLimit = Limit{PerMinute: 20, Burst: 20}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per (key, action) pair. Keys are user
// ids, or client IPs for the HTTP middleware.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimiter(limits map[string]Limit) *RateLimiter {
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) limitFor(action string) Limit {
	if l, ok := rl.limits[action]; ok {
		return l
	}
	return defaultLimit
}

// Allow consumes a token for key+action. When the bucket is empty it reports
// how long the caller has to wait for the next token.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	id := key + ":" + action
	b, ok := rl.buckets[id]
	if !ok {
		l := rl.limitFor(action)
		b = &bucket{limiter: rate.NewLimiter(l.every(), l.Burst)}
		rl.buckets[id] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup drops buckets idle for longer than maxIdle and returns how many
// were removed.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := rl.now().Add(-maxIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for id, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(maxIdle)
		case <-ctx.Done():
			return
		}
	}
}
