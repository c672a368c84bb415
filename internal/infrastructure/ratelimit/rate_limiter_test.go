package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limits map[string]Limit) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limits)
	rl.now = clock.now
	return rl, clock
}

func TestAllowConsumesBurstThenWaits(t *testing.T) {
	rl, clock := newTestLimiter(map[string]Limit{
		ActionSendMessage: {PerMinute: 60, Burst: 2},
	})

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	ok, wait := rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(10*time.Millisecond))

	clock.advance(time.Second)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
}

func TestAllowIsPerKeyAndAction(t *testing.T) {
	rl, _ := newTestLimiter(map[string]Limit{
		ActionSendMessage: {PerMinute: 1, Burst: 1},
	})

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)

	ok, _ = rl.Allow("u2", ActionSendMessage)
	assert.True(t, ok, "other users have their own bucket")
	ok, _ = rl.Allow("u1", "typing")
	assert.True(t, ok, "unknown actions fall back to the default limit")
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	rl, clock := newTestLimiter(DefaultLimits(30, 10))

	rl.Allow("idle", ActionSendMessage)
	clock.advance(20 * time.Minute)
	rl.Allow("active", ActionSendMessage)

	assert.Equal(t, 1, rl.Cleanup(10*time.Minute))
	assert.Len(t, rl.buckets, 1)
}

func TestRunStopsWithContext(t *testing.T) {
	rl := NewRateLimiter(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rl.Run(ctx, time.Millisecond, time.Minute)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
