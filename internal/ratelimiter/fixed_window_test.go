package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }
	rl.windowStart = now

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.Allow("user:9")
	assert.True(t, ok, "keys are counted separately")

	now = now.Add(time.Minute)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok, "a new window resets the count")
}
