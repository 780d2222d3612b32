package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJoinRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewJoinRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestJoinRateLimiterDisabled(t *testing.T) {
	var nilLimiter *JoinRateLimiter
	assert.True(t, nilLimiter.Allow("a"))

	rl := NewJoinRateLimiter(0, time.Minute)
	for range 10 {
		assert.True(t, rl.Allow("a"))
	}
}
