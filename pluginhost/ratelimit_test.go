package pluginhost

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestRateLimiterWithinLimit(t *testing.T) {
	l := NewPluginNavRateLimiter(5)
	for i := 0; i < 5; i++ {
		assert.NilError(t, l.CheckAction())
	}
	assert.Equal(t, l.CurrentCount(), uint32(5))
}

func TestRateLimiterExceedsLimit(t *testing.T) {
	l := NewPluginNavRateLimiter(3)
	for i := 0; i < 3; i++ {
		assert.NilError(t, l.CheckAction())
	}
	err := l.CheckAction()
	assert.ErrorContains(t, err, "rate limit exceeded")
}

func TestRateLimiterWindowResets(t *testing.T) {
	l := NewPluginNavRateLimiter(2)
	assert.NilError(t, l.CheckAction())
	assert.NilError(t, l.CheckAction())
	assert.ErrorContains(t, l.CheckAction(), "rate limit exceeded")

	time.Sleep(1100 * time.Millisecond)

	assert.NilError(t, l.CheckAction())
	assert.Equal(t, l.CurrentCount(), uint32(1))
}

func TestRateLimiterManualReset(t *testing.T) {
	l := NewPluginNavRateLimiter(1)
	assert.NilError(t, l.CheckAction())
	assert.ErrorContains(t, l.CheckAction(), "rate limit exceeded")

	l.Reset()
	assert.NilError(t, l.CheckAction())
}
