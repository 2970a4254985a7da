package pluginhost

import (
	"fmt"
	"time"
)

// DefaultNavActionsPerSecond is the cap applied when a plugin doesn't
// configure its own rate, per spec.md §4.8.
const DefaultNavActionsPerSecond = 10

// RateLimitError reports a plugin exceeding its navigation action
// budget for the current one-second window.
type RateLimitError struct {
	Current, Limit uint32
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %d actions in last second (max: %d)", e.Current, e.Limit)
}

// PluginNavRateLimiter enforces a sliding one-second window of
// permitted navigation actions per plugin. Grounded near-verbatim (in
// semantics, not syntax) on
// _examples/original_source/crates/scarab-client/src/plugin_host/rate_limiter.rs:
// a plain window-reset counter, not golang.org/x/time/rate's
// token-bucket refill, since a token bucket would let actions trickle
// back in mid-window rather than reject-then-resume at the window
// boundary the original implements and spec.md §4.8 describes.
type PluginNavRateLimiter struct {
	actionsPerSecond uint32
	windowStart      time.Time
	actionCount      uint32
}

// NewPluginNavRateLimiter creates a limiter capped at actionsPerSecond.
func NewPluginNavRateLimiter(actionsPerSecond uint32) *PluginNavRateLimiter {
	return &PluginNavRateLimiter{actionsPerSecond: actionsPerSecond, windowStart: time.Now()}
}

// DefaultPluginNavRateLimiter creates a limiter at DefaultNavActionsPerSecond.
func DefaultPluginNavRateLimiter() *PluginNavRateLimiter {
	return NewPluginNavRateLimiter(DefaultNavActionsPerSecond)
}

// CheckAction reports whether another action is permitted in the
// current window, incrementing the counter on success.
func (l *PluginNavRateLimiter) CheckAction() error {
	now := time.Now()
	if now.Sub(l.windowStart) >= time.Second {
		l.windowStart = now
		l.actionCount = 0
	}
	if l.actionCount >= l.actionsPerSecond {
		return &RateLimitError{Current: l.actionCount, Limit: l.actionsPerSecond}
	}
	l.actionCount++
	return nil
}

// CurrentCount returns the action count in the current window.
func (l *PluginNavRateLimiter) CurrentCount() uint32 { return l.actionCount }

// Limit returns the configured actions-per-second cap.
func (l *PluginNavRateLimiter) Limit() uint32 { return l.actionsPerSecond }

// Reset clears the counter and starts a new window.
func (l *PluginNavRateLimiter) Reset() {
	l.windowStart = time.Now()
	l.actionCount = 0
}
