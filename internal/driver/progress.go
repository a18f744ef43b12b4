package driver

import (
	"golang.org/x/time/rate"

	"github.com/roach88/sieve/internal/engine"
)

// throttle decides which progress emissions reach the consumer.
//
// Intermediate emissions pass at most hz times per second with a burst of
// one. Completion (fraction 1) always passes.
type throttle struct {
	limiter *rate.Limiter
}

// newThrottle creates a throttle. hz <= 0 disables throttling.
func newThrottle(hz float64) *throttle {
	limit := rate.Inf
	if hz > 0 {
		limit = rate.Limit(hz)
	}
	return &throttle{limiter: rate.NewLimiter(limit, 1)}
}

// allow reports whether p should be delivered now.
func (t *throttle) allow(p engine.Progress) bool {
	if p.Fraction >= 1 {
		return true
	}
	return t.limiter.Allow()
}
