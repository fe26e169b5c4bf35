package ratelimit

import (
	"math/rand/v2"
	"time"
)

// Jitter pads the base inter-track delay with up to a second of randomness
// so consecutive transfers don't hit the upstream services on an exact beat.
func Jitter(base time.Duration) time.Duration {
	return base + time.Duration(rand.N(1000))*time.Millisecond //nolint:gosec
}
