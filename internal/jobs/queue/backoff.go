package queue

import "time"

// Backoff maps a failure count to a retry delay. The last entry repeats for
// any further attempts.
type Backoff struct {
	Delays []time.Duration
}

// DefaultBackoff is the retry schedule for relationship computation jobs.
func DefaultBackoff() Backoff {
	return Backoff{Delays: []time.Duration{
		1 * time.Second,
		5 * time.Second,
		30 * time.Second,
	}}
}

// Delay returns the wait before retrying after the given 1-based failure
// count. Zero or negative counts map to the first delay.
func (b Backoff) Delay(failures int) time.Duration {
	if len(b.Delays) == 0 {
		return 0
	}
	idx := failures - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.Delays) {
		idx = len(b.Delays) - 1
	}
	return b.Delays[idx]
}
