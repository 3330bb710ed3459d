package webhook

import (
	"math/rand/v2"
	"time"
)

// Backoff doubles the delay per attempt from Initial up to Max. Jitter in
// [0,1) spreads each delay by up to that fraction in either direction.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// Delay returns the wait before retry number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	initial, maxDelay := b.Initial, b.Max
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	d := initial
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	if b.Jitter > 0 {
		d = time.Duration(float64(d) * (1 + (rand.Float64()*2-1)*b.Jitter))
	}
	return min(d, maxDelay)
}
