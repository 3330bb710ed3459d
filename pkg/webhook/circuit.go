package webhook

import (
	"sync"
	"time"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// breaker opens after threshold consecutive failures and lets a single trial
// request through once recovery has elapsed.
type breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	now       func() time.Time

	state    circuitState
	failures int
	openedAt time.Time
	trial    bool
}

func newBreaker(threshold int, recovery time.Duration, now func() time.Time) *breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if recovery <= 0 {
		recovery = 30 * time.Second
	}
	return &breaker{threshold: threshold, recovery: recovery, now: now}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitOpen:
		if b.now().Sub(b.openedAt) < b.recovery {
			return false
		}
		b.state = circuitHalfOpen
		b.trial = true
		return true
	case circuitHalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	default:
		return true
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = circuitClosed
	b.failures = 0
	b.trial = false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == circuitHalfOpen || b.failures >= b.threshold {
		b.state = circuitOpen
		b.openedAt = b.now()
		b.trial = false
	}
}

func (b *breaker) current() circuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
