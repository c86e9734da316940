package provider

import (
	"sync"
	"time"
)

// BreakerState represents the state of a provider breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // healthy, calls flow
	BreakerOpen                         // failing, calls short-circuit
	BreakerHalfOpen                     // probing, one call allowed
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// breaker trips after consecutive failures and lets one probe call through
// once the recovery interval has elapsed. It never retries anything itself;
// an open breaker just fails the call fast.
type breaker struct {
	mu sync.Mutex

	state    BreakerState
	failures int
	openedAt time.Time

	failureThreshold int
	recoveryInterval time.Duration
}

func (b *breaker) currentState() BreakerState {
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.recoveryInterval {
		b.state = BreakerHalfOpen
	}
	return b.state
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState() != BreakerOpen
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.failureThreshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

// HealthTracker keeps one breaker per provider.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[string]*breaker

	failureThreshold int
	recoveryInterval time.Duration
}

func NewHealthTracker(failureThreshold int, recoveryInterval time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:         make(map[string]*breaker),
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
	}
}

func (ht *HealthTracker) get(provider string) *breaker {
	ht.mu.RLock()
	b, ok := ht.breakers[provider]
	ht.mu.RUnlock()
	if ok {
		return b
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	if b, ok := ht.breakers[provider]; ok {
		return b
	}
	b = &breaker{
		state:            BreakerClosed,
		failureThreshold: ht.failureThreshold,
		recoveryInterval: ht.recoveryInterval,
	}
	ht.breakers[provider] = b
	return b
}

// Available reports whether the provider's breaker allows a call.
func (ht *HealthTracker) Available(provider string) bool {
	return ht.get(provider).allow()
}

// State returns the provider's breaker state.
func (ht *HealthTracker) State(provider string) BreakerState {
	b := ht.get(provider)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// RecordSuccess records a successful provider call.
func (ht *HealthTracker) RecordSuccess(provider string) {
	ht.get(provider).recordSuccess()
}

// RecordFailure records a failed provider call.
func (ht *HealthTracker) RecordFailure(provider string) {
	ht.get(provider).recordFailure()
}
