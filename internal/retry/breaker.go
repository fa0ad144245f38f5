package retry

import (
	"context"
	"sync"
	"time"
)

// BreakerState is one of Closed, Open, or HalfOpen.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips to Open after a run of consecutive failures, and
// probes recovery via a limited number of HalfOpen trial calls before
// closing again.
type CircuitBreaker struct {
	mu sync.Mutex

	service string
	state   BreakerState

	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
	clock        func() time.Time

	consecutiveFail int
	halfOpenSuccess int
	openedAt        time.Time
}

// BreakerOption customises NewCircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerThreshold sets how many consecutive failures trip the breaker
// to Open. Default: 5.
func WithBreakerThreshold(n int) BreakerOption {
	return func(b *CircuitBreaker) { b.threshold = n }
}

// WithBreakerResetTimeout sets how long the breaker stays Open before
// allowing a HalfOpen trial. Default: 30s.
func WithBreakerResetTimeout(d time.Duration) BreakerOption {
	return func(b *CircuitBreaker) { b.resetTimeout = d }
}

// WithBreakerHalfOpenMax sets how many consecutive HalfOpen successes close
// the breaker. Default: 2.
func WithBreakerHalfOpenMax(n int) BreakerOption {
	return func(b *CircuitBreaker) { b.halfOpenMax = n }
}

// WithBreakerClock overrides the time source, for deterministic tests.
func WithBreakerClock(clock func() time.Time) BreakerOption {
	return func(b *CircuitBreaker) { b.clock = clock }
}

// NewCircuitBreaker returns a CircuitBreaker for service in the Closed state.
func NewCircuitBreaker(service string, opts ...BreakerOption) *CircuitBreaker {
	b := &CircuitBreaker{
		service:      service,
		state:        Closed,
		threshold:    5,
		resetTimeout: 30 * time.Second,
		halfOpenMax:  2,
		clock:        time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// State returns the breaker's current state, after checking for a due
// Open -> HalfOpen transition.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransition()
	return b.state
}

// Allow reports whether a call should proceed. It transitions Open ->
// HalfOpen when resetTimeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransition()
	return b.state != Open
}

// RecordSuccess reports a successful call, closing the breaker from
// HalfOpen once halfOpenMax consecutive successes accrue.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.halfOpenMax {
			b.state = Closed
			b.consecutiveFail = 0
			b.halfOpenSuccess = 0
		}
	case Closed:
		b.consecutiveFail = 0
	}
}

// RecordFailure reports a failed call, tripping the breaker to Open once
// threshold consecutive failures accrue, or immediately re-opening from
// HalfOpen.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.state = Open
		b.openedAt = b.clock()
		b.halfOpenSuccess = 0
	case Closed:
		b.consecutiveFail++
		if b.consecutiveFail >= b.threshold {
			b.state = Open
			b.openedAt = b.clock()
		}
	}
}

// Reset forces the breaker back to Closed, clearing all counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFail = 0
	b.halfOpenSuccess = 0
}

// maybeTransition moves Open -> HalfOpen once resetTimeout has elapsed.
// Caller must hold b.mu.
func (b *CircuitBreaker) maybeTransition() {
	if b.state == Open && b.clock().Sub(b.openedAt) >= b.resetTimeout {
		b.state = HalfOpen
		b.halfOpenSuccess = 0
	}
}

// WithCircuitBreaker rejects calls with *ErrCircuitOpen while cb is open,
// and records each call's outcome against cb otherwise.
func WithCircuitBreaker(cb *CircuitBreaker, service string) HandlerMiddleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if !cb.Allow() {
				return nil, &ErrCircuitOpen{Service: service}
			}
			out, err := next(ctx, payload)
			if err != nil {
				cb.RecordFailure()
				return nil, err
			}
			cb.RecordSuccess()
			return out, nil
		}
	}
}
