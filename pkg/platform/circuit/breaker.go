// Package circuit provides a consecutive-failure circuit breaker for calls to
// external dependencies.
//
// A Breaker starts closed. After FailureThreshold consecutive failures it opens and
// Allow rejects every call until the cooldown has elapsed. The first Allow after the
// cooldown resets the breaker to closed with a zero failure count, so calls flow again
// and the breaker only reopens after another FailureThreshold consecutive failures.
// Any success resets the failure count.
package circuit

import (
	"sync"
	"time"
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = time.Minute
)

// State is the externally visible breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// StateChange reports a transition caused by a recorded outcome.
type StateChange struct {
	Opened bool
	Closed bool
}

// snapshot is the breaker's mutable state as a value. Transitions return a new
// snapshot so every rule lives in one place and is testable without a clock.
type snapshot struct {
	failures int
	open     bool
	openedAt time.Time
}

func (s snapshot) recordFailure(threshold int, now time.Time) (snapshot, StateChange) {
	s.failures++
	if s.open || s.failures < threshold {
		return s, StateChange{}
	}
	s.open = true
	s.openedAt = now
	return s, StateChange{Opened: true}
}

func (s snapshot) recordSuccess() (snapshot, StateChange) {
	change := StateChange{Closed: s.open}
	return snapshot{}, change
}

// expire closes an open snapshot whose cooldown has elapsed.
func (s snapshot) expire(cooldown time.Duration, now time.Time) (snapshot, StateChange) {
	if !s.open || now.Before(s.openedAt.Add(cooldown)) {
		return s, StateChange{}
	}
	return snapshot{}, StateChange{Closed: true}
}

func (s snapshot) retryAt(cooldown time.Duration) time.Time {
	if !s.open {
		return time.Time{}
	}
	return s.openedAt.Add(cooldown)
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	onChange  func(name string, to State)
	state     snapshot
}

type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithOnStateChange registers a callback invoked after every open/close transition.
// It runs outside the breaker lock.
func WithOnStateChange(fn func(name string, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: DefaultFailureThreshold,
		cooldown:  DefaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. When it may not, retryAt is the end of
// the current cooldown.
func (b *Breaker) Allow() (ok bool, retryAt time.Time) {
	b.mu.Lock()
	next, change := b.state.expire(b.cooldown, b.now())
	b.state = next
	ok = !next.open
	retryAt = next.retryAt(b.cooldown)
	b.mu.Unlock()

	b.notify(change)
	return ok, retryAt
}

// RecordFailure counts a failed call and reports whether it opened the circuit.
func (b *Breaker) RecordFailure() StateChange {
	b.mu.Lock()
	next, change := b.state.recordFailure(b.threshold, b.now())
	b.state = next
	b.mu.Unlock()

	b.notify(change)
	return change
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() StateChange {
	b.mu.Lock()
	next, change := b.state.recordSuccess()
	b.state = next
	b.mu.Unlock()

	b.notify(change)
	return change
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.open {
		return StateOpen
	}
	return StateClosed
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.failures
}

// Reset manually closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	next, change := b.state.recordSuccess()
	b.state = next
	b.mu.Unlock()

	b.notify(change)
}

func (b *Breaker) notify(change StateChange) {
	if b.onChange == nil {
		return
	}
	switch {
	case change.Opened:
		b.onChange(b.name, StateOpen)
	case change.Closed:
		b.onChange(b.name, StateClosed)
	}
}
