// Package ratelimit caps outbound registry calls with a sliding window: at most
// Limit requests in any trailing Window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// Window is a process-wide sliding window limiter.
type Window struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	timestamps []time.Time
	now        func() time.Time
}

type Option func(*Window)

func WithLimit(limit int) Option {
	return func(w *Window) {
		if limit > 0 {
			w.limit = limit
		}
	}
}

func WithWindow(window time.Duration) Option {
	return func(w *Window) {
		if window > 0 {
			w.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		w.now = now
	}
}

func New(opts ...Option) *Window {
	w := &Window{
		limit:  DefaultLimit,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow records a request if the window has room. When rejected, ResetAt is the
// moment the oldest recorded request leaves the window.
func (w *Window) Allow() Decision {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.cleanup(now)

	if len(w.timestamps) >= w.limit {
		return Decision{
			Allowed: false,
			Limit:   w.limit,
			ResetAt: w.timestamps[0].Add(w.window),
		}
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: w.limit - len(w.timestamps),
		Limit:     w.limit,
		ResetAt:   w.timestamps[0].Add(w.window),
	}
}

// Remaining returns how many requests the window still admits without recording one.
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanup(w.now())
	return w.limit - len(w.timestamps)
}

func (w *Window) Limit() int { return w.limit }

// cleanup drops timestamps that have left the window. Must hold w.mu.
func (w *Window) cleanup(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
