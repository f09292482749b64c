// Package publisher emits decision events to an audit store. In the default
// synchronous mode the caller waits for the store write; with WithAsyncBuffer the
// event is queued and written by a background goroutine, dropping events when the
// buffer is full.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "winefeed/pkg/platform/audit"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the queue is saturated.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrPublisherClosed is returned by Emit once Close has been called.
	ErrPublisherClosed = errors.New("audit publisher closed")
)

const asyncWriteTimeout = 5 * time.Second

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics

	// mu guards closed and the send side of queue.
	mu     sync.RWMutex
	closed bool
	queue  chan audit.DecisionEvent
	wg     sync.WaitGroup
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithAsyncBuffer switches the publisher to queued writes with the given capacity.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan audit.DecisionEvent, size)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.wg.Go(p.drain)
	}
	return p
}

// Emit stamps the event and hands it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.DecisionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.metrics.IncDropped()
		p.logger.WarnContext(ctx, "audit publisher closed, dropping decision event",
			"supplier_id", event.SupplierID,
			"sku", event.SKU,
			"decision", event.Decision,
		)
		return ErrPublisherClosed
	}

	if p.queue == nil {
		return p.write(ctx, event)
	}

	select {
	case p.queue <- event:
		return nil
	default:
		p.metrics.IncDropped()
		p.logger.WarnContext(ctx, "audit buffer full, dropping decision event",
			"supplier_id", event.SupplierID,
			"sku", event.SKU,
			"decision", event.Decision,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) write(ctx context.Context, event audit.DecisionEvent) error {
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncFailures()
		p.logger.ErrorContext(ctx, "failed to write decision event",
			"supplier_id", event.SupplierID,
			"sku", event.SKU,
			"error", err,
		)
		return err
	}
	p.metrics.IncEmitted(event.Decision)
	return nil
}

func (p *Publisher) drain() {
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		_ = p.write(ctx, event)
		cancel()
	}
}

// Close flushes queued events and stops the background writer. Later calls to
// Emit return ErrPublisherClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.queue != nil {
			close(p.queue)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
