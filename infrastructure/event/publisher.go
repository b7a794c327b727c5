// Package event provides event publishing for the loop's progress events.
package event

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/sysagent/domain/event"
)

// Handler receives published events in order. Handlers run synchronously on
// the publishing goroutine so a renderer sees progress as it happens.
type Handler func(ctx context.Context, e event.Event)

// Publisher fans events out to handlers and, optionally, an event store.
type Publisher struct {
	store    event.Store
	handlers []Handler
	buffer   []event.Event
	bufSize  int
	closed   bool
	mu       sync.Mutex
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithBufferSize sets the store write buffer size.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		p.bufSize = size
	}
}

// WithStore persists published events.
func WithStore(store event.Store) PublisherOption {
	return func(p *Publisher) {
		p.store = store
	}
}

// WithHandler subscribes h at construction time.
func WithHandler(h Handler) PublisherOption {
	return func(p *Publisher) {
		p.handlers = append(p.handlers, h)
	}
}

// NewPublisher creates a new event publisher.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize > 0 {
		p.buffer = make([]event.Event, 0, p.bufSize)
	}
	return p
}

// Subscribe adds a handler.
func (p *Publisher) Subscribe(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, h)
}

// Publish delivers events to every handler and then to the store.
func (p *Publisher) Publish(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return event.ErrPublisherClosed
	}

	for _, e := range events {
		for _, h := range p.handlers {
			h(ctx, e)
		}
	}

	if p.store == nil {
		return nil
	}

	// If no buffering, publish immediately
	if p.bufSize == 0 {
		return p.store.Append(ctx, events...)
	}

	p.buffer = append(p.buffer, events...)
	if len(p.buffer) >= p.bufSize {
		return p.flush(ctx)
	}
	return nil
}

// Flush writes all buffered events to the store.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush(ctx)
}

// flush writes buffered events to the store (must hold lock).
func (p *Publisher) flush(ctx context.Context) error {
	if p.store == nil || len(p.buffer) == 0 {
		return nil
	}

	if err := p.store.Append(ctx, p.buffer...); err != nil {
		return err
	}

	p.buffer = p.buffer[:0]
	return nil
}

// Close flushes remaining events and rejects later publishes.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.flush(context.Background())
}

// Ensure Publisher implements event.Publisher
var _ event.Publisher = (*Publisher)(nil)
