// Package publisher fans audit events out to a sink, synchronously by default
// or through a bounded buffer when configured.
package publisher

import (
	"context"
	"sync"

	"quorum/pkg/platform/audit"
)

// Sink receives audit events. Implementations: the in-memory store (tests),
// the Kafka sink (production).
type Sink interface {
	Write(ctx context.Context, event audit.Event) error
}

// Publisher emits audit events to a sink. In async mode Emit never blocks on
// the sink; events are dropped (and reported via the drop counter) when the
// buffer is full, because audit must not stall the decision path.
type Publisher struct {
	sink Sink

	buffer  chan audit.Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	dropped int64
	closed  bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given buffer
// size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// NewPublisher creates a publisher over the sink.
func NewPublisher(sink Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink: sink,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. In sync mode the sink error is returned; in
// async mode Emit only fails once the publisher is closed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.buffer == nil {
		return p.sink.Write(ctx, event)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return context.Canceled
	}
	p.mu.Unlock()

	select {
	case p.buffer <- event:
		return nil
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		return nil
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.buffer:
			// Sink errors in async mode are intentionally swallowed; the
			// sink itself is responsible for logging its failures.
			_ = p.sink.Write(context.Background(), event)
		case <-p.done:
			// Flush whatever is left.
			for {
				select {
				case event := <-p.buffer:
					_ = p.sink.Write(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Close stops the async drain loop after flushing buffered events. Safe to
// call in sync mode and safe to call twice.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
}
