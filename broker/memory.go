package broker

import (
	"context"
	"sync"
	"time"

	"github.com/johntango/coursepipeline/pipeline/envelope"
)

// MemoryBroker is an in-memory Broker for tests and single-shot runs.
// Messages do not survive a restart.
type MemoryBroker struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
	closed bool
}

type memoryQueue struct {
	items   []*Message
	nextSeq int64
	notify  chan struct{}
	waiting bool
}

// NewMemoryBroker creates an empty in-memory broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{queues: make(map[string]*memoryQueue)}
}

func (b *MemoryBroker) queue(name string) *memoryQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memoryQueue{notify: make(chan struct{}, 1)}
		b.queues[name] = q
	}
	return q
}

// Enqueue appends an envelope to the tail of the named queue.
func (b *MemoryBroker) Enqueue(ctx context.Context, queue string, env envelope.Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return NewClosedError()
	}
	q := b.queue(queue)
	q.nextSeq++
	q.items = append(q.items, &Message{
		ID:         q.nextSeq,
		Queue:      queue,
		Envelope:   env,
		EnqueuedAt: time.Now().UTC(),
	})
	notify := q.notify
	b.mu.Unlock()

	select {
	case notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue blocks until a message is available or ctx is done. Only one
// consumer may wait on a queue at a time.
func (b *MemoryBroker) Dequeue(ctx context.Context, queue string) (*Message, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, NewClosedError()
	}
	q := b.queue(queue)
	if q.waiting {
		b.mu.Unlock()
		return nil, NewConsumerConflictError(queue)
	}
	q.waiting = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		q.waiting = false
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, NewClosedError()
		}
		if len(q.items) > 0 {
			msg := q.items[0]
			q.items = q.items[1:]
			b.mu.Unlock()
			return msg, nil
		}
		notify := q.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-notify:
		}
	}
}

// Complete is a no-op: the in-memory broker removes messages at dequeue.
func (b *MemoryBroker) Complete(ctx context.Context, msg *Message) error {
	return nil
}

// Fail is a no-op for the in-memory broker.
func (b *MemoryBroker) Fail(ctx context.Context, msg *Message, reason string) error {
	return nil
}

// Depth returns the number of pending messages on the named queue.
func (b *MemoryBroker) Depth(ctx context.Context, queue string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, NewClosedError()
	}
	q, ok := b.queues[queue]
	if !ok {
		return 0, nil
	}
	return len(q.items), nil
}

// Close marks the broker closed and wakes any blocked consumers.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return nil
}

var _ Broker = (*MemoryBroker)(nil)
