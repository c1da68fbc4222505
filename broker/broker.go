// Package broker provides the durable queue transport between pipeline
// stages.
//
// A queue is a named, ordered, multi-producer channel of envelopes with a
// single logical consumer. Delivery is at-least-once: an envelope dequeued
// but never completed is redelivered after a restart, and correlation ids
// make downstream processing idempotent per logical unit of work.
//
// Two implementations exist:
//   - SQLite (durable, the default for the daemon)
//   - in-memory (volatile, for tests and single-shot runs)
package broker

import (
	"context"
	"time"

	"github.com/johntango/coursepipeline/pipeline/envelope"
)

// Message is a delivered envelope together with its queue position. The
// consumer must call Complete (or Fail) exactly once per message.
type Message struct {
	// ID is the broker-assigned sequence for this delivery. Monotonic
	// per queue for the SQLite broker.
	ID int64

	// Queue is the queue this message was consumed from.
	Queue string

	// Envelope is the unit of work.
	Envelope envelope.Envelope

	// EnqueuedAt is when the producer appended the message.
	EnqueuedAt time.Time
}

// Broker is the queue transport contract.
//
// Enqueue appends to the named queue's tail and returns once the write is
// durable; it never blocks on consumer progress. Dequeue blocks until a
// message is available or ctx is done, and yields messages in FIFO order to
// the single logical consumer of the queue.
type Broker interface {
	// Enqueue appends an envelope to the tail of the named queue.
	Enqueue(ctx context.Context, queue string, env envelope.Envelope) error

	// Dequeue blocks until a message is available on the named queue.
	// The message stays leased until Complete or Fail is called.
	Dequeue(ctx context.Context, queue string) (*Message, error)

	// Complete marks a delivered message as consumed. It is never
	// redelivered afterwards.
	Complete(ctx context.Context, msg *Message) error

	// Fail marks a delivered message as failed with a reason. The
	// message is not redelivered; operators observe the gap through
	// the event log and the failure reason.
	Fail(ctx context.Context, msg *Message, reason string) error

	// Depth returns the number of pending messages on the named queue.
	Depth(ctx context.Context, queue string) (int, error)

	// Close releases the transport.
	Close() error
}
