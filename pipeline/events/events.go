// Package events provides the append-only audit log for pipeline traffic.
//
// Every queue interaction is written as a Record: stages record a consume
// when they pick up work and a produce when they hand it off, the bootstrap
// gate records an initiate per seeded item, and a round-limit short-circuit
// records a forward. Records carry the correlation id of the envelope they
// describe, so the full path of one work item can be reconstructed by
// filtering the log.
package events

import (
	"context"
	"time"
)

// Kind classifies a Record.
type Kind string

const (
	// KindConsume is recorded when a stage dequeues an envelope.
	KindConsume Kind = "consume"
	// KindProduce is recorded when a stage enqueues its result.
	KindProduce Kind = "produce"
	// KindInitiate is recorded when the bootstrap gate seeds the entry queue.
	KindInitiate Kind = "initiate"
	// KindForward is recorded when a stage passes an envelope through
	// without generating, e.g. on a round-limit short-circuit.
	KindForward Kind = "forward"
)

// Record is a single audit log entry.
type Record struct {
	// EventID uniquely identifies this record.
	EventID string `json:"event_id"`
	// Timestamp is when the record was written.
	Timestamp time.Time `json:"timestamp"`
	// Kind classifies the interaction.
	Kind Kind `json:"kind"`
	// Queue is the queue the interaction touched.
	Queue string `json:"queue"`
	// CorrelationID ties the record to a work item.
	CorrelationID string `json:"correlation_id"`
	// Payload is the envelope payload at the time of the interaction.
	Payload string `json:"payload"`
}

// Recorder appends audit records. Implementations assign EventID and
// Timestamp; callers supply the rest.
type Recorder interface {
	// Record appends one entry to the log.
	Record(ctx context.Context, kind Kind, queue, correlationID, payload string) error

	// Close flushes and releases the log.
	Close() error
}
