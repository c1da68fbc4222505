package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRecorder keeps records in memory. Used by tests and by the
// in-process runner when no log path is configured.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryRecorder returns an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record appends one entry.
func (r *MemoryRecorder) Record(ctx context.Context, kind Kind, queue, correlationID, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{
		EventID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Kind:          kind,
		Queue:         queue,
		CorrelationID: correlationID,
		Payload:       payload,
	})
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *MemoryRecorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// ByCorrelation returns the records for one work item, in append order.
func (r *MemoryRecorder) ByCorrelation(correlationID string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, rec := range r.records {
		if rec.CorrelationID == correlationID {
			out = append(out, rec)
		}
	}
	return out
}

// Close is a no-op.
func (r *MemoryRecorder) Close() error { return nil }

var _ Recorder = (*MemoryRecorder)(nil)
