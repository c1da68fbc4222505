package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// JSONL FILE RECORDER
// ============================================================================

// FileRecorder appends records as JSON lines to a single file. Writes are
// serialized under a mutex so records never interleave; the file is opened
// in append mode so restarts extend the existing log.
type FileRecorder struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	closed bool
}

// NewFileRecorder opens (or creates) the log file at path.
func NewFileRecorder(path string) (*FileRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return &FileRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

// Record appends one entry. The entry is assigned a fresh event id and the
// current timestamp before it is written.
func (r *FileRecorder) Record(ctx context.Context, kind Kind, queue, correlationID, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("event log is closed")
	}

	rec := Record{
		EventID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Kind:          kind,
		Queue:         queue,
		CorrelationID: correlationID,
		Payload:       payload,
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("append event record: %w", err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.file.Sync(); err != nil {
		_ = r.file.Close()
		return fmt.Errorf("sync event log: %w", err)
	}
	return r.file.Close()
}

// ReadAll parses every record in the log file at path. Intended for
// inspection tooling and tests, not the hot path.
func ReadAll(path string) ([]Record, error) {
	data, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer data.Close()

	var records []Record
	dec := json.NewDecoder(data)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("parse event record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

var _ Recorder = (*FileRecorder)(nil)
