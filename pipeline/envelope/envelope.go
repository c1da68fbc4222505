// Package envelope provides the Envelope - the unit of work flowing through
// the pipeline.
//
// An envelope is created once at pipeline entry and carries a stable
// correlation id across every queue and stage until it reaches a terminal
// sink. Stages never mutate an envelope in place; they derive a successor
// with WithPayload so the correlation id and title survive untouched.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the unit of work transiting the pipeline.
type Envelope struct {
	// CorrelationID is assigned once at pipeline entry and is immutable.
	// Every event record produced while processing this unit of work
	// carries the same value.
	CorrelationID string `json:"correlation_id"`

	// Title is an optional human-readable label set at entry and
	// propagated unchanged. The terminal sink derives document section
	// ids from it.
	Title string `json:"title,omitempty"`

	// Payload is opaque text content, replaced (not merged) at each
	// stage with that stage's generation output.
	Payload string `json:"payload"`

	// Round caps re-entrant revision loops. Zero for linear topologies.
	Round int `json:"round,omitempty"`

	// CreatedAt records when this unit of work entered the pipeline.
	CreatedAt time.Time `json:"created_at"`
}

// New creates an envelope with a fresh correlation id.
func New(title, payload string) Envelope {
	return Envelope{
		CorrelationID: uuid.New().String(),
		Title:         title,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
}

// WithPayload derives the successor envelope for the next stage: same
// correlation id, title, round, and creation time, new payload.
func (e Envelope) WithPayload(payload string) Envelope {
	next := e
	next.Payload = payload
	return next
}

// NextRound derives a successor with the round counter incremented.
func (e Envelope) NextRound(payload string) Envelope {
	next := e.WithPayload(payload)
	next.Round++
	return next
}

// Marshal serializes the envelope for queue transport.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes an envelope from queue transport bytes.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return e, nil
}
