// Package bootstrap seeds the pipeline's entry queue exactly once per
// process lifetime. A periodic timer drives the gate, a compare-and-swap
// latch guarantees the seeding body runs at most once even when timer ticks
// and manual fires race, and a file lock keeps concurrent processes from
// seeding the same data directory twice.
package bootstrap

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/johntango/coursepipeline/broker"
	"github.com/johntango/coursepipeline/logging"
	"github.com/johntango/coursepipeline/pipeline/envelope"
	"github.com/johntango/coursepipeline/pipeline/events"
	"github.com/johntango/coursepipeline/pipeline/observability"
)

// HeaderWriter receives the set of titles about to be seeded, before any
// envelope is enqueued. The terminal document uses it to emit navigation.
type HeaderWriter interface {
	WriteHeader(title string, titles []string) error
}

// Gate fires the bootstrap body at most once.
type Gate struct {
	broker   broker.Broker
	recorder events.Recorder
	source   Source
	header   HeaderWriter
	entry    string
	title    string
	log      logging.Logger

	fired atomic.Bool
}

// NewGate wires a bootstrap gate. header may be nil when no document
// navigation is wanted.
func NewGate(b broker.Broker, rec events.Recorder, src Source, header HeaderWriter, entry, title string, log logging.Logger) *Gate {
	return &Gate{
		broker:   b,
		recorder: rec,
		source:   src,
		header:   header,
		entry:    entry,
		title:    title,
		log:      log,
	}
}

// Fired reports whether the gate has latched.
func (g *Gate) Fired() bool {
	return g.fired.Load()
}

// Fire runs the bootstrap body if the gate has not latched yet. The latch
// is taken before the body runs: a failed load does not re-arm the gate.
// Returns true when this call won the latch.
func (g *Gate) Fire(ctx context.Context) bool {
	if !g.fired.CompareAndSwap(false, true) {
		return false
	}

	items, err := g.source.Load(ctx)
	if err != nil {
		g.log.Error("bootstrap load failed, pipeline will not be seeded", "error", err)
		return true
	}
	if len(items) == 0 {
		g.log.Warn("bootstrap source is empty")
		return true
	}

	if g.header != nil {
		titles := make([]string, len(items))
		for i, item := range items {
			titles[i] = item.Title
		}
		if err := g.header.WriteHeader(g.title, titles); err != nil {
			g.log.Error("bootstrap header write failed", "error", err)
		}
	}

	seeded := 0
	for _, item := range items {
		payload, err := item.Seed()
		if err != nil {
			g.log.Error("bootstrap seed encode failed", "title", item.Title, "error", err)
			continue
		}
		env := envelope.New(item.Title, payload)
		if err := g.recorder.Record(ctx, events.KindInitiate, g.entry, env.CorrelationID, env.Payload); err != nil {
			g.log.Error("bootstrap event record failed", "title", item.Title, "error", err)
		}
		if err := g.broker.Enqueue(ctx, g.entry, env); err != nil {
			g.log.Error("bootstrap enqueue failed", "title", item.Title, "error", err)
			continue
		}
		seeded++
	}

	observability.RecordBootstrapItems(seeded)
	g.log.Info("bootstrap complete", "items", seeded, "queue", g.entry)
	return true
}

// Start fires the gate on a ticker until it latches or the context ends.
// The first attempt happens after one interval, mirroring a periodic timer
// that begins counting at process start.
func (g *Gate) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Fire(ctx) || g.Fired() {
				return
			}
		}
	}
}
