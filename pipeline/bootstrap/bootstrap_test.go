package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johntango/coursepipeline/broker"
	"github.com/johntango/coursepipeline/logging"
	"github.com/johntango/coursepipeline/pipeline/events"
)

type headerCapture struct {
	mu     sync.Mutex
	calls  int
	title  string
	titles []string
}

func (h *headerCapture) WriteHeader(title string, titles []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.title = title
	h.titles = titles
	return nil
}

func newTestGate(t *testing.T, src Source) (*Gate, *broker.MemoryBroker, *events.MemoryRecorder, *headerCapture) {
	t.Helper()
	b := broker.NewMemoryBroker()
	t.Cleanup(func() { _ = b.Close() })
	rec := events.NewMemoryRecorder()
	header := &headerCapture{}
	gate := NewGate(b, rec, src, header, "input", "Course Catalog", logging.Discard())
	return gate, b, rec, header
}

func TestGateSeedsEntryQueueOnce(t *testing.T) {
	src := StaticSource{
		{Title: "Intro to Go", Background: "A first course."},
		{Title: "Web APIs", Background: "REST services."},
	}
	gate, b, rec, header := newTestGate(t, src)
	ctx := context.Background()

	assert.True(t, gate.Fire(ctx))
	assert.False(t, gate.Fire(ctx))
	assert.True(t, gate.Fired())

	depth, err := b.Depth(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	msg, err := b.Dequeue(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, "Intro to Go", msg.Envelope.Title)
	assert.JSONEq(t, `{"title":"Intro to Go","background":"A first course."}`, msg.Envelope.Payload)
	assert.NotEmpty(t, msg.Envelope.CorrelationID)

	records := rec.Records()
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, events.KindInitiate, r.Kind)
		assert.Equal(t, "input", r.Queue)
	}
	assert.NotEqual(t, records[0].CorrelationID, records[1].CorrelationID)

	assert.Equal(t, 1, header.calls)
	assert.Equal(t, "Course Catalog", header.title)
	assert.Equal(t, []string{"Intro to Go", "Web APIs"}, header.titles)
}

func TestGateAtMostOnceUnderConcurrentFires(t *testing.T) {
	src := StaticSource{{Title: "Intro to Go", Background: "bg"}}
	gate, b, _, _ := newTestGate(t, src)
	ctx := context.Background()

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- gate.Fire(ctx)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	assert.Equal(t, 1, won)

	depth, err := b.Depth(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestGateLatchesEvenWhenLoadFails(t *testing.T) {
	gate, b, rec, _ := newTestGate(t, NewFileSource(filepath.Join(t.TempDir(), "missing.json")))
	ctx := context.Background()

	assert.True(t, gate.Fire(ctx))
	assert.True(t, gate.Fired())
	assert.False(t, gate.Fire(ctx))

	depth, err := b.Depth(ctx, "input")
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Empty(t, rec.Records())
}

func TestGateStartFiresFromTicker(t *testing.T) {
	src := StaticSource{{Title: "Intro to Go", Background: "bg"}}
	gate, b, _, _ := newTestGate(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	gate.Start(ctx, 10*time.Millisecond)

	assert.True(t, gate.Fired())
	depth, err := b.Depth(context.Background(), "input")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestFileSourceParsesSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	raw := `[
  {"title": "Intro to Go", "background": "A first course."},
  {"title": "Web APIs", "background": "REST services."}
]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	items, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Web APIs", items[1].Title)
	assert.Equal(t, "REST services.", items[1].Background)
}

func TestFileSourceRejectsUntitledItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courses.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"background": "no title"}]`), 0o644))

	_, err := NewFileSource(path).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no title")
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootstrap.lock")

	first := NewLock(path)
	ok, err := first.Acquire()
	require.NoError(t, err)
	require.True(t, ok)

	second := NewLock(path)
	ok, err = second.Acquire()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release())
	ok, err = second.Acquire()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Release())
}
