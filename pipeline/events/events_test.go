package events

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRecorderAppendsAndReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, KindInitiate, "input", "corr-1", "Intro to Go"))
	require.NoError(t, rec.Record(ctx, KindConsume, "input", "corr-1", "Intro to Go"))
	require.NoError(t, rec.Record(ctx, KindProduce, "planning", "corr-1", "plan text"))
	require.NoError(t, rec.Close())

	records, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, KindInitiate, records[0].Kind)
	assert.Equal(t, KindConsume, records[1].Kind)
	assert.Equal(t, KindProduce, records[2].Kind)
	assert.Equal(t, "planning", records[2].Queue)
	assert.Equal(t, "plan text", records[2].Payload)

	for _, r := range records {
		assert.NotEmpty(t, r.EventID)
		assert.False(t, r.Timestamp.IsZero())
		assert.Equal(t, "corr-1", r.CorrelationID)
	}
	assert.NotEqual(t, records[0].EventID, records[1].EventID)
}

func TestFileRecorderSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()

	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(ctx, KindInitiate, "input", "corr-1", "first"))
	require.NoError(t, rec.Close())

	rec, err = NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(ctx, KindInitiate, "input", "corr-2", "second"))
	require.NoError(t, rec.Close())

	records, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "corr-1", records[0].CorrelationID)
	assert.Equal(t, "corr-2", records[1].CorrelationID)
}

func TestFileRecorderRejectsWritesAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewFileRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	err = rec.Record(context.Background(), KindConsume, "input", "corr-1", "late")
	assert.Error(t, err)
}

func TestMemoryRecorderFiltersByCorrelation(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, KindConsume, "input", "corr-1", "a"))
	require.NoError(t, rec.Record(ctx, KindConsume, "input", "corr-2", "b"))
	require.NoError(t, rec.Record(ctx, KindProduce, "planning", "corr-1", "c"))

	matched := rec.ByCorrelation("corr-1")
	require.Len(t, matched, 2)
	assert.Equal(t, KindConsume, matched[0].Kind)
	assert.Equal(t, KindProduce, matched[1].Kind)
	assert.Len(t, rec.Records(), 3)
}

func TestMemoryRecorderConcurrentAppends(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = rec.Record(ctx, KindConsume, "input", "corr", "p")
			}
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Records(), 200)
}
