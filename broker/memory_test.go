package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johntango/coursepipeline/pipeline/envelope"
)

func TestMemoryBrokerFIFO(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	first := envelope.New("A", "one")
	second := envelope.New("B", "two")
	require.NoError(t, b.Enqueue(ctx, "input", first))
	require.NoError(t, b.Enqueue(ctx, "input", second))

	depth, err := b.Depth(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	msg, err := b.Dequeue(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, first.CorrelationID, msg.Envelope.CorrelationID)

	msg, err = b.Dequeue(ctx, "input")
	require.NoError(t, err)
	assert.Equal(t, second.CorrelationID, msg.Envelope.CorrelationID)
	require.NoError(t, b.Complete(ctx, msg))
}

func TestMemoryBrokerDequeueBlocksUntilEnqueue(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()
	ctx := context.Background()

	done := make(chan *Message, 1)
	go func() {
		msg, err := b.Dequeue(ctx, "input")
		if err == nil {
			done <- msg
		}
	}()

	// Give the consumer time to block.
	time.Sleep(20 * time.Millisecond)
	env := envelope.New("A", "payload")
	require.NoError(t, b.Enqueue(ctx, "input", env))

	select {
	case msg := <-done:
		assert.Equal(t, env.CorrelationID, msg.Envelope.CorrelationID)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue never observed the enqueue")
	}
}

func TestMemoryBrokerDequeueHonorsContext(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Dequeue(ctx, "empty")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryBrokerSingleConsumerPerQueue(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = b.Dequeue(ctx, "input")
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := b.Dequeue(context.Background(), "input")
	var conflict *ConsumerConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "input", conflict.Queue)
}

func TestMemoryBrokerCloseWakesConsumer(t *testing.T) {
	b := NewMemoryBroker()

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Dequeue(context.Background(), "input")
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Close())

	select {
	case err := <-errCh:
		var closed *ClosedError
		require.ErrorAs(t, err, &closed)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer not woken by Close")
	}
}

func TestMemoryBrokerRejectsAfterClose(t *testing.T) {
	b := NewMemoryBroker()
	require.NoError(t, b.Close())

	err := b.Enqueue(context.Background(), "input", envelope.New("A", "p"))
	var closed *ClosedError
	require.ErrorAs(t, err, &closed)
}
