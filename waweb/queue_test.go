package waweb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFOOrder(t *testing.T) {
	q := newPendingQueue(10, time.Minute)
	now := time.Now()
	for _, name := range []string{"a", "b", "c"} {
		q.Push(queuedEvent{Event: name, EnqueuedAt: now})
	}

	drained := q.Drain(now)
	require.Len(t, drained, 3)
	assert.Equal(t, "a", drained[0].Event)
	assert.Equal(t, "b", drained[1].Event)
	assert.Equal(t, "c", drained[2].Event)
	assert.Equal(t, 0, q.Len())
}

func TestQueueEvictsOldestAtCapacity(t *testing.T) {
	q := newPendingQueue(2, time.Minute)
	now := time.Now()

	assert.False(t, q.Push(queuedEvent{Event: "a", EnqueuedAt: now}))
	assert.False(t, q.Push(queuedEvent{Event: "b", EnqueuedAt: now}))
	assert.True(t, q.Push(queuedEvent{Event: "c", EnqueuedAt: now}))
	assert.Equal(t, 2, q.Len())

	drained := q.Drain(now)
	require.Len(t, drained, 2)
	assert.Equal(t, "b", drained[0].Event)
	assert.Equal(t, "c", drained[1].Event)
}

func TestQueueEvictionFailsAck(t *testing.T) {
	q := newPendingQueue(1, time.Minute)
	now := time.Now()

	var ackErr error
	q.Push(queuedEvent{Event: "a", EnqueuedAt: now, Ack: func(err error) { ackErr = err }})
	q.Push(queuedEvent{Event: "b", EnqueuedAt: now})

	require.Error(t, ackErr)
}

func TestQueueEvictionAckMayReenterQueue(t *testing.T) {
	q := newPendingQueue(1, time.Minute)
	now := time.Now()

	done := make(chan struct{})
	q.Push(queuedEvent{Event: "a", EnqueuedAt: now, Ack: func(error) {
		q.Push(queuedEvent{Event: "a-retry", EnqueuedAt: now})
		close(done)
	}})
	go q.Push(queuedEvent{Event: "b", EnqueuedAt: now})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("eviction ack deadlocked re-entering the queue")
	}
	assert.Equal(t, 1, q.Len())
}

func TestQueueDropsStaleEntriesOnDrain(t *testing.T) {
	q := newPendingQueue(10, 100*time.Millisecond)
	now := time.Now()

	var staleAck error
	q.Push(queuedEvent{Event: "stale", EnqueuedAt: now.Add(-time.Second), Ack: func(err error) { staleAck = err }})
	q.Push(queuedEvent{Event: "fresh", EnqueuedAt: now})

	drained := q.Drain(now)
	require.Len(t, drained, 1)
	assert.Equal(t, "fresh", drained[0].Event)
	require.Error(t, staleAck)
}

func TestQueueClearFailsAcks(t *testing.T) {
	q := newPendingQueue(10, time.Minute)
	var ackErr error
	q.Push(queuedEvent{Event: "a", EnqueuedAt: time.Now(), Ack: func(err error) { ackErr = err }})

	q.Clear()
	assert.Equal(t, 0, q.Len())
	require.Error(t, ackErr)
}
