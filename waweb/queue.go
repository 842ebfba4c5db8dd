package waweb

import (
	"sync"
	"time"
)

// queuedEvent is an outbound event held while the connection is down.
type queuedEvent struct {
	Event      string
	Data       any
	Ack        func(error) // optional, called once on send or drop
	EnqueuedAt time.Time
}

// pendingQueue is a capacity-bounded FIFO of events emitted while
// disconnected. When full, the oldest entry is evicted. Entries older
// than maxAge are dropped at drain time instead of being replayed.
type pendingQueue struct {
	mu       sync.Mutex
	capacity int
	maxAge   time.Duration
	entries  []queuedEvent
}

func newPendingQueue(capacity int, maxAge time.Duration) *pendingQueue {
	return &pendingQueue{capacity: capacity, maxAge: maxAge}
}

// Push appends an event, evicting the oldest entry when at capacity.
// Returns true if an entry was evicted. The evicted entry's ack runs
// after the lock is released so it may safely re-enter the queue.
func (q *pendingQueue) Push(ev queuedEvent) bool {
	var evicted *queuedEvent
	q.mu.Lock()
	if q.capacity > 0 && len(q.entries) >= q.capacity {
		old := q.entries[0]
		q.entries = q.entries[1:]
		evicted = &old
	}
	q.entries = append(q.entries, ev)
	q.mu.Unlock()

	if evicted != nil {
		if evicted.Ack != nil {
			evicted.Ack(NewError(ErrorNotConnected, "event evicted from pending queue"))
		}
		return true
	}
	return false
}

// Drain removes and returns all entries still fresh at now, in enqueue
// order. Stale entries are dropped and their acks failed.
func (q *pendingQueue) Drain(now time.Time) []queuedEvent {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	fresh := entries[:0]
	for _, ev := range entries {
		if q.maxAge > 0 && now.Sub(ev.EnqueuedAt) > q.maxAge {
			if ev.Ack != nil {
				ev.Ack(NewError(ErrorTimeout, "queued event expired before reconnect"))
			}
			continue
		}
		fresh = append(fresh, ev)
	}
	return fresh
}

// Len reports the number of pending entries.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear drops all pending entries, failing their acks.
func (q *pendingQueue) Clear() {
	q.mu.Lock()
	entries := q.entries
	q.entries = nil
	q.mu.Unlock()

	for _, ev := range entries {
		if ev.Ack != nil {
			ev.Ack(NewError(ErrorClosed, "client disconnected"))
		}
	}
}
