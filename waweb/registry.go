package waweb

import (
	"encoding/json"
	"sync"
)

// Handler receives the raw payload of a matching event.
type Handler func(data json.RawMessage)

// StatusHandler receives connection status transitions.
type StatusHandler func(ev StatusEvent)

// Subscription identifies a registered listener for Off.
type Subscription struct {
	event string
	id    uint64
}

type listenerEntry struct {
	id uint64
	fn Handler
}

type statusEntry struct {
	id uint64
	fn StatusHandler
}

// listenerRegistry is the durable record of event interest. It outlives
// any single transport: the read loop of whichever connection is live
// dispatches through it, so listeners registered while disconnected are
// honored as soon as a connection exists, and survive reconnects.
type listenerRegistry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]listenerEntry
	status   []statusEntry
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{handlers: make(map[string][]listenerEntry)}
}

// On registers fn for event. Handlers fire in registration order.
func (r *listenerRegistry) On(event string, fn Handler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[event] = append(r.handlers[event], listenerEntry{id: r.nextID, fn: fn})
	return Subscription{event: event, id: r.nextID}
}

// OnStatus registers fn for connection status transitions.
func (r *listenerRegistry) OnStatus(fn StatusHandler) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.status = append(r.status, statusEntry{id: r.nextID, fn: fn})
	return Subscription{event: EventStatus, id: r.nextID}
}

// Off removes a previously registered listener. Unknown subscriptions
// are ignored.
func (r *listenerRegistry) Off(sub Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.event == EventStatus {
		for i, e := range r.status {
			if e.id == sub.id {
				r.status = append(r.status[:i], r.status[i+1:]...)
				return
			}
		}
		return
	}
	entries := r.handlers[sub.event]
	for i, e := range entries {
		if e.id == sub.id {
			r.handlers[sub.event] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// dispatch invokes every handler registered for event, in order. The
// handler list is copied first so handlers may register or remove
// listeners without deadlocking.
func (r *listenerRegistry) dispatch(event string, data json.RawMessage) {
	r.mu.RLock()
	entries := make([]listenerEntry, len(r.handlers[event]))
	copy(entries, r.handlers[event])
	r.mu.RUnlock()

	for _, e := range entries {
		e.fn(data)
	}
}

// dispatchStatus invokes every status handler, in order.
func (r *listenerRegistry) dispatchStatus(ev StatusEvent) {
	r.mu.RLock()
	entries := make([]statusEntry, len(r.status))
	copy(entries, r.status)
	r.mu.RUnlock()

	for _, e := range entries {
		e.fn(ev)
	}
}

// Clear drops every listener. Used by Cleanup only.
func (r *listenerRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string][]listenerEntry)
	r.status = nil
}
