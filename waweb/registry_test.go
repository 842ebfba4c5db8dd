package waweb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryDispatchPreservesRegistrationOrder(t *testing.T) {
	r := newListenerRegistry()
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.On("ev", func(json.RawMessage) { order = append(order, i) })
	}

	r.dispatch("ev", nil)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRegistryOffRemovesOnlyTarget(t *testing.T) {
	r := newListenerRegistry()
	var fired []string
	subA := r.On("ev", func(json.RawMessage) { fired = append(fired, "a") })
	r.On("ev", func(json.RawMessage) { fired = append(fired, "b") })

	r.Off(subA)
	r.dispatch("ev", nil)
	assert.Equal(t, []string{"b"}, fired)

	// Removing twice is a harmless no-op.
	r.Off(subA)
}

func TestRegistryUnknownEventIsNoop(t *testing.T) {
	r := newListenerRegistry()
	r.dispatch("nobody-listens", nil)
}

func TestRegistryStatusSubscription(t *testing.T) {
	r := newListenerRegistry()
	var got []ConnectionState
	sub := r.OnStatus(func(ev StatusEvent) { got = append(got, ev.State) })

	r.dispatchStatus(StatusEvent{State: StateConnected})
	r.dispatchStatus(StatusEvent{State: StateDisconnected})
	assert.Equal(t, []ConnectionState{StateConnected, StateDisconnected}, got)

	r.Off(sub)
	r.dispatchStatus(StatusEvent{State: StateError})
	assert.Len(t, got, 2)
}

func TestRegistryHandlerMayMutateRegistry(t *testing.T) {
	r := newListenerRegistry()
	var sub Subscription
	fired := 0
	sub = r.On("ev", func(json.RawMessage) {
		fired++
		r.Off(sub) // self-removal mid-dispatch must not deadlock
	})

	r.dispatch("ev", nil)
	r.dispatch("ev", nil)
	assert.Equal(t, 1, fired)
}

func TestRegistryClear(t *testing.T) {
	r := newListenerRegistry()
	fired := false
	r.On("ev", func(json.RawMessage) { fired = true })
	r.OnStatus(func(StatusEvent) { fired = true })

	r.Clear()
	r.dispatch("ev", nil)
	r.dispatchStatus(StatusEvent{})
	assert.False(t, fired)
}
