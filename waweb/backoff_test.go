package waweb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayFollowsFormula(t *testing.T) {
	base := time.Second
	ceil := 30 * time.Second
	growth := 2.0

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // capped
		30 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, backoffDelay(base, ceil, growth, i+1), "attempt %d", i+1)
	}
}

func TestBackoffDelayNonDecreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 20; attempt++ {
		d := backoffDelay(500*time.Millisecond, 10*time.Second, 1.7, attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, 10*time.Second)
		prev = d
	}
}

func TestBackoffDelayDegenerateInputs(t *testing.T) {
	// Attempt below 1 behaves as attempt 1, zero growth as flat delay.
	assert.Equal(t, time.Second, backoffDelay(time.Second, time.Minute, 2, 0))
	assert.Equal(t, time.Second, backoffDelay(time.Second, time.Minute, 0, 5))
}
