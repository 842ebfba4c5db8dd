package waweb

import (
	"time"

	"go.uber.org/atomic"
)

// Stats is a point-in-time snapshot of connection statistics.
type Stats struct {
	Connects       int64
	Disconnects    int64
	Reconnects     int64
	Errors         int64
	QueuedEvents   int64
	DroppedEvents  int64
	AverageLatency time.Duration
}

// connStats accumulates process-wide connection counters. Counters only
// reset on explicit Cleanup.
type connStats struct {
	connects      atomic.Int64
	disconnects   atomic.Int64
	reconnects    atomic.Int64
	errors        atomic.Int64
	queuedEvents  atomic.Int64
	droppedEvents atomic.Int64
	latencyNs     atomic.Float64 // exponentially weighted moving average
}

// recordLatency folds one heartbeat round-trip into the rolling average.
func (s *connStats) recordLatency(rtt time.Duration) {
	const weight = 0.2
	for {
		old := s.latencyNs.Load()
		next := float64(rtt)
		if old > 0 {
			next = old*(1-weight) + float64(rtt)*weight
		}
		if s.latencyNs.CompareAndSwap(old, next) {
			return
		}
	}
}

func (s *connStats) snapshot() Stats {
	return Stats{
		Connects:       s.connects.Load(),
		Disconnects:    s.disconnects.Load(),
		Reconnects:     s.reconnects.Load(),
		Errors:         s.errors.Load(),
		QueuedEvents:   s.queuedEvents.Load(),
		DroppedEvents:  s.droppedEvents.Load(),
		AverageLatency: time.Duration(s.latencyNs.Load()),
	}
}

func (s *connStats) reset() {
	s.connects.Store(0)
	s.disconnects.Store(0)
	s.reconnects.Store(0)
	s.errors.Store(0)
	s.queuedEvents.Store(0)
	s.droppedEvents.Store(0)
	s.latencyNs.Store(0)
}
