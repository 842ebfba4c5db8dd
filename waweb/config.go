package waweb

import "time"

// Config controls how the client connects and recovers.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:5000/ws".
	URL string

	// HealthURL is the HTTP health endpoint used for backend wake-up
	// probes. Empty disables probing.
	HealthURL string

	// ConnectTimeout bounds a single connection attempt, dial included.
	ConnectTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// HeartbeatInterval is how often a ping frame is emitted while
	// connected. HeartbeatTimeout is the maximum tolerated silence since
	// the last pong before the connection is treated as dead.
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	// Reconnect backoff: delay for failed attempt N is
	// min(ReconnectBaseDelay × ReconnectGrowth^(N−1), ReconnectMaxDelay).
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectGrowth      float64
	MaxReconnectAttempts int

	// TransportRetryDelay is the short fixed delay used when a live
	// connection drops at the transport level (as opposed to a failed
	// connection attempt, which uses the backoff schedule).
	TransportRetryDelay time.Duration

	// Pending event queue bounds. Events emitted while disconnected are
	// held up to QueueCapacity entries; entries older than QueueMaxAge
	// are dropped instead of replayed.
	QueueCapacity int
	QueueMaxAge   time.Duration

	// Wake-up probe tuning. Best effort: a failed probe never blocks the
	// connection attempt that follows.
	WakeAttempts int
	WakeTimeout  time.Duration
	WakeDelay    time.Duration
}

// DefaultConfig returns sensible defaults. The backoff and wake-up values
// are tuned for backends with cold-start latency; treat them as knobs,
// not contracts.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:       20 * time.Second,
		WriteTimeout:         10 * time.Second,
		HeartbeatInterval:    25 * time.Second,
		HeartbeatTimeout:     60 * time.Second,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		ReconnectGrowth:      2.0,
		MaxReconnectAttempts: 8,
		TransportRetryDelay:  time.Second,
		QueueCapacity:        100,
		QueueMaxAge:          2 * time.Minute,
		WakeAttempts:         3,
		WakeTimeout:          5 * time.Second,
		WakeDelay:            2 * time.Second,
	}
}
