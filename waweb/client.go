package waweb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/waweb/waweb-go/waweb/internal"
)

// Disconnect reasons reported in StatusEvent.Reason. Only reasons on
// this list trigger automatic reconnection.
const (
	ReasonTransportClosed  = "transport closed"
	ReasonTransportError   = "transport error"
	ReasonHeartbeatTimeout = "heartbeat timeout"
	ReasonServerShutdown   = "server shutdown"
)

func reconnectableReason(reason string) bool {
	switch reason {
	case ReasonTransportClosed, ReasonTransportError, ReasonHeartbeatTimeout, ReasonServerShutdown:
		return true
	default:
		return false
	}
}

// Client owns at most one live realtime connection to the backend and
// transparently recovers from drops without losing registered interest.
// Construct one per application with NewClient and share it by handle;
// Disconnect or Cleanup tears it down deterministically.
type Client struct {
	cfg        Config
	logger     Logger
	registry   *listenerRegistry
	queue      *pendingQueue
	stats      *connStats
	httpClient *http.Client

	mu             sync.Mutex
	state          ConnectionState
	conn           *internal.Conn
	writeCh        chan queuedEvent
	loopCtx        context.Context
	loopCancel     context.CancelFunc
	reconnectTimer *time.Timer
	gen            uint64 // increments whenever the live transport changes
	connID         string
	connectedAt    time.Time
	attempts       int
	everConnected  bool
	closed         bool

	lastPong atomic.Int64 // unix nanos of the last pong received
}

// NewClient constructs a client with the provided config. The client
// does not connect until Connect is called.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		logger:     noopLogger{},
		registry:   newListenerRegistry(),
		queue:      newPendingQueue(cfg.QueueCapacity, cfg.QueueMaxAge),
		stats:      &connStats{},
		httpClient: &http.Client{},
	}
}

// SetLogger overrides the logger (optional).
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of accumulated connection statistics.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Pending reports how many events are queued awaiting a connection.
func (c *Client) Pending() int {
	return c.queue.Len()
}

// On registers a raw handler for event. The registration outlives any
// single transport and is honored across reconnects.
func (c *Client) On(event string, fn Handler) Subscription {
	return c.registry.On(event, fn)
}

// Off removes a listener registered via On, OnStatus, OnMessage or
// OnMessageUpdate.
func (c *Client) Off(sub Subscription) {
	c.registry.Off(sub)
}

// OnStatus registers a handler for connection status transitions.
// Connection failures are only ever reported here, never as errors
// thrown into event handlers.
func (c *Client) OnStatus(fn StatusHandler) Subscription {
	return c.registry.OnStatus(fn)
}

// OnMessage registers a typed handler for new-message events.
func (c *Client) OnMessage(fn func(MessageEvent)) Subscription {
	return c.registry.On(EventMessageNew, func(data json.RawMessage) {
		var ev MessageEvent
		if err := UnmarshalData(data, &ev); err != nil {
			c.logger.Warn("undecodable message event", map[string]any{"error": err.Error()})
			return
		}
		fn(ev)
	})
}

// OnMessageUpdate registers a typed handler for delivery-status changes.
func (c *Client) OnMessageUpdate(fn func(MessageUpdateEvent)) Subscription {
	return c.registry.On(EventMessageUpdate, func(data json.RawMessage) {
		var ev MessageUpdateEvent
		if err := UnmarshalData(data, &ev); err != nil {
			c.logger.Warn("undecodable message update", map[string]any{"error": err.Error()})
			return
		}
		fn(ev)
	})
}

// Connect establishes the realtime connection. It is a no-op when
// already connected and rejects when an attempt is already in flight.
// On failure the client schedules its own reconnect attempts (backoff
// schedule per Config) until the attempt budget is exhausted.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return NewError(ErrorClosed, "client has been cleaned up")
	}
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.mu.Unlock()
		return NewError(ErrorConnectInProgress, "connection attempt already in flight")
	}
	if c.cfg.URL == "" {
		c.mu.Unlock()
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.state = StateConnecting
	gen := c.gen
	c.mu.Unlock()

	// Best-effort: rouse a cold backend before dialing. Never a gate.
	c.wakeBackend(ctx)

	dialCtx := ctx
	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}
	conn, err := internal.Dial(dialCtx, c.cfg.URL, c.cfg.ReadTimeout, c.cfg.WriteTimeout)
	if err != nil {
		return c.handleConnectError(gen, err)
	}
	return c.finishConnect(gen, conn)
}

// Reconnect resets the attempt budget, cancels any scheduled automatic
// attempt, and performs a full teardown-and-reconnect cycle. Use when
// there is independent evidence the network changed. Queued events are
// preserved.
func (c *Client) Reconnect(ctx context.Context) error {
	c.disconnectInternal("manual reconnect", false)
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	return c.Connect(ctx)
}

// Disconnect cancels all pending timers, closes the live transport and
// clears the pending event queue. Listener registrations survive; a
// later Connect resumes delivery.
func (c *Client) Disconnect() {
	c.disconnectInternal("client disconnect", true)
}

// Cleanup is Disconnect plus clearing the listener registry and
// resetting statistics. The client is unusable afterwards.
func (c *Client) Cleanup() {
	c.disconnectInternal("client cleanup", true)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.registry.Clear()
	c.stats.reset()
}

// Emit sends an event immediately when connected. Otherwise the event
// joins the pending queue (bounded, FIFO eviction) for replay after the
// next successful connect, and Emit reports sent=false. Callers must
// not assume synchronous delivery.
func (c *Client) Emit(ctx context.Context, event string, data any) (sent bool, err error) {
	return c.EmitWithAck(ctx, event, data, nil)
}

// EmitWithAck is Emit with a completion callback. ack is invoked exactly
// once: with nil once the event is written to a transport, or with an
// error if the event is evicted, expires, or the client shuts down.
func (c *Client) EmitWithAck(ctx context.Context, event string, data any, ack func(error)) (sent bool, err error) {
	ev := queuedEvent{Event: event, Data: data, Ack: ack, EnqueuedAt: time.Now()}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, NewError(ErrorClosed, "client has been cleaned up")
	}
	if c.state == StateConnected && c.writeCh != nil {
		ch := c.writeCh
		loopCtx := c.loopCtx
		c.mu.Unlock()
		select {
		case ch <- ev:
			return true, nil
		case <-ctx.Done():
			return false, ctx.Err()
		case <-loopCtx.Done():
			// Connection died mid-send; fall back to queueing.
		}
	} else {
		c.mu.Unlock()
	}

	c.stats.queuedEvents.Inc()
	if c.queue.Push(ev) {
		c.stats.droppedEvents.Inc()
	}
	return false, nil
}

// JoinConversation subscribes to realtime updates for a conversation.
// While disconnected the subscription is queued for replay on connect.
func (c *Client) JoinConversation(ctx context.Context, waID string) error {
	_, err := c.Emit(ctx, EventJoinConversation, JoinPayload{WaID: waID})
	return err
}

// LeaveConversation unsubscribes from a conversation.
func (c *Client) LeaveConversation(ctx context.Context, waID string) error {
	_, err := c.Emit(ctx, EventLeaveConversation, JoinPayload{WaID: waID})
	return err
}

// wakeBackend issues a bounded number of short-timeout health probes.
// Gives up silently: the connection attempt proceeds regardless.
func (c *Client) wakeBackend(ctx context.Context) {
	if c.cfg.HealthURL == "" || c.cfg.WakeAttempts <= 0 {
		return
	}
	for i := 0; i < c.cfg.WakeAttempts; i++ {
		if c.probeHealth(ctx) {
			return
		}
		c.logger.Debug("wake-up probe failed", map[string]any{"attempt": i + 1})
		select {
		case <-time.After(c.cfg.WakeDelay):
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) probeHealth(ctx context.Context) bool {
	if c.cfg.WakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WakeTimeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

func (c *Client) finishConnect(gen uint64, conn *internal.Conn) error {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateConnecting {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "superseded")
		return NewError(ErrorConnection, "connection attempt superseded")
	}
	c.gen++
	liveGen := c.gen
	c.state = StateConnected
	c.conn = conn
	c.connID = uuid.NewString()
	c.connectedAt = time.Now()
	c.attempts = 0
	c.lastPong.Store(time.Now().UnixNano())
	c.stats.connects.Inc()
	if c.everConnected {
		c.stats.reconnects.Inc()
	}
	c.everConnected = true

	pending := c.queue.Drain(time.Now())
	ch := make(chan queuedEvent, len(pending)+16)
	c.writeCh = ch
	loopCtx, cancel := context.WithCancel(context.Background())
	c.loopCtx = loopCtx
	c.loopCancel = cancel
	ev := StatusEvent{State: StateConnected, ConnID: c.connID}
	c.mu.Unlock()

	go c.writeLoop(loopCtx, liveGen, conn, ch)
	go c.readLoop(loopCtx, liveGen, conn)
	go c.heartbeatLoop(loopCtx, liveGen, ch)

	// Replay queued events in enqueue order, ahead of anything emitted
	// after Connect returns. The channel is sized to hold them all.
	for _, qe := range pending {
		ch <- qe
	}

	c.logger.Info("connected", map[string]any{"conn_id": ev.ConnID, "replayed": len(pending)})
	c.registry.dispatchStatus(ev)
	return nil
}

func (c *Client) handleConnectError(gen uint64, cause error) error {
	code := ErrorConnection
	if errors.Is(cause, context.DeadlineExceeded) {
		code = ErrorTimeout
	}

	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateConnecting {
		c.mu.Unlock()
		return WrapError(code, "connection attempt aborted", cause)
	}
	c.state = StateError
	c.stats.errors.Inc()
	c.attempts++
	attempt := c.attempts
	ev := StatusEvent{State: StateError, Err: cause}
	if attempt < c.cfg.MaxReconnectAttempts {
		ev.WillReconnect = true
		c.scheduleReconnectLocked(c.backoffDelay(attempt))
	} else {
		ev.Terminal = true
	}
	c.mu.Unlock()

	c.logger.Warn("connect failed", map[string]any{
		"attempt": attempt, "will_reconnect": ev.WillReconnect, "error": cause.Error(),
	})
	c.registry.dispatchStatus(ev)
	if ev.Terminal {
		return WrapError(ErrorReconnectExhausted, "reconnect budget exhausted", cause)
	}
	return WrapError(code, "connect failed", cause)
}

// backoffDelay returns min(base × growth^(attempt−1), cap).
func (c *Client) backoffDelay(attempt int) time.Duration {
	return backoffDelay(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, c.cfg.ReconnectGrowth, attempt)
}

func backoffDelay(base, ceil time.Duration, growth float64, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if growth <= 0 {
		growth = 1
	}
	d := float64(base) * math.Pow(growth, float64(attempt-1))
	if ceil > 0 && d > float64(ceil) {
		return ceil
	}
	return time.Duration(d)
}

// scheduleReconnectLocked arms the reconnect timer. Caller holds c.mu.
// Any previously scheduled attempt is superseded.
func (c *Client) scheduleReconnectLocked(delay time.Duration) {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Debug("scheduled reconnect attempt failed", map[string]any{"error": err.Error()})
		}
	})
}

// dropConnection handles an involuntary loss of the live transport for
// generation gen. Stale generations are ignored so a superseded loop
// cannot tear down its successor.
func (c *Client) dropConnection(gen uint64, reason string, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	conn := c.conn
	cancel := c.loopCancel
	ch := c.writeCh
	c.conn = nil
	c.writeCh = nil
	c.loopCtx = nil
	c.loopCancel = nil
	c.state = StateDisconnected
	c.stats.disconnects.Inc()

	ev := StatusEvent{
		State:  StateDisconnected,
		Reason: reason,
		ConnID: c.connID,
		Uptime: time.Since(c.connectedAt).Milliseconds(),
		Err:    cause,
	}
	if reconnectableReason(reason) && c.attempts < c.cfg.MaxReconnectAttempts {
		ev.WillReconnect = true
		delay := c.cfg.TransportRetryDelay
		if reason == ReasonHeartbeatTimeout || reason == ReasonServerShutdown {
			delay = c.backoffDelay(c.attempts + 1)
		}
		c.scheduleReconnectLocked(delay)
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.CloseNow()
	}
	c.requeueStranded(ch)
	c.logger.Warn("disconnected", map[string]any{
		"reason": reason, "will_reconnect": ev.WillReconnect, "uptime_ms": ev.Uptime,
	})
	c.registry.dispatchStatus(ev)
}

// disconnectInternal is the voluntary teardown path shared by
// Disconnect, Reconnect and Cleanup.
func (c *Client) disconnectInternal(reason string, clearQueue bool) {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	cancel := c.loopCancel
	ch := c.writeCh
	wasConnected := c.state == StateConnected
	c.conn = nil
	c.writeCh = nil
	c.loopCtx = nil
	c.loopCancel = nil
	c.gen++
	c.state = StateDisconnected

	var ev *StatusEvent
	if wasConnected {
		c.stats.disconnects.Inc()
		ev = &StatusEvent{
			State:  StateDisconnected,
			Reason: reason,
			ConnID: c.connID,
			Uptime: time.Since(c.connectedAt).Milliseconds(),
		}
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, reason)
	}
	if clearQueue {
		failStranded(ch)
		c.queue.Clear()
	} else {
		c.requeueStranded(ch)
	}
	if ev != nil {
		c.registry.dispatchStatus(*ev)
	}
}

// requeueStranded moves events still buffered in a dead connection's
// write channel back into the pending queue for replay after the next
// connect, preserving the exactly-once ack guarantee. Heartbeat pings
// are discarded; they carry no ack and are meaningless after a drop.
func (c *Client) requeueStranded(ch <-chan queuedEvent) {
	if ch == nil {
		return
	}
	for {
		select {
		case qe := <-ch:
			if qe.Event == eventPing {
				continue
			}
			c.stats.queuedEvents.Inc()
			if c.queue.Push(qe) {
				c.stats.droppedEvents.Inc()
			}
		default:
			return
		}
	}
}

// failStranded fails the acks of events left in the write channel when
// the client shuts the connection down voluntarily.
func failStranded(ch <-chan queuedEvent) {
	if ch == nil {
		return
	}
	for {
		select {
		case qe := <-ch:
			if qe.Ack != nil {
				qe.Ack(NewError(ErrorConnection, "connection closed before write"))
			}
		default:
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, gen uint64, conn *internal.Conn) {
	for {
		var f frame
		if err := conn.Read(ctx, &f); err != nil {
			if ctx.Err() != nil {
				return
			}
			reason := ReasonTransportError
			switch {
			case errors.Is(err, io.EOF):
				reason = ReasonTransportClosed
			default:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					reason = ReasonServerShutdown
				}
			}
			c.dropConnection(gen, reason, err)
			return
		}
		c.handleFrame(f)
	}
}

func (c *Client) handleFrame(f frame) {
	switch f.Event {
	case eventPong:
		var pong PongPayload
		if err := UnmarshalData(f.Data, &pong); err == nil && pong.Timestamp > 0 {
			rtt := time.Since(time.UnixMilli(pong.Timestamp))
			if rtt > 0 {
				c.stats.recordLatency(rtt)
			}
		}
		c.lastPong.Store(time.Now().UnixNano())
	case EventConnected:
		c.logger.Debug("server acknowledged connection", nil)
		c.registry.dispatch(f.Event, f.Data)
	default:
		c.registry.dispatch(f.Event, f.Data)
	}
}

func (c *Client) writeLoop(ctx context.Context, gen uint64, conn *internal.Conn, ch <-chan queuedEvent) {
	for {
		select {
		case ev := <-ch:
			err := conn.Write(ctx, outFrame{Event: ev.Event, Data: ev.Data})
			if ev.Ack != nil {
				if err != nil {
					ev.Ack(WrapError(ErrorConnection, "write failed", err))
				} else {
					ev.Ack(nil)
				}
			}
			if err != nil {
				if ctx.Err() == nil {
					c.dropConnection(gen, ReasonTransportError, err)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// heartbeatLoop emits a ping each interval and force-disconnects when
// the pong silence exceeds the configured timeout, so a half-open
// connection fails fast instead of hanging.
func (c *Client) heartbeatLoop(ctx context.Context, gen uint64, ch chan<- queuedEvent) {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if c.cfg.HeartbeatTimeout > 0 {
				silence := time.Since(time.Unix(0, c.lastPong.Load()))
				if silence > c.cfg.HeartbeatTimeout {
					c.dropConnection(gen, ReasonHeartbeatTimeout, nil)
					return
				}
			}
			ping := queuedEvent{
				Event:      eventPing,
				Data:       PingPayload{Timestamp: time.Now().UnixMilli()},
				EnqueuedAt: time.Now(),
			}
			select {
			case ch <- ping:
			default:
				// Write backlog; skip this beat rather than block.
			}
		case <-ctx.Done():
			return
		}
	}
}
