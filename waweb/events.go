package waweb

import "time"

// Event names on the realtime channel.
const (
	// Inbound.
	EventMessageNew    = "message:new"
	EventMessageUpdate = "message:update"
	EventConnected     = "connected"
	eventPong          = "pong"

	// Outbound.
	eventPing              = "ping"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
)

// EventStatus is the pseudo-event name used for status subscriptions.
const EventStatus = "connection_status"

// MessageEvent is emitted when a new message arrives in a conversation.
type MessageEvent struct {
	ID        string    `json:"_id"`
	WaID      string    `json:"wa_id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageUpdateEvent signals a delivery-status change for a message.
type MessageUpdateEvent struct {
	ID     string `json:"_id"`
	Status string `json:"status"`
}

// JoinPayload subscribes to or unsubscribes from a conversation.
type JoinPayload struct {
	WaID string `json:"wa_id"`
}

// PingPayload carries the emit timestamp so the pong echo yields an RTT.
type PingPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// PongPayload echoes the ping timestamp.
type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}
