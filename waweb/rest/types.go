package rest

import "time"

// Conversation is one chat thread, keyed by the WhatsApp account id of
// the peer.
type Conversation struct {
	WaID          string    `json:"wa_id"`
	Name          string    `json:"name"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	UnreadCount   int       `json:"unread_count"`
}

// Message is a single message within a conversation.
type Message struct {
	ID        string    `json:"_id"`
	WaID      string    `json:"wa_id"`
	From      string    `json:"from"`
	Body      string    `json:"body"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status,omitempty"` // sent | delivered | read
	Timestamp time.Time `json:"timestamp"`
}

// Pagination describes one page of a paginated listing.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

// MessagesResponse is one page of conversation history.
type MessagesResponse struct {
	Messages   []Message  `json:"messages"`
	Pagination Pagination `json:"pagination"`
}

// SendMessageRequest is the body for posting a new outgoing message.
type SendMessageRequest struct {
	Body string `json:"body"`
	Type string `json:"type,omitempty"`
}

// SearchResponse is the result of a message search.
type SearchResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

// ConversationStats summarizes one conversation.
type ConversationStats struct {
	WaID           string    `json:"wa_id"`
	MessageCount   int       `json:"message_count"`
	UnreadCount    int       `json:"unread_count"`
	FirstMessageAt time.Time `json:"first_message_at,omitempty"`
	LastMessageAt  time.Time `json:"last_message_at,omitempty"`
}

// ProcessFileResponse reports the outcome of an uploaded payload file.
type ProcessFileResponse struct {
	Status        string `json:"status"`
	Processed     int    `json:"processed"`
	Conversations int    `json:"conversations,omitempty"`
}

// HealthStatus is the backend liveness report.
type HealthStatus struct {
	Status string `json:"status"`
}

// ErrorResponse is the backend's error body shape.
type ErrorResponse struct {
	Error string `json:"error"`
}
