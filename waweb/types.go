package waweb

import "encoding/json"

// frame is the wire envelope in both directions: a JSON object with an
// event name and an event-specific payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outFrame is the client-to-server envelope before encoding.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// UnmarshalData decodes an event payload into target.
func UnmarshalData(data json.RawMessage, v any) error {
	return json.Unmarshal(data, v)
}
