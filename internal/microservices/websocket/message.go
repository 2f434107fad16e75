package websocket

import (
	"encoding/json"
	"fmt"

	"taskhub/internal/microservices/http-api/models"
)

// Event names carried in the "event" field of a frame.
const (
	EventNotification = "notification"
)

// Frame is the envelope of every server-to-client message:
// {"event":"notification","data":{...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewNotificationFrame wraps an enriched notification in a "notification" frame.
func NewNotificationFrame(n models.EnrichedNotification) (*Frame, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal notification %s: %w", n.ID, err)
	}
	return &Frame{Event: EventNotification, Data: data}, nil
}

// ToJSON: marshal Frame to JSON
func (f *Frame) ToJSON() ([]byte, error) {
	return json.Marshal(f)
}

// FrameFromJSON: unmarshal JSON data to Frame
func FrameFromJSON(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Notification decodes the payload of a "notification" frame.
func (f *Frame) Notification() (models.EnrichedNotification, error) {
	var n models.EnrichedNotification
	if f.Event != EventNotification {
		return n, fmt.Errorf("unexpected event %q", f.Event)
	}
	if err := json.Unmarshal(f.Data, &n); err != nil {
		return n, fmt.Errorf("decode notification payload: %w", err)
	}
	return n, nil
}
