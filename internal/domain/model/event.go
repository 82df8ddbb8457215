package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType defines the kinds of tunnel lifecycle events
type EventType string

const (
	// EventTypeState reports a tunnel state transition
	EventTypeState EventType = "state"
	// EventTypeReady carries the public URL once detected
	EventTypeReady EventType = "ready"
	// EventTypeOutput carries one line of daemon output
	EventTypeOutput EventType = "output"
	// EventTypeProvisioned reports the resolved cloudflared binary
	EventTypeProvisioned EventType = "provisioned"
)

// EventVersion is the event envelope format version
const EventVersion = "1.0.0"

// Event is the envelope published to event stream subscribers
type Event struct {
	// Type is the event type
	Type EventType `json:"type"`
	// Version is the envelope version
	Version string `json:"version"`
	// TunnelID identifies the handle that produced the event
	TunnelID string `json:"tunnel_id"`
	// Timestamp is when the event was created (milliseconds since epoch)
	Timestamp int64 `json:"timestamp"`
	// Payload contains the type specific data
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent creates an event with the given type and payload
func NewEvent(eventType EventType, tunnelID string, payload interface{}) (*Event, error) {
	var payloadJSON json.RawMessage
	if payload != nil {
		var err error
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
		}
	}

	return &Event{
		Type:      eventType,
		Version:   EventVersion,
		TunnelID:  tunnelID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payloadJSON,
	}, nil
}

// ParsePayload decodes the payload into v
func (e *Event) ParsePayload(v interface{}) error {
	if e.Payload == nil {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// StatePayload is the payload of EventTypeState
type StatePayload struct {
	State TunnelState `json:"state"`
	Error string      `json:"error,omitempty"`
}

// ReadyPayload is the payload of EventTypeReady
type ReadyPayload struct {
	URL      string `json:"url"`
	LocalURL string `json:"local_url"`
	PID      int    `json:"pid"`
}

// OutputPayload is the payload of EventTypeOutput
type OutputPayload struct {
	Line string `json:"line"`
}

// ProvisionedPayload is the payload of EventTypeProvisioned
type ProvisionedPayload struct {
	Path     string       `json:"path"`
	Version  string       `json:"version"`
	Platform string       `json:"platform"`
	Source   BinarySource `json:"source"`
}
