package port

import "github.com/flaredantic/flaredantic-go/internal/domain/model"

// EventPublisher receives tunnel lifecycle events
type EventPublisher interface {
	// Publish delivers an event. It must not block on slow consumers.
	Publish(event *model.Event)
}
