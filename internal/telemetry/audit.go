package telemetry

import (
	"context"
	"time"
)

// Publisher is the event sink the emitter writes to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Emitter publishes lifecycle events (message.sent, message.edited,
// account.cleaned) after the corresponding transaction committed. Events are
// advisory; a failed publish never fails the request.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
}

// Envelope is the wire format for emitted events.
type Envelope struct {
	SchemaVersion int    `json:"schema_version"`
	EventType     string `json:"event_type"`
	OccurredAt    string `json:"occurred_at"`
	Service       string `json:"service"`
	Environment   string `json:"environment"`
	RequestID     string `json:"request_id,omitempty"`
	Payload       any    `json:"payload,omitempty"`
}

// NewEmitter constructs an Emitter.
func NewEmitter(publisher Publisher, service, environment string) *Emitter {
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one event; the event type doubles as the routing key.
func (e *Emitter) Emit(ctx context.Context, eventType, requestID string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload:       payload,
	}

	_ = e.publisher.Publish(ctx, eventType, envelope)
}
