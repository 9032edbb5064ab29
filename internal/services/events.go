package services

import (
	"time"

	"gymbro/internal/logger"
)

// Routing keys of the domain events published by the services.
const (
	EventUsernameAssigned = "username.assigned"
	EventUsernameRenamed  = "username.renamed"
	EventMatchRequested   = "match.requested"
	EventMatchAccepted    = "match.accepted"
)

// EventPublisher delivers domain events to other consumers. The RabbitMQ
// client satisfies it.
type EventPublisher interface {
	PublishEvent(routingKey string, payload any) error
}

// UsernameEvent is the payload of username.assigned and username.renamed.
type UsernameEvent struct {
	Owner     string    `json:"owner"`
	Username  string    `json:"username"`
	Previous  string    `json:"previous,omitempty"`
	WasRandom bool      `json:"wasRandom,omitempty"`
	Reserved  bool      `json:"reserved"`
	At        time.Time `json:"at"`
}

// MatchEvent is the payload of match.requested and match.accepted.
type MatchEvent struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// publish is best effort: a broker outage must never fail the operation
// that produced the event.
func publish(pub EventPublisher, log *logger.Logger, routingKey string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.PublishEvent(routingKey, payload); err != nil {
		log.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}
