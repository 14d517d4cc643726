package dispatch

import (
	"encoding/json"
	"time"
)

// Event is a named domain event published to the queue service for
// asynchronous side effects.
type Event interface {
	EventName() string
}

// Envelope is the wire shape delivered to the events worker endpoint.
type Envelope struct {
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventNameAccountCreated identifies AccountCreatedEvent on the wire.
const EventNameAccountCreated = "AccountCreated"

// AccountCreatedEvent is published after a tenant aggregate was provisioned.
// Downstream side effects (welcome email) hang off this event; provisioning
// never calls them directly.
type AccountCreatedEvent struct {
	AccountID    uint   `json:"account_id"`
	WorkspaceID  uint   `json:"workspace_id"`
	UserID       uint   `json:"user_id"`
	AuthUserID   string `json:"auth_user_id"`
	UserFullName string `json:"user_full_name"`
	UserEmail    string `json:"user_email"`
}

func (AccountCreatedEvent) EventName() string { return EventNameAccountCreated }

// WrapEvent builds the delivery envelope for an event.
func WrapEvent(event Event) (*Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventName: event.EventName(),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}, nil
}
