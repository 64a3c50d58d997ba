package events

import (
	"time"

	"github.com/promorang/maturity-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventActionRecorded       EventType = "action_recorded"
	EventMaturityStateChanged EventType = "maturity_state_changed"
	EventFirstRewardReceived  EventType = "first_reward_received"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ActionRecordedPayload payload.
type ActionRecordedPayload struct {
	ActionID   string                    `json:"action_id"`
	ActionType domain.VerifiedActionType `json:"action_type"`
	Surface    string                    `json:"surface"`
}

// MaturityStateChangedPayload payload.
type MaturityStateChangedPayload struct {
	FromState domain.MaturityState `json:"from_state"`
	ToState   domain.MaturityState `json:"to_state"`
	Reason    string               `json:"trigger_reason"`
}

// FirstRewardReceivedPayload payload.
type FirstRewardReceivedPayload struct {
	ReceivedAt time.Time `json:"received_at"`
}
