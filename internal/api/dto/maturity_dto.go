package dto

import (
	"time"

	"github.com/promorang/maturity-service/internal/domain"
)

// RecordActionRequest payload for POST /action.
type RecordActionRequest struct {
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	Metadata   map[string]any `json:"metadata"`
	Surface    string         `json:"surface"`
}

// RecalculateRequest payload for POST /recalculate.
type RecalculateRequest struct {
	UserID                  string `json:"user_id"`
	HasSubscription         bool   `json:"has_subscription"`
	AccessedAdvancedFeature bool   `json:"accessed_advanced_feature"`
}

// RewardReceivedRequest payload for POST /reward-received.
type RewardReceivedRequest struct {
	UserID string `json:"user_id"`
}

// OverrideRequest payload for POST /override.
type OverrideRequest struct {
	UserID string `json:"user_id"`
	State  int    `json:"state"`
}

// SetOperatorProRequest payload for POST /admin/set-operator-pro.
type SetOperatorProRequest struct {
	UserID string `json:"user_id"`
}

// StateResponse bundles the snapshot with its derived visibility rules.
type StateResponse struct {
	Snapshot   domain.MaturitySnapshot `json:"snapshot"`
	StateName  string                  `json:"state_name"`
	Visibility domain.VisibilityRules  `json:"visibility"`
}

// ActionResponse echoes a recorded action.
type ActionResponse struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ActionType string         `json:"action_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Surface    string         `json:"surface"`
	VerifiedAt time.Time      `json:"verified_at"`
}

// TransitionResponse is one audit-trail row.
type TransitionResponse struct {
	ID        string         `json:"id"`
	FromState int            `json:"from_state"`
	ToState   int            `json:"to_state"`
	Reason    string         `json:"trigger_reason"`
	Metadata  map[string]any `json:"trigger_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
