package domain

import (
	"strconv"
	"strings"
	"time"
)

// MaturityState is the ordinal progressive-disclosure tier of a user.
// Automatic recalculation only ever raises it; OperatorPro is granted
// manually and never reached by recalculation.
type MaturityState int

const (
	MaturityFirstTime MaturityState = iota
	MaturityActive
	MaturityRewarded
	MaturityPowerUser
	MaturityOperatorPro
)

// String returns the wire name of the state.
func (s MaturityState) String() string {
	switch s {
	case MaturityFirstTime:
		return "FIRST_TIME"
	case MaturityActive:
		return "ACTIVE"
	case MaturityRewarded:
		return "REWARDED"
	case MaturityPowerUser:
		return "POWER_USER"
	case MaturityOperatorPro:
		return "OPERATOR_PRO"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the value is inside the 0-4 ladder.
func (s MaturityState) Valid() bool {
	return s >= MaturityFirstTime && s <= MaturityOperatorPro
}

// Promotion trigger reasons recorded on transition rows.
const (
	ReasonReached500Points        = "reached_500_points"
	ReasonPurchasedFirstKey       = "purchased_first_key"
	ReasonEarnedFirstGems         = "earned_first_gems"
	ReasonEarned5Gems             = "earned_5_gems"
	ReasonCompleted3Drops         = "completed_3_drops"
	ReasonSubscribed              = "subscribed"
	ReasonAccessedAdvancedFeature = "accessed_advanced_feature"
	ReasonManualOperatorPro       = "manual_operator_pro_approval"
	ReasonManualOverride          = "manual_override"
)

// Promotion thresholds consulted by recalculation.
const (
	ActivePointsThreshold  = 500
	PowerUserGemsThreshold = 5
	PowerUserDropThreshold = 3
)

// MaturitySnapshot is the derived read view of a user's progression.
type MaturitySnapshot struct {
	UserID               string        `json:"user_id"`
	State                MaturityState `json:"maturity_state"`
	VerifiedActionsCount int           `json:"verified_actions_count"`
	FirstRewardAt        *time.Time    `json:"first_reward_received_at"`
	LastUsedSurface      *string       `json:"last_used_surface"`
	UserType             string        `json:"user_type"`
	PointsBalance        int64         `json:"points_balance"`
	KeysBalance          int64         `json:"keys_balance"`
	GemsBalance          int64         `json:"gems_balance"`
}

// DefaultSnapshot is the safe fallback for anonymous callers or load
// failures: a first-time view with zeroed fields.
func DefaultSnapshot(userID string) MaturitySnapshot {
	return MaturitySnapshot{
		UserID: userID,
		State:  MaturityFirstTime,
	}
}

// MaturityTransition is an immutable audit record of one state change.
type MaturityTransition struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	FromState MaturityState  `json:"from_state"`
	ToState   MaturityState  `json:"to_state"`
	Reason    string         `json:"trigger_reason"`
	Metadata  map[string]any `json:"trigger_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// demoIDPrefix marks scripted demo accounts. Their state is encoded in
// the id itself and nothing about them is ever persisted.
const demoIDPrefix = "a0000000"

// IsDemoUserID reports whether the id belongs to a scripted demo account.
func IsDemoUserID(userID string) bool {
	return strings.HasPrefix(userID, demoIDPrefix)
}

// DemoStateFromID derives the maturity state from the trailing numeric
// segment of a demo id (e.g. "...-000000000003" => POWER_USER).
// Out-of-range or unparseable segments fall back to FIRST_TIME.
func DemoStateFromID(userID string) MaturityState {
	idx := strings.LastIndex(userID, "-")
	if idx < 0 {
		return MaturityFirstTime
	}
	segment := strings.TrimLeft(userID[idx+1:], "0")
	if segment == "" {
		// all-zero trailing segment encodes state 0
		return MaturityFirstTime
	}
	n, err := strconv.Atoi(segment)
	if err != nil {
		return MaturityFirstTime
	}
	state := MaturityState(n)
	if !state.Valid() {
		return MaturityFirstTime
	}
	return state
}

// DemoSnapshot builds the synthetic read view for a demo account.
func DemoSnapshot(userID string) MaturitySnapshot {
	snap := DefaultSnapshot(userID)
	snap.State = DemoStateFromID(userID)
	snap.UserType = "demo"
	return snap
}
