package domain

import "time"

// VerifiedActionType enumerates the activity events that count toward
// maturity progression.
type VerifiedActionType string

const (
	ActionDealClaimed      VerifiedActionType = "deal_claimed"
	ActionEventRSVP        VerifiedActionType = "event_rsvp"
	ActionPostSubmitted    VerifiedActionType = "post_submitted"
	ActionShareCompleted   VerifiedActionType = "share_completed"
	ActionContentCreated   VerifiedActionType = "content_created"
	ActionDropCompleted    VerifiedActionType = "drop_completed"
	ActionCouponRedeemed   VerifiedActionType = "coupon_redeemed"
	ActionReferralSent     VerifiedActionType = "referral_sent"
	ActionProfileCompleted VerifiedActionType = "profile_completed"
	ActionSocialConnected  VerifiedActionType = "social_connected"
	ActionPageView         VerifiedActionType = "page_view"
)

// VerifiedActionTypes lists every accepted action type, used by the
// API boundary to validate payloads.
var VerifiedActionTypes = []VerifiedActionType{
	ActionDealClaimed,
	ActionEventRSVP,
	ActionPostSubmitted,
	ActionShareCompleted,
	ActionContentCreated,
	ActionDropCompleted,
	ActionCouponRedeemed,
	ActionReferralSent,
	ActionProfileCompleted,
	ActionSocialConnected,
	ActionPageView,
}

// Valid reports whether the type is one of the enumerated set.
func (t VerifiedActionType) Valid() bool {
	for _, known := range VerifiedActionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Countable reports whether the action increments the verified-actions
// counter. Page views are logged but never counted.
func (t VerifiedActionType) Countable() bool {
	return t != ActionPageView
}

// VerifiedAction is an immutable activity event record.
type VerifiedAction struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	ActionType VerifiedActionType `json:"action_type"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
	Surface    string             `json:"surface"`
	VerifiedAt time.Time          `json:"verified_at"`
}
