package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaturityStateNames(t *testing.T) {
	assert.Equal(t, "FIRST_TIME", MaturityFirstTime.String())
	assert.Equal(t, "ACTIVE", MaturityActive.String())
	assert.Equal(t, "REWARDED", MaturityRewarded.String())
	assert.Equal(t, "POWER_USER", MaturityPowerUser.String())
	assert.Equal(t, "OPERATOR_PRO", MaturityOperatorPro.String())
	assert.Equal(t, "UNKNOWN", MaturityState(9).String())
}

func TestMaturityStateValid(t *testing.T) {
	assert.True(t, MaturityFirstTime.Valid())
	assert.True(t, MaturityOperatorPro.Valid())
	assert.False(t, MaturityState(-1).Valid())
	assert.False(t, MaturityState(5).Valid())
}

func TestDemoUserIDDetection(t *testing.T) {
	assert.True(t, IsDemoUserID("a0000000-0000-0000-0000-000000000003"))
	assert.False(t, IsDemoUserID("b0000000-0000-0000-0000-000000000003"))
	assert.False(t, IsDemoUserID(""))
}

func TestDemoStateFromID(t *testing.T) {
	cases := map[string]MaturityState{
		"a0000000-0000-0000-0000-000000000000": MaturityFirstTime,
		"a0000000-0000-0000-0000-000000000001": MaturityActive,
		"a0000000-0000-0000-0000-000000000002": MaturityRewarded,
		"a0000000-0000-0000-0000-000000000003": MaturityPowerUser,
		"a0000000-0000-0000-0000-000000000004": MaturityOperatorPro,
		// out of range and malformed segments fall back to FIRST_TIME
		"a0000000-0000-0000-0000-000000000009": MaturityFirstTime,
		"a0000000-garbage":                     MaturityFirstTime,
		"a0000000":                             MaturityFirstTime,
	}
	for id, want := range cases {
		assert.Equal(t, want, DemoStateFromID(id), id)
	}
}

func TestDemoSnapshot(t *testing.T) {
	snap := DemoSnapshot("a0000000-0000-0000-0000-000000000002")
	assert.Equal(t, MaturityRewarded, snap.State)
	assert.Equal(t, "demo", snap.UserType)
	assert.Zero(t, snap.VerifiedActionsCount)
}

func TestActionTypeCountable(t *testing.T) {
	assert.False(t, ActionPageView.Countable())
	assert.True(t, ActionDropCompleted.Countable())
	assert.True(t, ActionShareCompleted.Countable())
}

func TestActionTypeValid(t *testing.T) {
	for _, at := range VerifiedActionTypes {
		assert.True(t, at.Valid(), string(at))
	}
	assert.False(t, VerifiedActionType("bogus").Valid())
}
