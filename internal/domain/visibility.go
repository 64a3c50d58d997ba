package domain

// VisibilityLabels carries the terminology pair in effect for the
// current tier. Early wording keeps the surface approachable until the
// user crosses into POWER_USER.
type VisibilityLabels struct {
	Rewards    string `json:"rewards"`
	Activity   string `json:"activity"`
	Deals      string `json:"deals"`
	Verified   string `json:"verified"`
	WeeklyWins string `json:"weeklyWins"`
}

var earlyLabels = VisibilityLabels{
	Rewards:    "Rewards",
	Activity:   "Activity",
	Deals:      "Deals",
	Verified:   "Verified",
	WeeklyWins: "Weekly Wins",
}

var lateLabels = VisibilityLabels{
	Rewards:    "Earnings",
	Activity:   "Transactions",
	Deals:      "Offers",
	Verified:   "Proof of Action",
	WeeklyWins: "Weekly Earnings",
}

// VisibilityRules is the fixed set of UI gating booleans derived from
// a maturity state. Pure data, safe to recompute per request.
type VisibilityRules struct {
	Deals                 bool `json:"deals"`
	Events                bool `json:"events"`
	Post                  bool `json:"post"`
	History               bool `json:"history"`
	SocialShieldExplainer bool `json:"social_shield_explainer"`
	BalanceMinimal        bool `json:"balance_minimal"`
	PromoshareExplainer   bool `json:"promoshare_explainer"`
	BalanceFull           bool `json:"balance_full"`
	WalletFull            bool `json:"wallet_full"`
	GrowthHub             bool `json:"growth_hub"`
	Forecasts             bool `json:"forecasts"`
	Staking               bool `json:"staking"`
	Matrix                bool `json:"matrix"`
	Referrals             bool `json:"referrals"`

	PromoshareBadge   bool `json:"promoshare_badge"`
	SocialShieldBadge bool `json:"social_shield_badge"`

	UseEarlyTerminology bool             `json:"useEarlyTerminology"`
	Labels              VisibilityLabels `json:"labels"`
}

// VisibilityFor returns the UI visibility rules for a state.
func VisibilityFor(state MaturityState) VisibilityRules {
	rules := VisibilityRules{
		Deals:                 state >= MaturityFirstTime,
		Events:                state >= MaturityFirstTime,
		Post:                  state >= MaturityFirstTime,
		History:               state >= MaturityActive,
		SocialShieldExplainer: state >= MaturityActive,
		BalanceMinimal:        state >= MaturityRewarded,
		PromoshareExplainer:   state >= MaturityRewarded,
		BalanceFull:           state >= MaturityPowerUser,
		WalletFull:            state >= MaturityPowerUser,
		GrowthHub:             state >= MaturityPowerUser,
		Forecasts:             state >= MaturityPowerUser,
		Staking:               state >= MaturityPowerUser,
		Matrix:                state >= MaturityPowerUser,
		Referrals:             state >= MaturityPowerUser,
		PromoshareBadge:       true,
		SocialShieldBadge:     true,
		UseEarlyTerminology:   state < MaturityPowerUser,
	}
	if rules.UseEarlyTerminology {
		rules.Labels = earlyLabels
	} else {
		rules.Labels = lateLabels
	}
	return rules
}

// featureGate describes one feature-access table entry.
type featureGate struct {
	minState     MaturityState
	readOnlyTill MaturityState
}

// deniedRedirect is the single fallback path used whenever access is
// denied, regardless of feature or state.
const deniedRedirect = "/deals"

var featureGates = map[string]featureGate{
	"deals":          {minState: MaturityFirstTime},
	"events":         {minState: MaturityFirstTime},
	"post":           {minState: MaturityFirstTime},
	"history":        {minState: MaturityActive},
	"social_shield":  {minState: MaturityActive, readOnlyTill: MaturityRewarded},
	"balance":        {minState: MaturityRewarded},
	"promoshare":     {minState: MaturityRewarded, readOnlyTill: MaturityRewarded},
	"wallet":         {minState: MaturityPowerUser},
	"growth_hub":     {minState: MaturityPowerUser, readOnlyTill: MaturityPowerUser},
	"forecasts":      {minState: MaturityPowerUser},
	"staking":        {minState: MaturityPowerUser},
	"matrix":         {minState: MaturityPowerUser},
	"referrals":      {minState: MaturityPowerUser},
	"operator_tools": {minState: MaturityOperatorPro},
}

// FeatureAccess is the answer to a single feature-gate check.
type FeatureAccess struct {
	Allowed    bool    `json:"allowed"`
	ReadOnly   bool    `json:"readOnly"`
	RedirectTo *string `json:"redirectTo"`
}

// CheckFeatureAccess looks up the fixed feature table. Unknown feature
// names are allowed (fail-open); denial always redirects to the same
// fallback path.
func CheckFeatureAccess(state MaturityState, feature string) FeatureAccess {
	gate, known := featureGates[feature]
	if !known {
		return FeatureAccess{Allowed: true}
	}
	if state < gate.minState {
		redirect := deniedRedirect
		return FeatureAccess{RedirectTo: &redirect}
	}
	return FeatureAccess{
		Allowed:  true,
		ReadOnly: state < gate.readOnlyTill,
	}
}
