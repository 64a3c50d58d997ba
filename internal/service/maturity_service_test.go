package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promorang/maturity-service/internal/domain"
	"github.com/promorang/maturity-service/internal/events"
	"github.com/promorang/maturity-service/internal/observability"
	"github.com/promorang/maturity-service/internal/repository"
)

var errStore = errors.New("store unavailable")

type fakeUserRepo struct {
	users map[string]*domain.User

	failGet   bool
	failApply bool
	staleCAS  bool

	getCalls       int
	applyCalls     int
	incrementCalls int
	surfaceCalls   int
	rewardWrites   int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = uuid.NewString()
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.getCalls++
	if f.failGet {
		return nil, errStore
	}
	user, ok := f.users[id]
	if !ok {
		return nil, errStore
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errStore
}

func (f *fakeUserRepo) UpdateMaturityState(_ context.Context, userID string, from, to domain.MaturityState) error {
	if f.staleCAS {
		return repository.ErrStaleState
	}
	user, ok := f.users[userID]
	if !ok {
		return errStore
	}
	if user.MaturityState != from {
		return repository.ErrStaleState
	}
	user.MaturityState = to
	return nil
}

func (f *fakeUserRepo) SetMaturityState(_ context.Context, userID string, state domain.MaturityState) error {
	user, ok := f.users[userID]
	if !ok {
		return errStore
	}
	user.MaturityState = state
	return nil
}

func (f *fakeUserRepo) ApplyVerifiedAction(_ context.Context, userID, surface string, countable bool) error {
	f.applyCalls++
	if f.failApply {
		return errStore
	}
	user, ok := f.users[userID]
	if !ok {
		return errStore
	}
	if countable {
		user.VerifiedActionsCount++
	}
	user.LastUsedSurface = &surface
	return nil
}

func (f *fakeUserRepo) IncrementVerifiedActions(_ context.Context, userID string) error {
	f.incrementCalls++
	if user, ok := f.users[userID]; ok {
		user.VerifiedActionsCount++
	}
	return nil
}

func (f *fakeUserRepo) SetLastUsedSurface(_ context.Context, userID, surface string) error {
	f.surfaceCalls++
	if user, ok := f.users[userID]; ok {
		user.LastUsedSurface = &surface
	}
	return nil
}

func (f *fakeUserRepo) SetFirstRewardReceived(_ context.Context, userID string) (bool, error) {
	user, ok := f.users[userID]
	if !ok {
		return false, errStore
	}
	if user.FirstRewardAt != nil {
		return false, nil
	}
	now := time.Now()
	user.FirstRewardAt = &now
	f.rewardWrites++
	return true, nil
}

func (f *fakeUserRepo) ListActiveSince(_ context.Context, _ time.Time, _ int) ([]string, error) {
	var ids []string
	for id := range f.users {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeActionRepo struct {
	actions    []domain.VerifiedAction
	failCreate bool
	failCount  bool
}

func (f *fakeActionRepo) Create(_ context.Context, action *domain.VerifiedAction) error {
	if f.failCreate {
		return errStore
	}
	action.ID = uuid.NewString()
	action.VerifiedAt = time.Now()
	f.actions = append(f.actions, *action)
	return nil
}

func (f *fakeActionRepo) CountByUserAndType(_ context.Context, userID string, actionType domain.VerifiedActionType) (int, error) {
	if f.failCount {
		return 0, errStore
	}
	count := 0
	for _, a := range f.actions {
		if a.UserID == userID && a.ActionType == actionType {
			count++
		}
	}
	return count, nil
}

func (f *fakeActionRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.VerifiedAction, error) {
	var result []domain.VerifiedAction
	for _, a := range f.actions {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

type fakeTransitionRepo struct {
	transitions []domain.MaturityTransition
	failCreate  bool
}

func (f *fakeTransitionRepo) Create(_ context.Context, transition *domain.MaturityTransition) error {
	if f.failCreate {
		return errStore
	}
	transition.ID = uuid.NewString()
	transition.CreatedAt = time.Now()
	f.transitions = append(f.transitions, *transition)
	return nil
}

func (f *fakeTransitionRepo) ListByUser(_ context.Context, userID string) ([]domain.MaturityTransition, error) {
	var result []domain.MaturityTransition
	for _, tr := range f.transitions {
		if tr.UserID == userID {
			result = append(result, tr)
		}
	}
	return result, nil
}

type harness struct {
	users       *fakeUserRepo
	actions     *fakeActionRepo
	transitions *fakeTransitionRepo
	svc         *MaturityService
}

func newHarness(users ...*domain.User) *harness {
	h := &harness{
		users:       newFakeUserRepo(users...),
		actions:     &fakeActionRepo{},
		transitions: &fakeTransitionRepo{},
	}
	h.svc = NewMaturityService(MaturityDependencies{
		UserRepo:       h.users,
		ActionRepo:     h.actions,
		TransitionRepo: h.transitions,
		Dispatcher:     events.NewInMemoryDispatcher(),
		Metrics:        observability.NewMetrics(),
		Logger:         zap.NewNop(),
	})
	return h
}

func testUser(state domain.MaturityState) *domain.User {
	return &domain.User{
		ID:            uuid.NewString(),
		Email:         "creator@promorang.test",
		MaturityState: state,
		UserType:      "creator",
	}
}

func TestRecalculatePromotesOnPoints(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.PointsBalance = 500
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.True(t, result.Changed)
	assert.Equal(t, domain.MaturityActive, result.State)
	assert.Equal(t, domain.ReasonReached500Points, result.Reason)
	require.Len(t, h.transitions.transitions, 1)
	assert.Equal(t, domain.MaturityFirstTime, h.transitions.transitions[0].FromState)
	assert.Equal(t, domain.MaturityActive, h.transitions.transitions[0].ToState)
}

func TestRecalculatePromotesOnFirstKey(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.KeysBalance = 1
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.True(t, result.Changed)
	assert.Equal(t, domain.ReasonPurchasedFirstKey, result.Reason)
}

func TestRecalculatePointsTakePriorityOverKeys(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.PointsBalance = 600
	user.KeysBalance = 3
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.Equal(t, domain.ReasonReached500Points, result.Reason)
}

func TestRecalculateNoSkipAhead(t *testing.T) {
	// A first-time user with 10 gems does not jump: the REWARDED branch
	// is only evaluated once the user is already ACTIVE.
	user := testUser(domain.MaturityFirstTime)
	user.GemsBalance = 10
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.False(t, result.Changed)
	assert.Equal(t, domain.MaturityFirstTime, result.State)
	assert.Empty(t, h.transitions.transitions)
}

func TestRecalculateActiveToRewarded(t *testing.T) {
	user := testUser(domain.MaturityActive)
	user.GemsBalance = 1
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.True(t, result.Changed)
	assert.Equal(t, domain.MaturityRewarded, result.State)
	assert.Equal(t, domain.ReasonEarnedFirstGems, result.Reason)
}

func TestRecalculateActiveToRewardedViaFirstReward(t *testing.T) {
	user := testUser(domain.MaturityActive)
	now := time.Now()
	user.FirstRewardAt = &now
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.True(t, result.Changed)
	assert.Equal(t, domain.ReasonEarnedFirstGems, result.Reason)
}

func TestRecalculateRewardedToPowerUserReasons(t *testing.T) {
	t.Run("gems threshold", func(t *testing.T) {
		user := testUser(domain.MaturityRewarded)
		user.GemsBalance = 5
		h := newHarness(user)

		result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})
		assert.Equal(t, domain.ReasonEarned5Gems, result.Reason)
	})

	t.Run("drop completions", func(t *testing.T) {
		user := testUser(domain.MaturityRewarded)
		h := newHarness(user)
		for i := 0; i < 3; i++ {
			h.actions.actions = append(h.actions.actions, domain.VerifiedAction{
				UserID: user.ID, ActionType: domain.ActionDropCompleted,
			})
		}

		result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})
		assert.Equal(t, domain.ReasonCompleted3Drops, result.Reason)
	})

	t.Run("subscription", func(t *testing.T) {
		user := testUser(domain.MaturityRewarded)
		h := newHarness(user)

		result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{HasSubscription: true})
		assert.Equal(t, domain.ReasonSubscribed, result.Reason)
	})

	t.Run("advanced feature", func(t *testing.T) {
		user := testUser(domain.MaturityRewarded)
		h := newHarness(user)

		result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{AccessedAdvancedFeature: true})
		assert.Equal(t, domain.ReasonAccessedAdvancedFeature, result.Reason)
	})
}

func TestRecalculateTriggerReasonLastMatchWins(t *testing.T) {
	// gems, drops and subscription all qualify; the subscription check
	// runs later so its reason wins. Advanced-feature access wins over
	// everything.
	user := testUser(domain.MaturityRewarded)
	user.GemsBalance = 9
	h := newHarness(user)
	for i := 0; i < 4; i++ {
		h.actions.actions = append(h.actions.actions, domain.VerifiedAction{
			UserID: user.ID, ActionType: domain.ActionDropCompleted,
		})
	}

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{HasSubscription: true})
	assert.Equal(t, domain.ReasonSubscribed, result.Reason)
	assert.Equal(t, domain.MaturityPowerUser, result.State)

	user2 := testUser(domain.MaturityRewarded)
	user2.GemsBalance = 9
	h2 := newHarness(user2)
	result2 := h2.svc.Recalculate(context.Background(), user2.ID, RecalcOptions{
		HasSubscription:         true,
		AccessedAdvancedFeature: true,
	})
	assert.Equal(t, domain.ReasonAccessedAdvancedFeature, result2.Reason)
}

func TestRecalculateNeverPromotesPastPowerUser(t *testing.T) {
	user := testUser(domain.MaturityPowerUser)
	user.PointsBalance = 10000
	user.GemsBalance = 100
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{HasSubscription: true})

	assert.False(t, result.Changed)
	assert.Equal(t, domain.MaturityPowerUser, result.State)
	assert.Empty(t, h.transitions.transitions)
}

func TestRecalculateMonotonic(t *testing.T) {
	// Balances can drop back below a threshold after promotion; the
	// state must never come back down automatically.
	user := testUser(domain.MaturityRewarded)
	h := newHarness(user)

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.False(t, result.Changed)
	assert.Equal(t, domain.MaturityRewarded, result.State)
	assert.Equal(t, domain.MaturityRewarded, h.users.users[user.ID].MaturityState)
}

func TestRecalculateLoadFailure(t *testing.T) {
	h := newHarness()
	h.users.failGet = true

	result := h.svc.Recalculate(context.Background(), "missing-user", RecalcOptions{})

	assert.False(t, result.Changed)
	assert.Equal(t, domain.MaturityFirstTime, result.State)
}

func TestRecalculateLostRaceIsNoChange(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.PointsBalance = 900
	h := newHarness(user)
	h.users.staleCAS = true

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.False(t, result.Changed)
	assert.Empty(t, h.transitions.transitions)
}

func TestRecalculateDropCountFailureTreatedAsZero(t *testing.T) {
	user := testUser(domain.MaturityRewarded)
	h := newHarness(user)
	h.actions.failCount = true

	result := h.svc.Recalculate(context.Background(), user.ID, RecalcOptions{})

	assert.False(t, result.Changed)
}

func TestRecordVerifiedAction(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)

	action := h.svc.RecordVerifiedAction(context.Background(), user.ID, domain.ActionShareCompleted, map[string]any{"post_id": "p1"}, "feed")

	require.NotNil(t, action)
	assert.NotEmpty(t, action.ID)
	assert.Equal(t, 1, h.users.users[user.ID].VerifiedActionsCount)
	require.NotNil(t, h.users.users[user.ID].LastUsedSurface)
	assert.Equal(t, "feed", *h.users.users[user.ID].LastUsedSurface)
}

func TestRecordVerifiedActionPageViewNotCounted(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)

	action := h.svc.RecordVerifiedAction(context.Background(), user.ID, domain.ActionPageView, nil, "home")

	require.NotNil(t, action)
	assert.Equal(t, 0, h.users.users[user.ID].VerifiedActionsCount)
	require.NotNil(t, h.users.users[user.ID].LastUsedSurface)
	assert.Equal(t, "home", *h.users.users[user.ID].LastUsedSurface)
}

func TestRecordVerifiedActionMissingUserID(t *testing.T) {
	h := newHarness()

	action := h.svc.RecordVerifiedAction(context.Background(), "", domain.ActionDealClaimed, nil, "deals")

	assert.Nil(t, action)
	assert.Empty(t, h.actions.actions)
}

func TestRecordVerifiedActionInsertFailure(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)
	h.actions.failCreate = true

	action := h.svc.RecordVerifiedAction(context.Background(), user.ID, domain.ActionDealClaimed, nil, "deals")

	assert.Nil(t, action)
}

func TestRecordVerifiedActionFallbackIncrement(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)
	h.users.failApply = true

	action := h.svc.RecordVerifiedAction(context.Background(), user.ID, domain.ActionDealClaimed, nil, "deals")

	require.NotNil(t, action)
	assert.Equal(t, 1, h.users.applyCalls)
	assert.Equal(t, 1, h.users.incrementCalls)
	assert.Equal(t, 1, h.users.surfaceCalls)
}

func TestRecordVerifiedActionTriggersRecalculation(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.PointsBalance = 750
	h := newHarness(user)

	h.svc.RecordVerifiedAction(context.Background(), user.ID, domain.ActionDealClaimed, nil, "deals")

	assert.Equal(t, domain.MaturityActive, h.users.users[user.ID].MaturityState)
	require.Len(t, h.transitions.transitions, 1)
}

func TestRecordVerifiedActionDemoUserNoWrites(t *testing.T) {
	h := newHarness()
	demoID := "a0000000-0000-0000-0000-000000000002"

	action := h.svc.RecordVerifiedAction(context.Background(), demoID, domain.ActionDealClaimed, nil, "deals")

	require.NotNil(t, action)
	assert.Equal(t, demoID, action.UserID)
	assert.Empty(t, h.actions.actions)
	assert.Zero(t, h.users.getCalls)
}

func TestGetMaturityDataDefaultsOnFailure(t *testing.T) {
	h := newHarness()
	h.users.failGet = true

	snap := h.svc.GetMaturityData(context.Background(), "someone")

	assert.Equal(t, domain.MaturityFirstTime, snap.State)
	assert.Zero(t, snap.VerifiedActionsCount)
}

func TestGetMaturityDataAnonymous(t *testing.T) {
	h := newHarness()

	snap := h.svc.GetMaturityData(context.Background(), "")

	assert.Equal(t, domain.MaturityFirstTime, snap.State)
	assert.Zero(t, h.users.getCalls)
}

func TestGetMaturityDataDemoShortcut(t *testing.T) {
	h := newHarness()

	snap := h.svc.GetMaturityData(context.Background(), "a0000000-0000-0000-0000-000000000003")

	assert.Equal(t, domain.MaturityPowerUser, snap.State)
	assert.Zero(t, h.users.getCalls, "demo accounts must not hit persistence")
}

func TestMarkFirstRewardReceivedIdempotent(t *testing.T) {
	user := testUser(domain.MaturityActive)
	h := newHarness(user)

	require.True(t, h.svc.MarkFirstRewardReceived(context.Background(), user.ID))
	first := h.users.users[user.ID].FirstRewardAt
	require.NotNil(t, first)

	require.True(t, h.svc.MarkFirstRewardReceived(context.Background(), user.ID))
	assert.Equal(t, first, h.users.users[user.ID].FirstRewardAt)
	assert.Equal(t, 1, h.users.rewardWrites)
}

func TestMarkFirstRewardReceivedPromotes(t *testing.T) {
	user := testUser(domain.MaturityActive)
	h := newHarness(user)

	require.True(t, h.svc.MarkFirstRewardReceived(context.Background(), user.ID))

	assert.Equal(t, domain.MaturityRewarded, h.users.users[user.ID].MaturityState)
}

func TestMarkFirstRewardReceivedMissingUser(t *testing.T) {
	h := newHarness()
	assert.False(t, h.svc.MarkFirstRewardReceived(context.Background(), ""))
	assert.False(t, h.svc.MarkFirstRewardReceived(context.Background(), "absent"))
}

func TestSetOperatorProJumpsFromAnyState(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)

	err := h.svc.SetOperatorPro(context.Background(), user.ID, "admin-1")

	require.NoError(t, err)
	assert.Equal(t, domain.MaturityOperatorPro, h.users.users[user.ID].MaturityState)
	require.Len(t, h.transitions.transitions, 1)
	tr := h.transitions.transitions[0]
	assert.Equal(t, domain.ReasonManualOperatorPro, tr.Reason)
	assert.Equal(t, domain.MaturityFirstTime, tr.FromState)
	assert.Equal(t, "admin-1", tr.Metadata["approved_by"])
}

func TestSetOperatorProRequiresBothIDs(t *testing.T) {
	h := newHarness()
	assert.Error(t, h.svc.SetOperatorPro(context.Background(), "", "admin-1"))
	assert.Error(t, h.svc.SetOperatorPro(context.Background(), "user-1", ""))
}

func TestSetStateOverrideCanLower(t *testing.T) {
	user := testUser(domain.MaturityPowerUser)
	h := newHarness(user)

	err := h.svc.SetState(context.Background(), user.ID, domain.MaturityActive)

	require.NoError(t, err)
	assert.Equal(t, domain.MaturityActive, h.users.users[user.ID].MaturityState)
	require.Len(t, h.transitions.transitions, 1)
	assert.Equal(t, domain.ReasonManualOverride, h.transitions.transitions[0].Reason)
}

func TestSetStateRejectsOutOfRange(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	h := newHarness(user)

	assert.Error(t, h.svc.SetState(context.Background(), user.ID, domain.MaturityState(5)))
	assert.Error(t, h.svc.SetState(context.Background(), user.ID, domain.MaturityState(-1)))
	assert.Empty(t, h.transitions.transitions)
}

func TestMonotonicOverActionSequence(t *testing.T) {
	user := testUser(domain.MaturityFirstTime)
	user.PointsBalance = 500
	h := newHarness(user)

	var states []domain.MaturityState
	surfaces := []domain.VerifiedActionType{
		domain.ActionDealClaimed,
		domain.ActionPageView,
		domain.ActionShareCompleted,
		domain.ActionDropCompleted,
	}
	for _, at := range surfaces {
		h.svc.RecordVerifiedAction(context.Background(), user.ID, at, nil, "feed")
		states = append(states, h.users.users[user.ID].MaturityState)
	}

	for i := 1; i < len(states); i++ {
		assert.GreaterOrEqual(t, states[i], states[i-1])
	}
}
