package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promorang/maturity-service/internal/domain"
	"github.com/promorang/maturity-service/internal/events"
	"github.com/promorang/maturity-service/internal/observability"
	"github.com/promorang/maturity-service/internal/repository"
	apperrors "github.com/promorang/maturity-service/pkg/util"
)

const (
	snapshotCachePrefix = "maturity:snapshot:"
	snapshotCacheTTL    = 30 * time.Second
)

// MaturityService owns the maturity state machine: recording verified
// actions, recalculating tiers, and maintaining the transition audit
// trail. Authorization is the route layer's job; this service trusts
// its inputs.
type MaturityService struct {
	users       repository.UserRepository
	actions     repository.ActionRepository
	transitions repository.TransitionRepository
	cache       *redis.Client
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// MaturityDependencies bundles collaborators for the service.
type MaturityDependencies struct {
	UserRepo       repository.UserRepository
	ActionRepo     repository.ActionRepository
	TransitionRepo repository.TransitionRepository
	Cache          *redis.Client
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// RecalcOptions carries the out-of-band promotion signals.
type RecalcOptions struct {
	HasSubscription         bool
	AccessedAdvancedFeature bool
}

// RecalcResult reports the outcome of one recalculation pass.
type RecalcResult struct {
	State   domain.MaturityState `json:"state"`
	Changed bool                 `json:"changed"`
	Reason  string               `json:"trigger_reason,omitempty"`
}

// NewMaturityService constructs the service.
func NewMaturityService(deps MaturityDependencies) *MaturityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaturityService{
		users:       deps.UserRepo,
		actions:     deps.ActionRepo,
		transitions: deps.TransitionRepo,
		cache:       deps.Cache,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// RecordVerifiedAction persists one activity event, bumps the user's
// counter (page views are logged but not counted), records the surface
// and triggers a recalculation. Persistence failures are logged and
// yield nil; they never propagate to the caller.
func (s *MaturityService) RecordVerifiedAction(ctx context.Context, userID string, actionType domain.VerifiedActionType, metadata map[string]any, surface string) *domain.VerifiedAction {
	if userID == "" {
		s.logger.Warn("record action without user id", zap.String("action_type", string(actionType)))
		return nil
	}

	if domain.IsDemoUserID(userID) {
		return &domain.VerifiedAction{
			ID:         uuid.NewString(),
			UserID:     userID,
			ActionType: actionType,
			Metadata:   metadata,
			Surface:    surface,
			VerifiedAt: time.Now(),
		}
	}

	action := &domain.VerifiedAction{
		UserID:     userID,
		ActionType: actionType,
		Metadata:   metadata,
		Surface:    surface,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		s.logger.Error("insert verified action", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	if err := s.users.ApplyVerifiedAction(ctx, userID, surface, actionType.Countable()); err != nil {
		s.logger.Warn("apply verified action to user row", zap.String("user_id", userID), zap.Error(err))
		if actionType.Countable() {
			if err := s.users.IncrementVerifiedActions(ctx, userID); err != nil {
				s.logger.Error("fallback increment failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
		if err := s.users.SetLastUsedSurface(ctx, userID, surface); err != nil {
			s.logger.Error("update last used surface", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.invalidateSnapshot(ctx, userID)
	s.metrics.RecordAction(string(actionType))
	s.publishEvent(ctx, events.Event{
		Type:   events.EventActionRecorded,
		UserID: userID,
		Payload: events.ActionRecordedPayload{
			ActionID:   action.ID,
			ActionType: actionType,
			Surface:    surface,
		},
	})

	s.Recalculate(ctx, userID, RecalcOptions{})
	return action
}

// GetMaturityData returns the derived maturity view. It never fails
// visibly: anonymous callers and load failures get a first-time
// snapshot with zeroed fields.
func (s *MaturityService) GetMaturityData(ctx context.Context, userID string) domain.MaturitySnapshot {
	if userID == "" {
		return domain.DefaultSnapshot(userID)
	}
	if domain.IsDemoUserID(userID) {
		return domain.DemoSnapshot(userID)
	}

	if snap, ok := s.cachedSnapshot(ctx, userID); ok {
		return snap
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("load user for snapshot", zap.String("user_id", userID), zap.Error(err))
		return domain.DefaultSnapshot(userID)
	}

	snap := user.Snapshot()
	s.storeSnapshot(ctx, snap)
	return snap
}

// Recalculate evaluates a single-step promotion for the user's current
// state. Only one tier is considered per call; users who qualify for a
// higher tier advance on subsequent evaluations. OPERATOR_PRO is never
// reached here.
func (s *MaturityService) Recalculate(ctx context.Context, userID string, opts RecalcOptions) RecalcResult {
	if userID == "" {
		return RecalcResult{State: domain.MaturityFirstTime}
	}
	if domain.IsDemoUserID(userID) {
		return RecalcResult{State: domain.DemoStateFromID(userID)}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("load user for recalculation", zap.String("user_id", userID), zap.Error(err))
		return RecalcResult{State: domain.MaturityFirstTime}
	}

	current := user.MaturityState
	newState := current
	reason := ""

	switch current {
	case domain.MaturityFirstTime:
		if user.PointsBalance >= domain.ActivePointsThreshold {
			newState = domain.MaturityActive
			reason = domain.ReasonReached500Points
		} else if user.KeysBalance >= 1 {
			newState = domain.MaturityActive
			reason = domain.ReasonPurchasedFirstKey
		}
	case domain.MaturityActive:
		if user.GemsBalance >= 1 || user.FirstRewardAt != nil {
			newState = domain.MaturityRewarded
			reason = domain.ReasonEarnedFirstGems
		}
	case domain.MaturityRewarded:
		// Last matching condition wins the trigger reason; the
		// evaluation order is fixed.
		if user.GemsBalance >= domain.PowerUserGemsThreshold {
			newState = domain.MaturityPowerUser
			reason = domain.ReasonEarned5Gems
		}
		drops, err := s.actions.CountByUserAndType(ctx, userID, domain.ActionDropCompleted)
		if err != nil {
			s.logger.Warn("count drop completions", zap.String("user_id", userID), zap.Error(err))
			drops = 0
		}
		if drops >= domain.PowerUserDropThreshold {
			newState = domain.MaturityPowerUser
			reason = domain.ReasonCompleted3Drops
		}
		if opts.HasSubscription {
			newState = domain.MaturityPowerUser
			reason = domain.ReasonSubscribed
		}
		if opts.AccessedAdvancedFeature {
			newState = domain.MaturityPowerUser
			reason = domain.ReasonAccessedAdvancedFeature
		}
	}

	if newState <= current {
		return RecalcResult{State: current}
	}

	if err := s.users.UpdateMaturityState(ctx, userID, current, newState); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			s.logger.Debug("recalculation lost state race", zap.String("user_id", userID))
		} else {
			s.logger.Error("commit maturity promotion", zap.String("user_id", userID), zap.Error(err))
		}
		return RecalcResult{State: current}
	}

	transition := &domain.MaturityTransition{
		UserID:    userID,
		FromState: current,
		ToState:   newState,
		Reason:    reason,
	}
	if err := s.transitions.Create(ctx, transition); err != nil {
		s.logger.Error("insert maturity transition", zap.String("user_id", userID), zap.Error(err))
		return RecalcResult{State: current}
	}

	s.invalidateSnapshot(ctx, userID)
	s.metrics.RecordTransition(reason)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventMaturityStateChanged,
		UserID: userID,
		Payload: events.MaturityStateChangedPayload{
			FromState: current,
			ToState:   newState,
			Reason:    reason,
		},
	})

	return RecalcResult{State: newState, Changed: true, Reason: reason}
}

// MarkFirstRewardReceived stamps the first reward timestamp once
// (first write wins) and recalculates. Returns false only when the
// write could not be performed.
func (s *MaturityService) MarkFirstRewardReceived(ctx context.Context, userID string) bool {
	if userID == "" {
		s.logger.Warn("mark first reward without user id")
		return false
	}
	if domain.IsDemoUserID(userID) {
		return true
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("load user for first reward", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if user.FirstRewardAt != nil {
		return true
	}

	applied, err := s.users.SetFirstRewardReceived(ctx, userID)
	if err != nil {
		s.logger.Error("set first reward received", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	s.invalidateSnapshot(ctx, userID)
	if applied {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventFirstRewardReceived,
			UserID:  userID,
			Payload: events.FirstRewardReceivedPayload{ReceivedAt: time.Now()},
		})
	}

	s.Recalculate(ctx, userID, RecalcOptions{})
	return true
}

// SetOperatorPro grants the terminal tier. This is the only way a user
// reaches OPERATOR_PRO and the jump from any state is allowed. Callers
// must have enforced admin role checks already.
func (s *MaturityService) SetOperatorPro(ctx context.Context, userID, adminID string) error {
	if userID == "" || adminID == "" {
		return apperrors.NewValidationError("user_id and admin_id required", nil)
	}
	if domain.IsDemoUserID(userID) {
		return nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.MapError(err)
	}

	if err := s.users.SetMaturityState(ctx, userID, domain.MaturityOperatorPro); err != nil {
		return apperrors.MapError(err)
	}

	transition := &domain.MaturityTransition{
		UserID:    userID,
		FromState: user.MaturityState,
		ToState:   domain.MaturityOperatorPro,
		Reason:    domain.ReasonManualOperatorPro,
		Metadata:  map[string]any{"approved_by": adminID},
	}
	if err := s.transitions.Create(ctx, transition); err != nil {
		s.logger.Error("insert operator-pro transition", zap.String("user_id", userID), zap.Error(err))
	}

	s.invalidateSnapshot(ctx, userID)
	s.metrics.RecordTransition(domain.ReasonManualOperatorPro)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventMaturityStateChanged,
		UserID: userID,
		Payload: events.MaturityStateChangedPayload{
			FromState: user.MaturityState,
			ToState:   domain.MaturityOperatorPro,
			Reason:    domain.ReasonManualOperatorPro,
		},
	})
	return nil
}

// SetState is the direct override used by demo and test tooling. It
// may both raise and lower the stored state, bypassing monotonicity.
func (s *MaturityService) SetState(ctx context.Context, userID string, newState domain.MaturityState) error {
	if !newState.Valid() {
		return apperrors.NewValidationError("state must be between 0 and 4", map[string]any{"state": int(newState)})
	}
	if userID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}
	if domain.IsDemoUserID(userID) {
		return nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return apperrors.MapError(err)
	}

	if err := s.users.SetMaturityState(ctx, userID, newState); err != nil {
		return apperrors.MapError(err)
	}

	transition := &domain.MaturityTransition{
		UserID:    userID,
		FromState: user.MaturityState,
		ToState:   newState,
		Reason:    domain.ReasonManualOverride,
	}
	if err := s.transitions.Create(ctx, transition); err != nil {
		s.logger.Error("insert override transition", zap.String("user_id", userID), zap.Error(err))
	}

	s.invalidateSnapshot(ctx, userID)
	s.metrics.RecordTransition(domain.ReasonManualOverride)
	s.publishEvent(ctx, events.Event{
		Type:   events.EventMaturityStateChanged,
		UserID: userID,
		Payload: events.MaturityStateChangedPayload{
			FromState: user.MaturityState,
			ToState:   newState,
			Reason:    domain.ReasonManualOverride,
		},
	})
	return nil
}

// ListTransitions exposes the audit trail for a user.
func (s *MaturityService) ListTransitions(ctx context.Context, userID string) ([]domain.MaturityTransition, error) {
	if userID == "" || domain.IsDemoUserID(userID) {
		return nil, nil
	}
	return s.transitions.ListByUser(ctx, userID)
}

func (s *MaturityService) cachedSnapshot(ctx context.Context, userID string) (domain.MaturitySnapshot, bool) {
	if s.cache == nil {
		return domain.MaturitySnapshot{}, false
	}
	raw, err := s.cache.Get(ctx, snapshotCachePrefix+userID).Bytes()
	if err != nil {
		return domain.MaturitySnapshot{}, false
	}
	var snap domain.MaturitySnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.MaturitySnapshot{}, false
	}
	return snap, true
}

func (s *MaturityService) storeSnapshot(ctx context.Context, snap domain.MaturitySnapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, snapshotCachePrefix+snap.UserID, raw, snapshotCacheTTL).Err(); err != nil {
		s.logger.Debug("cache snapshot", zap.String("user_id", snap.UserID), zap.Error(err))
	}
}

func (s *MaturityService) invalidateSnapshot(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotCachePrefix+userID).Err(); err != nil {
		s.logger.Debug("invalidate snapshot cache", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *MaturityService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
