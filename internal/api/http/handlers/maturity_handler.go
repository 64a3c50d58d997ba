package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/promorang/maturity-service/internal/api/dto"
	"github.com/promorang/maturity-service/internal/auth"
	"github.com/promorang/maturity-service/internal/domain"
	"github.com/promorang/maturity-service/internal/service"
	apperrors "github.com/promorang/maturity-service/pkg/util"
)

// MaturityHandler exposes the maturity state machine over HTTP.
type MaturityHandler struct {
	service *service.MaturityService
}

// NewMaturityHandler constructs handler.
func NewMaturityHandler(maturityService *service.MaturityService) *MaturityHandler {
	return &MaturityHandler{service: maturityService}
}

// GetState GET /state.
func (h *MaturityHandler) GetState(c *fiber.Ctx) error {
	userID := subjectUserID(c, c.Query("user_id"))
	snap := h.service.GetMaturityData(c.Context(), userID)
	return c.JSON(fiber.Map{"data": dto.StateResponse{
		Snapshot:   snap,
		StateName:  snap.State.String(),
		Visibility: domain.VisibilityFor(snap.State),
	}})
}

// GetVisibility GET /visibility.
func (h *MaturityHandler) GetVisibility(c *fiber.Ctx) error {
	userID := subjectUserID(c, c.Query("user_id"))
	snap := h.service.GetMaturityData(c.Context(), userID)
	return c.JSON(fiber.Map{"data": domain.VisibilityFor(snap.State)})
}

// CheckAccess GET /check-access/:feature.
func (h *MaturityHandler) CheckAccess(c *fiber.Ctx) error {
	userID := subjectUserID(c, c.Query("user_id"))
	snap := h.service.GetMaturityData(c.Context(), userID)
	access := domain.CheckFeatureAccess(snap.State, c.Params("feature"))
	return c.JSON(fiber.Map{"data": access})
}

// RecordAction POST /action.
func (h *MaturityHandler) RecordAction(c *fiber.Ctx) error {
	var req dto.RecordActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	actionType := domain.VerifiedActionType(req.ActionType)
	if !actionType.Valid() {
		return apperrors.NewValidationError("unknown action_type", map[string]any{"action_type": req.ActionType})
	}

	userID := subjectUserID(c, req.UserID)
	action := h.service.RecordVerifiedAction(c.Context(), userID, actionType, req.Metadata, req.Surface)
	if action == nil {
		// missing identity or a swallowed persistence failure
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": nil})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": actionResponse(action)})
}

// RewardReceived POST /reward-received.
func (h *MaturityHandler) RewardReceived(c *fiber.Ctx) error {
	var req dto.RewardReceivedRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	userID := subjectUserID(c, req.UserID)
	ok := h.service.MarkFirstRewardReceived(c.Context(), userID)
	return c.JSON(fiber.Map{"data": fiber.Map{"success": ok}})
}

// Recalculate POST /recalculate.
func (h *MaturityHandler) Recalculate(c *fiber.Ctx) error {
	var req dto.RecalculateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	userID := subjectUserID(c, req.UserID)
	result := h.service.Recalculate(c.Context(), userID, service.RecalcOptions{
		HasSubscription:         req.HasSubscription,
		AccessedAdvancedFeature: req.AccessedAdvancedFeature,
	})
	return c.JSON(fiber.Map{"data": result})
}

// Override POST /override. Restricted to demo targets or admin callers.
func (h *MaturityHandler) Override(c *fiber.Ctx) error {
	var req dto.OverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}

	if !domain.IsDemoUserID(req.UserID) {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok || !principal.Role.IsAdmin() {
			return apperrors.NewForbidden("override limited to demo accounts or admins")
		}
	}

	if err := h.service.SetState(c.Context(), req.UserID, domain.MaturityState(req.State)); err != nil {
		return err
	}
	snap := h.service.GetMaturityData(c.Context(), req.UserID)
	return c.JSON(fiber.Map{"data": fiber.Map{
		"maturity_state": snap.State,
		"state_name":     snap.State.String(),
	}})
}

// ListTransitions GET /transitions.
func (h *MaturityHandler) ListTransitions(c *fiber.Ctx) error {
	userID := subjectUserID(c, c.Query("user_id"))
	transitions, err := h.service.ListTransitions(c.Context(), userID)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.TransitionResponse, 0, len(transitions))
	for _, tr := range transitions {
		items = append(items, dto.TransitionResponse{
			ID:        tr.ID,
			FromState: int(tr.FromState),
			ToState:   int(tr.ToState),
			Reason:    tr.Reason,
			Metadata:  tr.Metadata,
			CreatedAt: tr.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// subjectUserID resolves the user the request is about: an
// authenticated principal wins; otherwise a caller-supplied id is
// honored only for scripted demo accounts so anonymous sessions cannot
// act on real users.
func subjectUserID(c *fiber.Ctx, requested string) string {
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		return principal.User.ID
	}
	if requested != "" && domain.IsDemoUserID(requested) {
		return requested
	}
	return ""
}

func actionResponse(action *domain.VerifiedAction) dto.ActionResponse {
	return dto.ActionResponse{
		ID:         action.ID,
		UserID:     action.UserID,
		ActionType: string(action.ActionType),
		Metadata:   action.Metadata,
		Surface:    action.Surface,
		VerifiedAt: action.VerifiedAt,
	}
}
