package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/promorang/maturity-service/internal/api/dto"
	"github.com/promorang/maturity-service/internal/auth"
	"github.com/promorang/maturity-service/internal/domain"
	"github.com/promorang/maturity-service/internal/service"
	apperrors "github.com/promorang/maturity-service/pkg/util"
)

// AdminHandler exposes admin-only maturity operations. Role checks are
// enforced by the route middleware, not here.
type AdminHandler struct {
	service *service.MaturityService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(maturityService *service.MaturityService) *AdminHandler {
	return &AdminHandler{service: maturityService}
}

// SetOperatorPro POST /admin/set-operator-pro.
func (h *AdminHandler) SetOperatorPro(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("admin principal required")
	}

	var req dto.SetOperatorProRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" {
		return apperrors.NewValidationError("user_id required", nil)
	}

	if err := h.service.SetOperatorPro(c.Context(), req.UserID, principal.User.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"user_id":        req.UserID,
		"maturity_state": domain.MaturityOperatorPro,
		"state_name":     domain.MaturityOperatorPro.String(),
	}})
}
