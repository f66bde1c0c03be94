package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
)

type RedemptionHandler struct {
	redemptionService   *services.RedemptionService
	authMiddleware      *middlewares.AuthMiddleware
	rateLimitMiddleware *middlewares.RateLimitMiddleware
}

func NewRedemptionHandler(redemptionService *services.RedemptionService, authMiddleware *middlewares.AuthMiddleware, rateLimitMiddleware *middlewares.RateLimitMiddleware) *RedemptionHandler {
	return &RedemptionHandler{
		redemptionService:   redemptionService,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

func (h *RedemptionHandler) RegisterRoutes(router fiber.Router) {
	redemptionGroup := router.Group("/redemptions", h.authMiddleware.AuthConnect)

	redemptionGroup.Post("/", h.rateLimitMiddleware.LimitByUser(ratelimit.RedeemLimit), h.Redeem)
	redemptionGroup.Get("/me", h.GetMyRedemptions)
	redemptionGroup.Get("/:id", h.GetRedemption)
	redemptionGroup.Post("/:id/void", h.authMiddleware.RequireAdmin, h.VoidRedemption)
}

func (h *RedemptionHandler) Redeem(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.RedemptionRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	couponID, err := uuid.Parse(req.CouponID)
	if err != nil {
		return pkg.ErrorResponse(c, errors.NewBadRequestError("Invalid coupon ID format"))
	}

	outcome, err := h.redemptionService.Redeem(c.UserContext(), couponID, req.ToContext(userID))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	if outcome.Replayed {
		return pkg.SuccessResponse(c, outcome)
	}
	return pkg.CreatedResponse(c, outcome)
}

func (h *RedemptionHandler) GetMyRedemptions(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	redemptions, err := h.redemptionService.GetRedemptionsByUser(userID, paginationFromQuery(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, redemptions)
}

func (h *RedemptionHandler) GetRedemption(c *fiber.Ctx) error {
	redemption, err := h.redemptionService.GetRedemption(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	user := middlewares.CurrentUser(c)
	if redemption.UserID != user.ID && !user.IsAdmin() {
		return pkg.ErrorResponse(c, errors.NewNotFoundError("Redemption not found"))
	}

	return pkg.SuccessResponse(c, redemption)
}

func (h *RedemptionHandler) VoidRedemption(c *fiber.Ctx) error {
	var req models.RedemptionVoidRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	redemption, err := h.redemptionService.Void(c.UserContext(), c.Params("id"), &req, middlewares.CurrentUserID(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, redemption)
}
