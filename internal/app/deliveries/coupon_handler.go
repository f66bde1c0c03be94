package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
)

type CouponHandler struct {
	couponService       *services.CouponService
	authMiddleware      *middlewares.AuthMiddleware
	rateLimitMiddleware *middlewares.RateLimitMiddleware
}

func NewCouponHandler(couponService *services.CouponService, authMiddleware *middlewares.AuthMiddleware, rateLimitMiddleware *middlewares.RateLimitMiddleware) *CouponHandler {
	return &CouponHandler{
		couponService:       couponService,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

func (h *CouponHandler) RegisterRoutes(router fiber.Router) {
	couponGroup := router.Group("/coupons")

	// Station terminals validate without a user session.
	couponGroup.Post("/validate", h.rateLimitMiddleware.LimitByIP(ratelimit.ValidateLimit), h.ValidateCoupon)

	couponGroup.Get("/", h.admin(h.GetCoupons)...)
	couponGroup.Get("/code/:code", h.admin(h.GetCouponByCode)...)
	couponGroup.Get("/:id", h.admin(h.GetCoupon)...)
	couponGroup.Patch("/:id/status", h.admin(h.UpdateCouponStatus)...)
	couponGroup.Post("/:id/refresh-token", h.admin(h.RefreshToken)...)
}

func (h *CouponHandler) admin(handler fiber.Handler) []fiber.Handler {
	return []fiber.Handler{h.authMiddleware.AuthConnect, h.authMiddleware.RequireAdmin, handler}
}

func (h *CouponHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req models.CouponValidateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	result, err := h.couponService.ValidateCoupon(c.UserContext(), &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, result)
}

func (h *CouponHandler) GetCoupons(c *fiber.Ctx) error {
	var campaignID *int64
	if raw := c.QueryInt("campaign_id", 0); raw > 0 {
		id := int64(raw)
		campaignID = &id
	}

	coupons, err := h.couponService.GetCoupons(paginationFromQuery(c), campaignID, optionalQuery[models.CouponStatus](c, "status"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, coupons)
}

func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	coupon, err := h.couponService.GetCoupon(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, coupon)
}

func (h *CouponHandler) GetCouponByCode(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return pkg.ErrorResponse(c, errors.NewBadRequestError("Coupon code is required"))
	}

	coupon, err := h.couponService.GetCouponByCode(code)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, coupon)
}

func (h *CouponHandler) UpdateCouponStatus(c *fiber.Ctx) error {
	var req models.CouponStatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	coupon, err := h.couponService.UpdateStatus(c.UserContext(), c.Params("id"), &req, middlewares.CurrentUserID(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, coupon)
}

func (h *CouponHandler) RefreshToken(c *fiber.Ctx) error {
	coupon, err := h.couponService.RefreshToken(c.UserContext(), c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, coupon)
}
