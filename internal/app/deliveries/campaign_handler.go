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

type CampaignHandler struct {
	campaignService     *services.CampaignService
	authMiddleware      *middlewares.AuthMiddleware
	rateLimitMiddleware *middlewares.RateLimitMiddleware
}

func NewCampaignHandler(campaignService *services.CampaignService, authMiddleware *middlewares.AuthMiddleware, rateLimitMiddleware *middlewares.RateLimitMiddleware) *CampaignHandler {
	return &CampaignHandler{
		campaignService:     campaignService,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

func (h *CampaignHandler) RegisterRoutes(router fiber.Router) {
	campaignGroup := router.Group("/campaigns", h.authMiddleware.AuthConnect, h.authMiddleware.RequireAdmin)

	campaignGroup.Post("/", h.CreateCampaign)
	campaignGroup.Get("/", h.GetCampaigns)
	campaignGroup.Get("/:id", h.GetCampaign)
	campaignGroup.Get("/:id/stats", h.GetCampaignStats)
	campaignGroup.Patch("/:id/status", h.UpdateCampaignStatus)
	campaignGroup.Post("/:id/coupons", h.rateLimitMiddleware.LimitByUser(ratelimit.AdminLimit), h.GenerateCoupons)
}

func campaignID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errors.NewBadRequestError("Invalid campaign ID format")
	}
	return int64(id), nil
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req models.CampaignCreateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}
	req.CreatedBy = middlewares.CurrentUserID(c)

	campaign, err := h.campaignService.CreateCampaign(c.UserContext(), &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, campaign)
}

func (h *CampaignHandler) GetCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.campaignService.GetCampaigns(paginationFromQuery(c), optionalQuery[models.CampaignStatus](c, "status"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, campaigns)
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	campaign, err := h.campaignService.GetCampaign(id)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, campaign)
}

func (h *CampaignHandler) GetCampaignStats(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	stats, err := h.campaignService.GetCampaignStats(id)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, stats)
}

func (h *CampaignHandler) UpdateCampaignStatus(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.CampaignStatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	campaign, err := h.campaignService.UpdateCampaignStatus(c.UserContext(), id, &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, campaign)
}

func (h *CampaignHandler) GenerateCoupons(c *fiber.Ctx) error {
	id, err := campaignID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.CouponGenerateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	coupons, err := h.campaignService.GenerateCoupons(c.UserContext(), id, &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, coupons)
}
