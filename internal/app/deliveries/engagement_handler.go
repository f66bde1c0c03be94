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

type EngagementHandler struct {
	engagementService   *services.EngagementService
	authMiddleware      *middlewares.AuthMiddleware
	rateLimitMiddleware *middlewares.RateLimitMiddleware
}

func NewEngagementHandler(engagementService *services.EngagementService, authMiddleware *middlewares.AuthMiddleware, rateLimitMiddleware *middlewares.RateLimitMiddleware) *EngagementHandler {
	return &EngagementHandler{
		engagementService:   engagementService,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

type engagementCompleteResponse struct {
	Engagement *models.Engagement     `json:"engagement"`
	Issuance   *models.IssuanceResult `json:"issuance"`
}

func (h *EngagementHandler) RegisterRoutes(router fiber.Router) {
	engagementGroup := router.Group("/engagements", h.authMiddleware.AuthConnect, h.rateLimitMiddleware.LimitByUser(ratelimit.PublicLimit))

	engagementGroup.Post("/", h.StartEngagement)
	engagementGroup.Get("/:id", h.GetEngagement)
	engagementGroup.Post("/:id/complete", h.CompleteEngagement)
	engagementGroup.Post("/:id/abandon", h.AbandonEngagement)

	advertisementGroup := router.Group("/advertisements", h.authMiddleware.AuthConnect, h.authMiddleware.RequireAdmin)

	advertisementGroup.Post("/", h.CreateAdvertisement)
	advertisementGroup.Get("/", h.GetAdvertisements)
	advertisementGroup.Get("/:id", h.GetAdvertisement)
	advertisementGroup.Patch("/:id/status", h.UpdateAdvertisementStatus)
}

func (h *EngagementHandler) StartEngagement(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.EngagementStartRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	engagement, err := h.engagementService.StartEngagement(c.UserContext(), userID, &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, engagement)
}

func (h *EngagementHandler) GetEngagement(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	engagement, err := h.engagementService.GetEngagement(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}
	if engagement.UserID != userID {
		return pkg.ErrorResponse(c, errors.NewNotFoundError("Engagement not found"))
	}

	return pkg.SuccessResponse(c, engagement)
}

func (h *EngagementHandler) CompleteEngagement(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	engagement, issuance, err := h.engagementService.CompleteEngagement(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, engagementCompleteResponse{
		Engagement: engagement,
		Issuance:   issuance,
	})
}

func (h *EngagementHandler) AbandonEngagement(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	engagement, err := h.engagementService.AbandonEngagement(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, engagement)
}

func (h *EngagementHandler) CreateAdvertisement(c *fiber.Ctx) error {
	var req models.AdvertisementCreateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	ad, err := h.engagementService.CreateAdvertisement(c.UserContext(), &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, ad)
}

func (h *EngagementHandler) GetAdvertisements(c *fiber.Ctx) error {
	ads, err := h.engagementService.GetAdvertisements(paginationFromQuery(c), optionalQuery[models.AdvertisementStatus](c, "status"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ads)
}

func (h *EngagementHandler) GetAdvertisement(c *fiber.Ctx) error {
	ad, err := h.engagementService.GetAdvertisement(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ad)
}

func (h *EngagementHandler) UpdateAdvertisementStatus(c *fiber.Ctx) error {
	var req models.AdvertisementStatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	ad, err := h.engagementService.UpdateAdvertisementStatus(c.UserContext(), c.Params("id"), &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ad)
}
