package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
)

type RaffleHandler struct {
	raffleService       *services.RaffleService
	authMiddleware      *middlewares.AuthMiddleware
	rateLimitMiddleware *middlewares.RateLimitMiddleware
}

func NewRaffleHandler(raffleService *services.RaffleService, authMiddleware *middlewares.AuthMiddleware, rateLimitMiddleware *middlewares.RateLimitMiddleware) *RaffleHandler {
	return &RaffleHandler{
		raffleService:       raffleService,
		authMiddleware:      authMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

func (h *RaffleHandler) RegisterRoutes(router fiber.Router) {
	raffleGroup := router.Group("/raffles")

	raffleGroup.Get("/", h.rateLimitMiddleware.LimitByIP(ratelimit.PublicLimit), h.GetRaffles)
	raffleGroup.Get("/:id", h.rateLimitMiddleware.LimitByIP(ratelimit.PublicLimit), h.GetRaffle)
	raffleGroup.Get("/:id/winners", h.rateLimitMiddleware.LimitByIP(ratelimit.PublicLimit), h.GetWinners)

	raffleGroup.Post("/:id/entries", h.authMiddleware.AuthConnect, h.EnterRaffle)

	raffleGroup.Post("/", h.admin(h.CreateRaffle)...)
	raffleGroup.Post("/:id/close", h.admin(h.CloseRaffle)...)
	raffleGroup.Post("/:id/cancel", h.admin(h.CancelRaffle)...)
	raffleGroup.Post("/:id/draw", h.admin(h.DrawWinners)...)
}

func (h *RaffleHandler) admin(handler fiber.Handler) []fiber.Handler {
	return []fiber.Handler{
		h.authMiddleware.AuthConnect,
		h.authMiddleware.RequireAdmin,
		h.rateLimitMiddleware.LimitByUser(ratelimit.AdminLimit),
		handler,
	}
}

func (h *RaffleHandler) CreateRaffle(c *fiber.Ctx) error {
	var req models.RaffleCreateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	raffle, err := h.raffleService.CreateRaffle(c.UserContext(), &req, middlewares.CurrentUserID(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, raffle)
}

func (h *RaffleHandler) GetRaffles(c *fiber.Ctx) error {
	raffles, err := h.raffleService.GetRaffles(paginationFromQuery(c), optionalQuery[models.RaffleStatus](c, "status"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, raffles)
}

func (h *RaffleHandler) GetRaffle(c *fiber.Ctx) error {
	raffle, err := h.raffleService.GetRaffle(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, raffle)
}

func (h *RaffleHandler) EnterRaffle(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.RaffleEntryRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	entry, err := h.raffleService.EnterRaffle(c.UserContext(), c.Params("id"), userID, &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.CreatedResponse(c, entry)
}

func (h *RaffleHandler) CloseRaffle(c *fiber.Ctx) error {
	raffle, err := h.raffleService.CloseRaffle(c.UserContext(), c.Params("id"), middlewares.CurrentUserID(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, raffle)
}

func (h *RaffleHandler) CancelRaffle(c *fiber.Ctx) error {
	raffle, err := h.raffleService.CancelRaffle(c.UserContext(), c.Params("id"), middlewares.CurrentUserID(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, raffle)
}

func (h *RaffleHandler) DrawWinners(c *fiber.Ctx) error {
	var req models.RaffleDrawRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return pkg.ErrorResponse(c, err)
		}
	}

	result, err := h.raffleService.DrawWinners(c.UserContext(), c.Params("id"), req.Seed)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, result)
}

func (h *RaffleHandler) GetWinners(c *fiber.Ctx) error {
	winners, err := h.raffleService.GetWinners(c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, winners)
}
