package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
)

type TicketHandler struct {
	ticketService  *services.RaffleTicketService
	authMiddleware *middlewares.AuthMiddleware
}

func NewTicketHandler(ticketService *services.RaffleTicketService, authMiddleware *middlewares.AuthMiddleware) *TicketHandler {
	return &TicketHandler{
		ticketService:  ticketService,
		authMiddleware: authMiddleware,
	}
}

func (h *TicketHandler) RegisterRoutes(router fiber.Router) {
	ticketGroup := router.Group("/tickets", h.authMiddleware.AuthConnect)

	ticketGroup.Get("/me", h.GetMyTickets)
	ticketGroup.Get("/:id", h.GetTicket)
	ticketGroup.Get("/:id/transfers", h.GetTransfers)
	ticketGroup.Post("/:id/claim", h.ClaimPrize)
	ticketGroup.Post("/:id/transfer", h.TransferTicket)
	ticketGroup.Patch("/:id/status", h.authMiddleware.RequireAdmin, h.UpdateTicketStatus)
}

func (h *TicketHandler) GetMyTickets(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	tickets, err := h.ticketService.GetUserTickets(userID, optionalQuery[models.TicketStatus](c, "status"), paginationFromQuery(c))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, tickets)
}

// ownedTicket hides other users' tickets from non-admins.
func (h *TicketHandler) ownedTicket(c *fiber.Ctx) (*models.RaffleTicket, error) {
	ticket, err := h.ticketService.GetTicket(c.Params("id"))
	if err != nil {
		return nil, err
	}

	user := middlewares.CurrentUser(c)
	if ticket.UserID != user.ID && !user.IsAdmin() {
		return nil, errors.NewNotFoundError("Ticket not found")
	}
	return ticket, nil
}

func (h *TicketHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.ownedTicket(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ticket)
}

func (h *TicketHandler) GetTransfers(c *fiber.Ctx) error {
	ticket, err := h.ownedTicket(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	transfers, err := h.ticketService.GetTransfers(ticket.ID.String())
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, transfers)
}

func (h *TicketHandler) ClaimPrize(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	ticket, err := h.ticketService.ClaimPrize(c.UserContext(), c.Params("id"), userID)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ticket)
}

func (h *TicketHandler) TransferTicket(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	var req models.TicketTransferRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	ticket, err := h.ticketService.Transfer(c.UserContext(), c.Params("id"), userID, &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ticket)
}

func (h *TicketHandler) UpdateTicketStatus(c *fiber.Ctx) error {
	var req models.TicketStatusUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return pkg.ErrorResponse(c, err)
	}

	ticket, err := h.ticketService.UpdateStatus(c.UserContext(), c.Params("id"), &req)
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, ticket)
}
