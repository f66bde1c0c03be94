package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
)

type AuditHandler struct {
	auditService   *services.AuditService
	authMiddleware *middlewares.AuthMiddleware
}

func NewAuditHandler(auditService *services.AuditService, authMiddleware *middlewares.AuthMiddleware) *AuditHandler {
	return &AuditHandler{
		auditService:   auditService,
		authMiddleware: authMiddleware,
	}
}

func (h *AuditHandler) RegisterRoutes(router fiber.Router) {
	auditGroup := router.Group("/audit", h.authMiddleware.AuthConnect, h.authMiddleware.RequireAdmin)

	auditGroup.Get("/logs", h.GetAuditLogs)
	auditGroup.Get("/history/:entity/:id", h.GetStatusHistory)
}

func (h *AuditHandler) GetAuditLogs(c *fiber.Ctx) error {
	logs, err := h.auditService.GetAuditLogs(paginationFromQuery(c), optionalQuery[string](c, "entity"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, logs)
}

func (h *AuditHandler) GetStatusHistory(c *fiber.Ctx) error {
	history, err := h.auditService.GetStatusHistory(c.Params("entity"), c.Params("id"))
	if err != nil {
		return pkg.ErrorResponse(c, err)
	}

	return pkg.SuccessResponse(c, history)
}
