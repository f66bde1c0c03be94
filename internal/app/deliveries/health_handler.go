package deliveries

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.GetHealth)
	router.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

func (h *HealthHandler) GetHealth(c *fiber.Ctx) error {
	return pkg.SuccessResponse(c, "gsalt-rewards")
}
