package injector

import (
	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/deliveries"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
)

// Application is the wired container for gsalt-rewards.
type Application struct {
	HealthHandler     *deliveries.HealthHandler
	CampaignHandler   *deliveries.CampaignHandler
	CouponHandler     *deliveries.CouponHandler
	RedemptionHandler *deliveries.RedemptionHandler
	EngagementHandler *deliveries.EngagementHandler
	RaffleHandler     *deliveries.RaffleHandler
	TicketHandler     *deliveries.TicketHandler
	AuditHandler      *deliveries.AuditHandler
	ExpirySweeper     *services.ExpirySweeper
	Outbox            *events.Outbox
}

func (app *Application) RegisterRoutes(router fiber.Router) {
	app.HealthHandler.RegisterRoutes(router)

	api := router.Group("/api/v1")
	app.CampaignHandler.RegisterRoutes(api)
	app.CouponHandler.RegisterRoutes(api)
	app.RedemptionHandler.RegisterRoutes(api)
	app.EngagementHandler.RegisterRoutes(api)
	app.RaffleHandler.RegisterRoutes(api)
	app.TicketHandler.RegisterRoutes(api)
	app.AuditHandler.RegisterRoutes(api)
}
