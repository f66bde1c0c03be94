//go:build wireinject
// +build wireinject

package injector

import (
	"github.com/google/wire"
	"github.com/safatanc/gsalt-rewards/internal/app/deliveries"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/locks"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
)

var infrastructureSet = wire.NewSet(
	infrastructures.NewDatabase,
	infrastructures.NewRedisClient,
	infrastructures.NewValidator,
	infrastructures.ProvideRewardsConfig,
	provideSignatureCodec,
	providePublisher,
	wire.Bind(new(events.Publisher), new(*events.RedisPublisher)),
	events.NewOutbox,
	provideLocker,
	wire.Bind(new(locks.Locker), new(*locks.RedisLocker)),
	provideLimiter,
	wire.Bind(new(ratelimit.Limiter), new(*ratelimit.RedisLimiter)),
)

var serviceSet = wire.NewSet(
	services.NewConnectService,
	wire.Bind(new(services.UserVerifier), new(*services.ConnectService)),
	services.NewAuditService,
	services.NewCampaignService,
	services.NewCouponValidator,
	services.NewCouponService,
	services.NewTicketIssuanceService,
	services.NewRedemptionService,
	services.NewEngagementService,
	services.NewRaffleTicketService,
	services.NewRaffleService,
	services.NewExpirySweeper,
)

var middlewareSet = wire.NewSet(
	middlewares.NewAuthMiddleware,
	middlewares.NewRateLimitMiddleware,
)

var handlerSet = wire.NewSet(
	deliveries.NewHealthHandler,
	deliveries.NewCampaignHandler,
	deliveries.NewCouponHandler,
	deliveries.NewRedemptionHandler,
	deliveries.NewEngagementHandler,
	deliveries.NewRaffleHandler,
	deliveries.NewTicketHandler,
	deliveries.NewAuditHandler,
	wire.Struct(new(Application), "*"),
)

func InitializeApplication(cfg *infrastructures.AppConfig) (*Application, error) {
	wire.Build(
		infrastructureSet,
		serviceSet,
		middlewareSet,
		handlerSet,
	)
	return &Application{}, nil
}
