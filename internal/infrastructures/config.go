package infrastructures

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/shopspring/decimal"
)

type AppConfig struct {
	DATABASE_URL     string `env:"DATABASE_URL"`
	CONNECT_BASE_URL string `env:"CONNECT_BASE_URL"`
	HTTP_PORT        string `env:"HTTP_PORT,default=8080"`
	LOG_LEVEL        string `env:"LOG_LEVEL,default=info"`

	Redis   RedisConfig   `env:",prefix=REDIS_"`
	Rewards RewardsConfig `env:",prefix=REWARDS_"`
}

type RedisConfig struct {
	Address  string `env:"ADDRESS"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB,default=0"`
}

// RewardsConfig holds the tunables of the coupon and raffle engine.
type RewardsConfig struct {
	SigningSecret           string          `env:"SIGNING_SECRET"`
	TokenMaxAge             time.Duration   `env:"TOKEN_MAX_AGE,default=24h"`
	BonusThreshold          decimal.Decimal `env:"BONUS_THRESHOLD,default=50.00"`
	DiscountBonusThreshold  decimal.Decimal `env:"DISCOUNT_BONUS_THRESHOLD,default=10.00"`
	MaxTicketsPerRedemption int             `env:"MAX_TICKETS_PER_REDEMPTION,default=10"`
	UsageConflictRetries    uint64          `env:"USAGE_CONFLICT_RETRIES,default=3"`
	ExpirySweepInterval     time.Duration   `env:"EXPIRY_SWEEP_INTERVAL,default=5m"`
	TicketLifetime          time.Duration   `env:"TICKET_LIFETIME,default=0s"`
	EventChannelPrefix      string          `env:"EVENT_CHANNEL_PREFIX,default=gsalt-rewards"`
	OutboxRelayInterval     time.Duration   `env:"OUTBOX_RELAY_INTERVAL,default=5s"`
	Timezone                string          `env:"TIMEZONE,default=UTC"`
}

var Config *AppConfig

// DefaultRewardsConfig mirrors the env defaults; used by tests and tools that
// do not read the environment.
func DefaultRewardsConfig() RewardsConfig {
	return RewardsConfig{
		TokenMaxAge:             24 * time.Hour,
		BonusThreshold:          decimal.NewFromInt(50),
		DiscountBonusThreshold:  decimal.NewFromInt(10),
		MaxTicketsPerRedemption: 10,
		UsageConflictRetries:    3,
		ExpirySweepInterval:     5 * time.Minute,
		EventChannelPrefix:      "gsalt-rewards",
		OutboxRelayInterval:     5 * time.Second,
		Timezone:                "UTC",
	}
}

func LoadConfig() (*AppConfig, error) {
	godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	if cfg.Rewards.SigningSecret == "" {
		return nil, fmt.Errorf("REWARDS_SIGNING_SECRET is required")
	}
	if cfg.Rewards.BonusThreshold.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("REWARDS_BONUS_THRESHOLD must be positive")
	}
	if _, err := time.LoadLocation(cfg.Rewards.Timezone); err != nil {
		return nil, fmt.Errorf("invalid REWARDS_TIMEZONE: %w", err)
	}

	Config = &cfg
	return Config, nil
}

// ProvideRewardsConfig exposes the rewards section to the injector.
func ProvideRewardsConfig(cfg *AppConfig) RewardsConfig {
	return cfg.Rewards
}
