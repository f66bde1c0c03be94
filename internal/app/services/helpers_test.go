package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/locks"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-signing-secret"

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serialises writers the way row locks do on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

type stubVerifier map[uuid.UUID]bool

func (v stubVerifier) IsUserVerified(_ context.Context, userID uuid.UUID) (bool, error) {
	return v[userID], nil
}

type testEnv struct {
	db        *gorm.DB
	publisher *events.MemoryPublisher
	outbox    *events.Outbox
	codec     *signature.Codec
	cfg       infrastructures.RewardsConfig
	verifier  stubVerifier

	audit       *AuditService
	campaigns   *CampaignService
	validator   *CouponValidator
	coupons     *CouponService
	issuance    *TicketIssuanceService
	redemptions *RedemptionService
	engagements *EngagementService
	tickets     *RaffleTicketService
	raffles     *RaffleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	codec, err := signature.NewCodec(testSecret)
	require.NoError(t, err)

	cfg := infrastructures.DefaultRewardsConfig()
	cfg.SigningSecret = testSecret

	env := &testEnv{
		db:        db,
		publisher: events.NewMemoryPublisher(),
		codec:     codec,
		cfg:       cfg,
		verifier:  stubVerifier{},
	}
	env.outbox = events.NewOutbox(db, env.publisher)
	v := infrastructures.NewValidator()

	env.audit = NewAuditService(db)
	env.campaigns = NewCampaignService(db, v, codec, env.audit)
	env.validator = NewCouponValidator(db, codec, env.audit, cfg)
	env.coupons = NewCouponService(db, v, env.validator, codec, env.audit, env.outbox, cfg)
	env.issuance = NewTicketIssuanceService(db, env.outbox, cfg)
	env.redemptions = NewRedemptionService(db, v, env.coupons, env.issuance, env.audit, env.outbox)
	env.engagements = NewEngagementService(db, v, env.issuance, env.outbox)
	env.tickets = NewRaffleTicketService(db, v, env.audit, env.outbox)
	env.raffles = NewRaffleService(db, v, env.verifier, locks.NewLocalLocker(), env.audit, env.outbox)

	env.setClock(testNow)
	return env
}

// setClock pins every service to at.
func (e *testEnv) setClock(at time.Time) {
	clock := pkg.FixedClock(at)
	e.campaigns.now = clock
	e.validator.now = clock
	e.coupons.now = clock
	e.issuance.now = clock
	e.redemptions.now = clock
	e.engagements.now = clock
	e.tickets.now = clock
	e.raffles.now = clock
}

type campaignOption func(*models.CampaignCreateRequest)

func withMaxUses(n int) campaignOption {
	return func(r *models.CampaignCreateRequest) { r.MaxUsesPerCoupon = n }
}

func withFixedDiscount(amount string) campaignOption {
	return func(r *models.CampaignCreateRequest) {
		d := decimal.RequireFromString(amount)
		r.DiscountAmount = &d
	}
}

func withRules(rules models.ApplicabilityRules) campaignOption {
	return func(r *models.CampaignCreateRequest) { r.Rules = rules }
}

func withRaffleTickets(n int) campaignOption {
	return func(r *models.CampaignCreateRequest) { r.DefaultRaffleTickets = n }
}

func withMaxUsesPerUser(n int) campaignOption {
	return func(r *models.CampaignCreateRequest) { r.MaxUsesPerUser = &n }
}

// activeCampaign creates an ACTIVE campaign valid around testNow.
func (e *testEnv) activeCampaign(t *testing.T, opts ...campaignOption) *models.Campaign {
	t.Helper()

	req := &models.CampaignCreateRequest{
		Name:             "Weekend fuel promo",
		MaxCoupons:       100,
		MaxUsesPerCoupon: 1,
		ValidFrom:        testNow.Add(-48 * time.Hour),
		ValidUntil:       testNow.Add(72 * time.Hour),
	}
	for _, opt := range opts {
		opt(req)
	}

	ctx := context.Background()
	campaign, err := e.campaigns.CreateCampaign(ctx, req)
	require.NoError(t, err)
	campaign, err = e.campaigns.UpdateCampaignStatus(ctx, campaign.ID, &models.CampaignStatusUpdateRequest{Status: models.CampaignStatusActive})
	require.NoError(t, err)
	return campaign
}

func (e *testEnv) generateCoupon(t *testing.T, campaign *models.Campaign) *models.Coupon {
	t.Helper()
	coupons, err := e.campaigns.GenerateCoupons(context.Background(), campaign.ID, &models.CouponGenerateRequest{Count: 1})
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	return &coupons[0]
}

func (e *testEnv) redemptionContext(coupon *models.Coupon, userID uuid.UUID, purchase, reference string) *models.RedemptionContext {
	return &models.RedemptionContext{
		UserID:               userID,
		Token:                coupon.QRToken,
		StationID:            "ST-001",
		PurchaseAmount:       decimal.RequireFromString(purchase),
		TransactionReference: reference,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func (e *testEnv) createAdvertisement(t *testing.T, id string, engagementType models.EngagementType, baseTickets int) *models.Advertisement {
	t.Helper()
	ad, err := e.engagements.CreateAdvertisement(context.Background(), &models.AdvertisementCreateRequest{
		ID:          id,
		Name:        "Advertisement " + id,
		Type:        engagementType,
		BaseTickets: baseTickets,
	})
	require.NoError(t, err)
	return ad
}
