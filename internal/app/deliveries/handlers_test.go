package deliveries

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/events"
	"github.com/safatanc/gsalt-rewards/internal/app/locks"
	"github.com/safatanc/gsalt-rewards/internal/app/middlewares"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/app/services"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
	"github.com/safatanc/gsalt-rewards/pkg/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	adminToken = "admin-token"
	userToken  = "user-token"
)

type testServer struct {
	app   *fiber.App
	admin models.ConnectUser
	user  models.ConnectUser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	ts := &testServer{
		admin: models.ConnectUser{ID: uuid.New(), GlobalRole: models.ConnectUserRoleAdmin, IsEmailVerified: true},
		user:  models.ConnectUser{ID: uuid.New(), GlobalRole: models.ConnectUserRoleUser, IsEmailVerified: true},
	}

	connect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *models.ConnectUser
		switch r.Header.Get("Authorization") {
		case "Bearer " + adminToken:
			user = &ts.admin
		case "Bearer " + userToken:
			user = &ts.user
		}
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(models.WebResponse[any]{Message: "invalid token"})
			return
		}
		json.NewEncoder(w).Encode(models.WebResponse[models.ConnectUser]{Success: true, Data: *user})
	}))
	t.Cleanup(connect.Close)

	cfg := infrastructures.DefaultRewardsConfig()
	cfg.SigningSecret = "handler-test-secret"
	codec, err := signature.NewCodec(cfg.SigningSecret)
	require.NoError(t, err)

	v := infrastructures.NewValidator()
	outbox := events.NewOutbox(db, events.NewMemoryPublisher())
	connectService := services.NewConnectService(&infrastructures.AppConfig{CONNECT_BASE_URL: connect.URL})
	audit := services.NewAuditService(db)
	campaigns := services.NewCampaignService(db, v, codec, audit)
	coupons := services.NewCouponService(db, v, services.NewCouponValidator(db, codec, audit, cfg), codec, audit, outbox, cfg)
	issuance := services.NewTicketIssuanceService(db, outbox, cfg)
	redemptions := services.NewRedemptionService(db, v, coupons, issuance, audit, outbox)
	engagements := services.NewEngagementService(db, v, issuance, outbox)
	tickets := services.NewRaffleTicketService(db, v, audit, outbox)
	raffles := services.NewRaffleService(db, v, connectService, locks.NewLocalLocker(), audit, outbox)

	auth := middlewares.NewAuthMiddleware(connectService)
	limits := middlewares.NewRateLimitMiddleware(ratelimit.NewLocalLimiter())

	ts.app = fiber.New()
	NewHealthHandler().RegisterRoutes(ts.app)
	api := ts.app.Group("/api/v1")
	NewCampaignHandler(campaigns, auth, limits).RegisterRoutes(api)
	NewCouponHandler(coupons, auth, limits).RegisterRoutes(api)
	NewRedemptionHandler(redemptions, auth, limits).RegisterRoutes(api)
	NewEngagementHandler(engagements, auth, limits).RegisterRoutes(api)
	NewRaffleHandler(raffles, auth, limits).RegisterRoutes(api)
	NewTicketHandler(tickets, auth).RegisterRoutes(api)
	NewAuditHandler(audit, auth).RegisterRoutes(api)

	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, models.WebResponse[json.RawMessage]) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)

	var out models.WebResponse[json.RawMessage]
	if resp.Header.Get("Content-Type") == fiber.MIMEApplicationJSON {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func decodeData[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	resp, _ = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestValidateUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/coupons/validate", "", models.CouponValidateRequest{
		Token:     "GSL_v1_000001_20260310120000_deadbeef_NOPE",
		StationID: "ST-001",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("X-RateLimit-Limit"))

	result := decodeData[models.ValidationResult](t, body.Data)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{models.ValidationCouponNotFound}, result.Errors)
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/redemptions", "", map[string]string{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, body.Success)

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/tickets/me", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/campaigns", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", body.Code)
}

func TestRedeemOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().UTC()

	resp, body := ts.do(t, http.MethodPost, "/api/v1/campaigns", adminToken, map[string]any{
		"name":                   "Station opening",
		"discount_amount":        "5.00",
		"default_raffle_tickets": 1,
		"max_coupons":            10,
		"max_uses_per_coupon":    1,
		"valid_from":             now.Add(-time.Hour),
		"valid_until":            now.Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body.Data))
	campaign := decodeData[models.Campaign](t, body.Data)

	resp, _ = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/campaigns/%d/status", campaign.ID), adminToken, models.CampaignStatusUpdateRequest{Status: models.CampaignStatusActive})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%d/coupons", campaign.ID), adminToken, models.CouponGenerateRequest{Count: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	coupons := decodeData[[]models.Coupon](t, body.Data)
	require.Len(t, coupons, 1)
	coupon := coupons[0]

	redeem := map[string]any{
		"coupon_id":             coupon.ID.String(),
		"token":                 coupon.QRToken,
		"station_id":            "ST-001",
		"purchase_amount":       "60.00",
		"transaction_reference": "POS-HTTP-1",
	}

	resp, body = ts.do(t, http.MethodPost, "/api/v1/redemptions", userToken, redeem)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body.Data))
	outcome := decodeData[models.RedemptionOutcome](t, body.Data)
	assert.False(t, outcome.Replayed)
	assert.Equal(t, ts.user.ID, outcome.Redemption.UserID)
	assert.NotEmpty(t, outcome.Tickets)

	resp, body = ts.do(t, http.MethodPost, "/api/v1/redemptions", userToken, redeem)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	replay := decodeData[models.RedemptionOutcome](t, body.Data)
	assert.True(t, replay.Replayed)
	assert.Equal(t, outcome.Redemption.ID, replay.Redemption.ID)

	resp, body = ts.do(t, http.MethodGet, "/api/v1/tickets/me", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decodeData[models.Pagination[[]models.RaffleTicket]](t, body.Data)
	assert.Len(t, page.Items, len(outcome.Tickets))

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/coupons/"+coupon.ID.String(), userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEngagementRewardComesFromAdvertisement(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/advertisements", userToken, models.AdvertisementCreateRequest{
		ID: "AD-1", Name: "Fuel week", Type: models.EngagementTypeView, BaseTickets: 1,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/advertisements", adminToken, models.AdvertisementCreateRequest{
		ID: "AD-1", Name: "Fuel week", Type: models.EngagementTypeView, BaseTickets: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body.Data))

	resp, body = ts.do(t, http.MethodPost, "/api/v1/engagements", userToken, map[string]any{
		"advertisement_id": "AD-1",
		"type":             "COMPLETION",
		"base_tickets":     300,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body.Data))
	engagement := decodeData[models.Engagement](t, body.Data)
	assert.Equal(t, models.EngagementTypeView, engagement.Type)
	assert.Equal(t, 1, engagement.BaseTickets)

	resp, body = ts.do(t, http.MethodPost, "/api/v1/engagements/"+engagement.ID.String()+"/complete", userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body.Data))
	completed := decodeData[struct {
		Issuance models.IssuanceResult `json:"issuance"`
	}](t, body.Data)
	assert.Len(t, completed.Issuance.Tickets, 1)
}
