package middlewares

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/pkg"
	"github.com/safatanc/gsalt-rewards/pkg/ratelimit"
)

type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// LimitByIP rate limits by client address.
func (m *RateLimitMiddleware) LimitByIP(limit ratelimit.Rate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return m.handle(c, "ip:"+getIPAddress(c), limit)
	}
}

// LimitByUser rate limits by the authenticated user and falls back to the
// client address for anonymous calls.
func (m *RateLimitMiddleware) LimitByUser(limit ratelimit.Rate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := c.Locals(LocalUserID); userID != nil {
			return m.handle(c, fmt.Sprintf("user:%v", userID), limit)
		}
		return m.handle(c, "ip:"+getIPAddress(c), limit)
	}
}

func (m *RateLimitMiddleware) handle(c *fiber.Ctx, key string, limit ratelimit.Rate) error {
	allowed, info := m.limiter.Allow(c.UserContext(), key, limit)

	c.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset.Unix(), 10))

	if !allowed {
		return pkg.ErrorResponse(c, errors.NewTooManyRequestsError("Rate limit exceeded"))
	}

	return c.Next()
}

func getIPAddress(c *fiber.Ctx) string {
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}

	if xrip := c.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	return c.IP()
}
