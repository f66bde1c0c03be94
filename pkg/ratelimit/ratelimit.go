// Package ratelimit throttles callers per key. The Redis limiter shares its
// window across instances; the local limiter keeps a token bucket per key in
// memory for single instance runs and tests.
package ratelimit

import (
	"context"
	"time"
)

// Rate allows Requests per Window.
type Rate struct {
	Requests int
	Window   time.Duration
}

// Info describes the limit state after a call to Allow.
type Info struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

type Limiter interface {
	// Allow records one request for key and reports whether it fits the rate.
	Allow(ctx context.Context, key string, limit Rate) (bool, Info)
	Reset(ctx context.Context, key string) error
}

// Limits applied to the rewards endpoints.
var (
	// ValidateLimit covers point of sale token checks.
	ValidateLimit = Rate{Requests: 60, Window: time.Minute}

	// RedeemLimit covers redemptions and raffle entries.
	RedeemLimit = Rate{Requests: 30, Window: time.Minute}

	// AdminLimit covers management endpoints such as draws and coupon generation.
	AdminLimit = Rate{Requests: 20, Window: time.Minute}

	// PublicLimit covers read endpoints.
	PublicLimit = Rate{Requests: 120, Window: time.Minute}
)
