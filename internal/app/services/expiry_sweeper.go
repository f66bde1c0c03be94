package services

import (
	"context"
	"time"

	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// Expirer moves records whose lifetime has ended to their expired state.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpirySweeper periodically expires coupons and tickets past their end date.
type ExpirySweeper struct {
	coupons  Expirer
	tickets  Expirer
	interval time.Duration
}

func NewExpirySweeper(coupons *CouponService, tickets *RaffleTicketService, cfg infrastructures.RewardsConfig) *ExpirySweeper {
	return &ExpirySweeper{
		coupons:  coupons,
		tickets:  tickets,
		interval: cfg.ExpirySweepInterval,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		logrus.Warn("Expiry sweeper disabled, interval is not positive")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, _, err := s.SweepOnce(ctx); err != nil {
			logrus.WithError(err).Error("Expiry sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce returns how many coupons and tickets were expired. A failure on
// one side does not stop the other.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (coupons, tickets int, err error) {
	coupons, couponErr := s.coupons.ExpireDue(ctx)
	tickets, ticketErr := s.tickets.ExpireDue(ctx)
	err = multierr.Combine(couponErr, ticketErr)

	if coupons > 0 || tickets > 0 {
		logrus.WithFields(logrus.Fields{
			"coupons": coupons,
			"tickets": tickets,
		}).Info("Expired due records")
	}
	return coupons, tickets, err
}
