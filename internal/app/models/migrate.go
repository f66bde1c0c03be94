package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table owned by the rewards engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Campaign{},
		&Coupon{},
		&CouponTokenRevision{},
		&Redemption{},
		&Engagement{},
		&TicketIssuance{},
		&RaffleTicket{},
		&TicketTransfer{},
		&Raffle{},
		&RafflePrize{},
		&RaffleEntry{},
		&Winner{},
		&AuditLog{},
		&StatusHistory{},
		&OutboxEvent{},
		&Advertisement{},
	)
}
