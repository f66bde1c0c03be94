package models

import (
	"time"
)

// Routing keys published on the event bus.
const (
	RoutingRedemptionCreated   = "redemption.created"
	RoutingRedemptionVoided    = "redemption.voided"
	RoutingTicketsGenerated    = "raffle.tickets.generated"
	RoutingWinnersSelected     = "raffle.winners.selected"
	RoutingTicketUsed          = "raffle.ticket.used"
	RoutingTicketWon           = "raffle.ticket.won"
	RoutingTicketClaimed       = "raffle.ticket.claimed"
	RoutingTicketTransferred   = "raffle.ticket.transferred"
	RoutingTicketStatusChanged = "raffle.ticket.status_changed"
	RoutingCouponStatusChanged = "coupon.status_changed"
	RoutingEngagementCompleted = "engagement.completed"
)

// Event is a domain event returned by lifecycle methods. Services write it to
// the outbox inside the surrounding transaction.
type Event struct {
	RoutingKey string         `json:"routing_key"`
	EntityName string         `json:"entity_name"`
	EntityID   string         `json:"entity_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func NewEvent(routingKey string, entity Identifiable, at time.Time, payload map[string]any) Event {
	return Event{
		RoutingKey: routingKey,
		EntityName: entity.EntityName(),
		EntityID:   entity.EntityID(),
		OccurredAt: at,
		Payload:    payload,
	}
}
