package audit

import (
	"context"
	"time"
)

// EventCategory classifies ledger events by their primary purpose.
// Sinks route categories to separate topics with different retention.
type EventCategory string

const (
	// CategoryCompliance covers value movements in and out of custody.
	// Examples: deposits, withdrawals, bonus payouts, failed payouts.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who may do what.
	// Examples: whitelist membership and enforcement changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine issuance activity.
	// Examples: group creation, token minting, bonus toggles.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from ledger services after a transition commits. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Actor is the calling account (hex address).
	Actor string
	// Subject is the account affected, when different from Actor.
	Subject   string
	GroupID   uint64
	FirstID   uint64
	Quantity  uint64
	Amount    string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Whitelist events
	EventWhitelistModeChanged AuditEvent = "whitelist_mode_changed"
	EventWhitelistChanged     AuditEvent = "whitelist_changed"

	// Bank events
	EventDeposited AuditEvent = "bank_deposited"
	EventWithdrawn AuditEvent = "bank_withdrawn"

	// Issuance events
	EventGroupCreated   AuditEvent = "group_created"
	EventTokensMinted   AuditEvent = "tokens_minted"
	EventBonusToggled   AuditEvent = "group_bonus_toggled"
	EventBonusPaid      AuditEvent = "bonus_paid"
	EventPayoutFailed   AuditEvent = "payout_failed"
	EventExcessCredited AuditEvent = "payment_excess_credited"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDeposited:      CategoryCompliance,
	EventWithdrawn:      CategoryCompliance,
	EventBonusPaid:      CategoryCompliance,
	EventPayoutFailed:   CategoryCompliance,
	EventExcessCredited: CategoryCompliance,

	EventWhitelistModeChanged: CategorySecurity,
	EventWhitelistChanged:     CategorySecurity,

	EventGroupCreated: CategoryOperations,
	EventTokensMinted: CategoryOperations,
	EventBonusToggled: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
