// Package events publishes lifecycle and disclosure events to an external
// stream. Delivery is best effort: consumers get notifications, correctness
// never depends on them.
package events

import (
	"context"
	"time"
)

// Event types emitted by the core subsystems.
const (
	TypeDeactivationRequested = "account.deactivation_requested"
	TypeDeactivationCancelled = "account.deactivation_cancelled"
	TypeAccountDeactivated    = "account.deactivated"
	TypeReactivationRequested = "account.reactivation_requested"
	TypeReactivationReviewed  = "account.reactivation_reviewed"
	TypeAccountRestored       = "account.restored"
	TypeFieldDisclosed        = "field.disclosed"
	TypeCreditsGranted        = "ledger.credits_granted"
)

// Event is one notification. Payload carries event-specific details.
type Event struct {
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher delivers events. Implementations must not block the caller beyond
// serialization; delivery failures are theirs to log.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards all events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
