package billing

import (
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// WebhookEvent contains information about a successful webhook processing event.
// This event is passed to the WebhookCallback after the record has been
// written to storage.
type WebhookEvent struct {
	// Provider is the billing provider name ("paddle")
	Provider string

	// EventType is the provider-specific event type, "unknown" when absent
	// Paddle: "subscription.activated", "transaction.completed", etc.
	EventType string

	// ReceivedAt is when the delivery was processed
	ReceivedAt time.Time

	// Keys lists the store keys the record was written under
	Keys []string

	// Record is the stored projection
	Record *accounts.Record

	// SignatureEncoding is "hex", "base64" or "" when verification was skipped
	SignatureEncoding string
}
