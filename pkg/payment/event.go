package payment

import "time"

// Kind is the closed set of provider events the engine reconciles. Payloads
// are normalized into this union at the provider boundary so downstream
// handling is an exhaustive switch rather than shape-probing raw JSON.
type Kind string

const (
	KindTrialWillEnd        Kind = "trial_will_end"
	KindSubscriptionUpdated Kind = "subscription_updated"
	KindPaymentFailed       Kind = "payment_failed"
	KindPaymentSucceeded    Kind = "payment_succeeded"

	// KindUnknown marks event types the engine does not reconcile. They are
	// acknowledged without state change.
	KindUnknown Kind = "unknown"
)

// Event is a normalized webhook event.
type Event struct {
	EventID        string    // provider-assigned event identifier, used for dedup
	Kind           Kind      // normalized event kind
	ProviderEvent  string    // original provider event name
	UserID         string    // tenant ID from event metadata, may be empty
	CustomerID     string    // provider customer ID, fallback tenant resolution
	SubscriptionID string    // provider subscription ID
	Status         string    // provider-reported subscription status
	PlanID         string    // plan/price the event refers to
	InvoiceID      string    // set on payment events
	Amount         int64     // smallest currency unit, set on payment events
	Currency       string    // ISO 4217, set on payment events
	OccurredAt     time.Time // provider-reported occurrence time
}
