package payment

import "context"

// Provider is the capability interface the engine consumes from the payment
// provider. Implementations use the provider's official SDK and keep
// provider-specific quirks (customer ID formats, metadata fields, signature
// schemes) behind this boundary so the lifecycle and reconciliation logic
// stay provider-agnostic.
type Provider interface {
	// CreateCustomer registers the tenant with the provider and returns the
	// provider-assigned customer ID.
	CreateCustomer(ctx context.Context, userID, email string) (string, error)

	// CreateSubscription creates the provider-side subscription record for a
	// customer on the given plan and returns its identifier.
	CreateSubscription(ctx context.Context, customerID, planID string) (string, error)

	// AttachPaymentMethod links a captured payment method to the customer as
	// their default.
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	// ParseWebhook verifies the event's authenticity against the signing
	// secret and normalizes the payload into an Event. Verification happens
	// before any parsing; a bad signature returns
	// ErrWebhookVerificationFailed and nothing else is inspected.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}
