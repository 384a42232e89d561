package store

import "context"

// SubscriptionStore persists subscription records, one per tenant.
type SubscriptionStore interface {
	// Get retrieves the tenant's subscription.
	// Returns ErrSubscriptionNotFound if none exists.
	Get(ctx context.Context, userID string) (*Subscription, error)

	// Create inserts a new subscription guarded on non-existence.
	// Returns ErrSubscriptionAlreadyExists if the tenant already has one.
	Create(ctx context.Context, sub *Subscription) error

	// Update persists the subscription conditionally on sub.Version matching
	// the stored version, incrementing it on success. Returns ErrConflict if
	// a concurrent write advanced the version first.
	Update(ctx context.Context, sub *Subscription) error
}

// PaymentMethodStore persists the tenant's payment-provider linkage.
type PaymentMethodStore interface {
	// Get returns the tenant's payment method record.
	// Returns ErrPaymentMethodNotFound if none is on file.
	Get(ctx context.Context, userID string) (*PaymentMethodRecord, error)

	// Save creates or replaces the tenant's payment method record.
	Save(ctx context.Context, rec *PaymentMethodRecord) error

	// FindByCustomerID resolves a provider customer ID back to a tenant.
	// Used by webhook reconciliation when event metadata lacks a user ID.
	FindByCustomerID(ctx context.Context, customerID string) (*PaymentMethodRecord, error)
}

// PaymentEventStore appends webhook-derived payment history.
type PaymentEventStore interface {
	// Append records a payment event. Appending an event ID that was already
	// recorded is a no-op, which keeps webhook redelivery harmless.
	Append(ctx context.Context, event *PaymentEvent) error

	// ListByUser returns the tenant's payment history, newest first.
	ListByUser(ctx context.Context, userID string) ([]PaymentEvent, error)
}
