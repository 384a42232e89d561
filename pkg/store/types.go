package store

import (
	"time"

	"github.com/shelfmetrics/billing/pkg/catalog"
)

// Status represents the billing state of a subscription.
type Status string

const (
	StatusTrialing     Status = "trialing"
	StatusTrialExpired Status = "trial_expired"
	StatusActive       Status = "active"
	StatusPastDue      Status = "past_due"
	StatusCancelled    Status = "cancelled"
)

// GrantsAccess reports whether the status allows feature access.
// Everything outside trialing/active fails closed.
func (s Status) GrantsAccess() bool {
	return s == StatusTrialing || s == StatusActive
}

// Metadata keys recording transition provenance on a subscription.
const (
	MetaPreviousPlan   = "previousPlan"
	MetaChangeReason   = "changeReason"
	MetaWebhookEventID = "webhookEventID"
	MetaProviderSubID  = "providerSubscriptionID"
)

// Subscription is the single billing record for a tenant. It is never
// physically deleted; cancellation keeps the row with StatusCancelled for
// audit and history.
type Subscription struct {
	UserID                string                    `bson:"_id" json:"userId"`
	SubscriptionID        string                    `bson:"subscription_id" json:"subscriptionId"`
	PlanID                string                    `bson:"plan_id" json:"planId"`
	Status                Status                    `bson:"status" json:"status"`
	TrialStart            time.Time                 `bson:"trial_start" json:"trialStart"`
	TrialEnd              time.Time                 `bson:"trial_end" json:"trialEnd"`
	Limits                map[catalog.Feature]int64 `bson:"limits" json:"limits"`
	Metadata              map[string]string         `bson:"metadata,omitempty" json:"metadata,omitempty"`
	PaymentMethodRequired bool                      `bson:"payment_method_required" json:"paymentMethodRequired"`
	CancelReason          string                    `bson:"cancel_reason,omitempty" json:"cancelReason,omitempty"`
	CancelledAt           *time.Time                `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CreatedAt             time.Time                 `bson:"created_at" json:"createdAt"`
	UpdatedAt             time.Time                 `bson:"updated_at" json:"updatedAt"`

	// Version guards conditional updates. Every successful write increments
	// it; an update carrying a stale version fails with ErrConflict.
	Version int64 `bson:"version" json:"-"`
}

// IsCancelled reports whether the subscription is in the terminal state.
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// SetMeta records a provenance entry, allocating the map on first use.
func (s *Subscription) SetMeta(key, value string) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	s.Metadata[key] = value
}

// PaymentMethodRecord links a tenant to its payment-provider customer and
// default payment method. At most one per tenant.
type PaymentMethodRecord struct {
	UserID             string    `bson:"_id" json:"userId"`
	ProviderCustomerID string    `bson:"provider_customer_id" json:"providerCustomerId"`
	PaymentMethodID    string    `bson:"payment_method_id" json:"paymentMethodId"`
	AttachedAt         time.Time `bson:"attached_at" json:"attachedAt"`
}

// PaymentEvent is an append-only history entry derived from provider
// webhooks. EventID is the provider-assigned identifier, which also makes
// appends idempotent under webhook redelivery.
type PaymentEvent struct {
	EventID    string    `bson:"_id" json:"eventId"`
	UserID     string    `bson:"user_id" json:"userId"`
	InvoiceID  string    `bson:"invoice_id,omitempty" json:"invoiceId,omitempty"`
	Amount     int64     `bson:"amount" json:"amount"`
	Currency   string    `bson:"currency,omitempty" json:"currency,omitempty"`
	Status     string    `bson:"status" json:"status"`
	OccurredAt time.Time `bson:"occurred_at" json:"occurredAt"`
	RecordedAt time.Time `bson:"recorded_at" json:"recordedAt"`
}
