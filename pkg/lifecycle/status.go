package lifecycle

import (
	"context"
	"fmt"

	"github.com/shelfmetrics/billing/pkg/store"
	"github.com/shelfmetrics/billing/pkg/trial"
)

// TrialStatus is the billing-state summary shown to tenants.
type TrialStatus struct {
	Status                store.Status `json:"status"`
	DaysRemaining         int          `json:"daysRemaining,omitempty"`
	RequiresPaymentMethod bool         `json:"requiresPaymentMethod"`
	HasPaymentMethod      bool         `json:"hasPaymentMethod"`
	Message               string       `json:"message"`
}

// TrialAndPaymentStatus summarizes the tenant's trial and payment state.
// Reads go through Get, so lazy trial expiry applies here like everywhere
// else.
func (m *Manager) TrialAndPaymentStatus(ctx context.Context, userID string) (*TrialStatus, error) {
	sub, err := m.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ts := &TrialStatus{
		Status:                sub.Status,
		RequiresPaymentMethod: sub.PaymentMethodRequired,
		HasPaymentMethod:      m.hasPaymentMethod(ctx, userID),
	}

	switch sub.Status {
	case store.StatusTrialing:
		ts.DaysRemaining = trial.DaysRemainingAt(sub.TrialEnd, m.now().UTC())
		if ts.DaysRemaining == 1 {
			ts.Message = "Your trial ends tomorrow."
		} else {
			ts.Message = fmt.Sprintf("Your trial ends in %d days.", ts.DaysRemaining)
		}
	case store.StatusTrialExpired:
		ts.Message = "Your trial has ended. Add a payment method to keep access."
	case store.StatusActive:
		ts.Message = "Your subscription is active."
	case store.StatusPastDue:
		ts.Message = "Your last payment failed. Update your payment method to restore access."
	case store.StatusCancelled:
		ts.Message = "Your subscription is cancelled."
	}

	return ts, nil
}
