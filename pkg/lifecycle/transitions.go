package lifecycle

import "github.com/shelfmetrics/billing/pkg/store"

// transitions is the legality table for status changes. Every mutation of
// Subscription.Status goes through this table, whether it originates from a
// user request or from webhook reconciliation. Cancelled is terminal.
var transitions = map[store.Status][]store.Status{
	store.StatusTrialing:     {store.StatusTrialExpired, store.StatusActive, store.StatusCancelled},
	store.StatusTrialExpired: {store.StatusActive, store.StatusCancelled},
	store.StatusActive:       {store.StatusPastDue, store.StatusCancelled},
	store.StatusPastDue:      {store.StatusActive, store.StatusCancelled},
	store.StatusCancelled:    {},
}

// canTransition reports whether moving from one status to another is legal.
func canTransition(from, to store.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
