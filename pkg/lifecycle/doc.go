// Package lifecycle implements the subscription state machine: creation with
// a 14-day trial, lazy read-time trial expiry, upgrade/downgrade with
// payment-method gating, cancellation, and the absolute-status transitions
// applied during webhook reconciliation.
//
// States are trialing, trial_expired, active, past_due, and cancelled;
// cancelled is terminal. Every status mutation passes the legality table, and
// every write is conditional on the record version so concurrent transitions
// are detected rather than overwritten. On a version conflict an operation
// reloads the record and retries once against fresh state before surfacing
// store.ErrConflict.
package lifecycle
