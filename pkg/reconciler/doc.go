// Package reconciler consumes payment-provider webhook events and applies
// them to local subscription state. Every delivery is signature-verified
// before anything else, deduplicated by provider event ID, resolved to a
// tenant, and applied as an absolute target status through the lifecycle
// manager so redelivered and out-of-order events cannot corrupt the state
// machine.
package reconciler
