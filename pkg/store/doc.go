// Package store provides typed persistence for subscription records, payment
// method linkages, and append-only payment history against a document store.
//
// Every record is partitioned by user ID; no operation reads or writes across
// tenants. Subscription writes are conditional: creation is guarded on
// non-existence and updates on a version counter, so concurrent transitions
// surface as ErrSubscriptionAlreadyExists or ErrConflict instead of lost
// writes.
//
// Two implementations are provided: MongoDB-backed stores for production and
// mutex-guarded in-memory stores for tests and local development.
package store
