package store

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrPaymentMethodNotFound     = errors.New("payment method not found")

	// ErrConflict signals an optimistic-concurrency collision: the record was
	// modified between the caller's read and write. Reload and retry, or
	// surface to the caller.
	ErrConflict = errors.New("subscription modified concurrently")

	ErrStoreFailure = errors.New("document store operation failed")
)
