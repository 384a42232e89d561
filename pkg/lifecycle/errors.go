package lifecycle

import "errors"

var (
	// ErrPaymentMethodRequired is returned when an upgrade is attempted from
	// a delinquent state with no payment method supplied or on file. Higher
	// entitlements are never granted without payment on record.
	ErrPaymentMethodRequired = errors.New("payment method required")

	// ErrInvalidTransition is returned when a requested status change is not
	// in the legality table for the subscription's current status.
	ErrInvalidTransition = errors.New("invalid subscription status transition")
)
