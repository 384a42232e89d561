package payment

import "errors"

var (
	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret       = errors.New("billing provider webhook secret is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrWebhookVerificationFailed  = errors.New("webhook signature verification failed")
	ErrMissingCustomerID          = errors.New("provider customer ID is required")
	ErrMissingPaymentMethodID     = errors.New("payment method ID is required")
	ErrProviderFailure            = errors.New("billing provider request failed")
)
