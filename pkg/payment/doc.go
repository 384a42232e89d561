// Package payment abstracts the external payment provider behind a small
// capability interface (create customer, create subscription record, attach
// payment method, verify-and-parse webhooks) and normalizes provider webhook
// payloads into a closed event union. A Paddle implementation is included.
package payment
