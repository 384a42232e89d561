// Package billing wires the subscription lifecycle, entitlement, webhook
// reconciliation, and notification packages into a single engine and exposes
// it over a mountable chi router. Applications construct the engine once with
// their storage and provider implementations and mount the handler under
// their API prefix.
package billing
