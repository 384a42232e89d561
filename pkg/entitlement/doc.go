// Package entitlement decides feature access from a tenant's subscription
// status and denormalized plan limits. Checks fail closed: any state other
// than trialing or active denies access, as does any error loading the
// subscription. Limits keep their three-way meaning throughout: -1 unlimited,
// 0 unavailable on the plan, N a hard cap against current usage.
package entitlement
