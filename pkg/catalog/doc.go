// Package catalog defines the fixed plan catalog: plan identifiers, pricing,
// and per-feature quotas. Plans are loaded once at startup from a Source
// (static or YAML file) and validated; the catalog is immutable afterwards.
//
// A limit of -1 means unlimited, 0 means the feature is unavailable on the
// plan, and any positive value is a hard cap. Subscriptions snapshot plan
// limits at creation and on every plan change, so editing the catalog never
// silently changes an existing subscriber's entitlements.
package catalog
