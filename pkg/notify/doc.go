// Package notify writes user-visible notification records (trial ending,
// payment failed, plan changed) as a side effect of subscription transitions.
// Records are append-only and keyed by tenant; optional best-effort email
// delivery via Postmark can be layered on top.
package notify
