// Package httpapi groups HTTP handlers by domain so route behavior is easier to locate.
//
// Domain files:
// - businesses
// - staff and PINs
// - departments, members, and the handoff inbox
// - customers
// - jobs and handoff decisions
// - inventory and stock adjustments
// - pricing rules and POS quotes
// - sales
// - invoices
// - accounts, ledgers, and journal entries
// - reports and the catalog document
//
// middleware.go wraps the router with panic recovery, access logging,
// request metrics, CORS, and per-client rate limiting.
package httpapi
