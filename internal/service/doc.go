// Package service groups application logic by business area to keep maintenance localized.
//
// Domain files:
// - businesses: tenant setup and the seeded chart of accounts
// - staff: profiles and POS PINs
// - departments: teams and membership
// - customers: customer records
// - jobs: job lifecycle and department handoffs
// - inventory: stock items and stock adjustments
// - pricing: pricing rules and cart quotes
// - sales: POS tickets and voids
// - invoices: invoice lifecycle and payments
// - accounts: chart of accounts and the journal
// - reports: trial balance, sales summary, low stock
// - migration: opening balances and ledger verification
// - catalog: catalog import and export
package service
