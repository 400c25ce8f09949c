package service

import (
	"context"
	"errors"
	"testing"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func TestServiceAccountRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)
	codes := accountIDsByCode(t, svc, tenant)

	rent, err := svc.CreateAccount(ctx, tenant.manager, domain.Account{Code: " 6000 ", Name: "Rent", Type: "expense"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if rent.Code != "6000" || rent.System {
		t.Fatalf("unexpected account: %+v", rent)
	}
	if _, err := svc.CreateAccount(ctx, tenant.manager, domain.Account{Code: "6000", Name: "Rent again", Type: "expense"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected duplicate code to conflict, got %v", err)
	}
	if _, err := svc.CreateAccount(ctx, tenant.manager, domain.Account{Code: "60a", Name: "Bad", Type: "expense"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected non-numeric code to fail, got %v", err)
	}
	if _, err := svc.CreateAccount(ctx, tenant.staff, domain.Account{Code: "6100", Name: "Power", Type: "expense"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff account create to be forbidden, got %v", err)
	}

	cash, err := svc.GetAccount(ctx, tenant.staff, codes[domain.AccountCodeCash])
	if err != nil {
		t.Fatalf("get cash: %v", err)
	}
	_, err = svc.UpdateAccount(ctx, tenant.manager, cash.ID, domain.Account{Code: "1001", Name: cash.Name, Type: cash.Type})
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "code" {
		t.Fatalf("expected code field error on system account, got %v", err)
	}
	renamed, err := svc.UpdateAccount(ctx, tenant.manager, cash.ID, domain.Account{Code: cash.Code, Name: "Till", Type: cash.Type})
	if err != nil {
		t.Fatalf("rename system account: %v", err)
	}
	if renamed.Name != "Till" || !renamed.System {
		t.Fatalf("unexpected renamed account: %+v", renamed)
	}
	if err := svc.DeleteAccount(ctx, tenant.manager, cash.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected system account delete to conflict, got %v", err)
	}

	if _, err := svc.PostJournalEntry(ctx, tenant.manager, domain.JournalEntry{
		EntryDate: "2026-03-03",
		Lines:     []domain.JournalLine{domain.Debit(rent.ID, 500, ""), domain.Credit(cash.ID, 500, "")},
	}); err != nil {
		t.Fatalf("post rent: %v", err)
	}
	if err := svc.DeleteAccount(ctx, tenant.manager, rent.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected used account delete to conflict, got %v", err)
	}

	power, err := svc.CreateAccount(ctx, tenant.manager, domain.Account{Code: "6100", Name: "Power", Type: "expense"})
	if err != nil {
		t.Fatalf("create power: %v", err)
	}
	if err := svc.DeleteAccount(ctx, tenant.manager, power.ID); err != nil {
		t.Fatalf("delete unused account: %v", err)
	}
	if _, err := svc.GetAccount(ctx, tenant.staff, power.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted account to be not found, got %v", err)
	}
}

func TestServiceJournalPostingAndReversal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)
	codes := accountIDsByCode(t, svc, tenant)
	cash := codes[domain.AccountCodeCash]
	equity := codes[domain.AccountCodeOwnerEquity]

	_, err := svc.PostJournalEntry(ctx, tenant.manager, domain.JournalEntry{
		EntryDate: "2026-03-01",
		Lines:     []domain.JournalLine{domain.Debit(cash, 100, ""), domain.Credit(equity, 90, "")},
	})
	if !errors.Is(err, domain.ErrUnbalanced) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unbalanced entry to fail, got %v", err)
	}

	_, err = svc.PostJournalEntry(ctx, tenant.manager, domain.JournalEntry{
		EntryDate: "2026-03-01",
		Lines:     []domain.JournalLine{{AccountID: cash}, domain.Credit(equity, 90, "")},
	})
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "lines[0]" {
		t.Fatalf("expected lines[0] field error, got %v", err)
	}

	_, err = svc.PostJournalEntry(ctx, tenant.manager, domain.JournalEntry{
		EntryDate: "2026-03-01",
		Lines:     []domain.JournalLine{domain.Debit(cash, 100, ""), domain.Credit("acct_missing", 100, "")},
	})
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "lines[1].account_id" {
		t.Fatalf("expected lines[1].account_id field error, got %v", err)
	}

	if _, err := svc.PostJournalEntry(ctx, tenant.staff, domain.JournalEntry{
		EntryDate: "2026-03-01",
		Lines:     []domain.JournalLine{domain.Debit(cash, 100, ""), domain.Credit(equity, 100, "")},
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff posting to be forbidden, got %v", err)
	}

	posted, err := svc.PostJournalEntry(ctx, tenant.manager, domain.JournalEntry{
		EntryDate: "2026-03-01",
		Memo:      " Owner capital ",
		Source:    domain.SourceSale,
		Lines:     []domain.JournalLine{domain.Debit(cash, 10000, ""), domain.Credit(equity, 10000, "")},
	})
	if err != nil {
		t.Fatalf("post entry: %v", err)
	}
	if posted.Source != domain.SourceManual || posted.Memo != "Owner capital" || posted.CreatedBy != "manager" {
		t.Fatalf("unexpected posted entry: %+v", posted)
	}

	reversal, err := svc.ReverseJournalEntry(ctx, tenant.manager, posted.ID, domain.ReverseRequest{Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("reverse entry: %v", err)
	}
	if reversal.ReversesID != posted.ID || reversal.Source != domain.SourceReversal {
		t.Fatalf("unexpected reversal: %+v", reversal)
	}
	assertLine(t, reversal, cash, 0, 10000)
	assertLine(t, reversal, equity, 10000, 0)

	if _, err := svc.ReverseJournalEntry(ctx, tenant.manager, posted.ID, domain.ReverseRequest{Date: "2026-03-02"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected second reversal to conflict, got %v", err)
	}
	if _, err := svc.ReverseJournalEntry(ctx, tenant.manager, reversal.ID, domain.ReverseRequest{Date: "2026-03-02"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected reversal of a reversal to conflict, got %v", err)
	}
	if _, err := svc.ReverseJournalEntry(ctx, tenant.manager, posted.ID, domain.ReverseRequest{Date: "02/03/2026"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected bad reversal date to fail, got %v", err)
	}

	original, err := svc.GetJournalEntry(ctx, tenant.staff, posted.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.ReversedByID != reversal.ID {
		t.Fatalf("expected original marked reversed, got %+v", original)
	}

	ledger, err := svc.AccountLedger(ctx, tenant.staff, cash, "2026-03-02", "")
	if err != nil {
		t.Fatalf("account ledger: %v", err)
	}
	if ledger.OpeningCents != 10000 || ledger.ClosingCents != 0 || len(ledger.Lines) != 1 {
		t.Fatalf("unexpected ledger: %+v", ledger)
	}
	if ledger.Lines[0].EntryID != reversal.ID || ledger.Lines[0].BalanceCents != 0 {
		t.Fatalf("unexpected ledger line: %+v", ledger.Lines[0])
	}
	if _, err := svc.AccountLedger(ctx, tenant.staff, cash, "2026-03-05", "2026-03-01"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected inverted ledger range to fail, got %v", err)
	}
	if _, err := svc.AccountLedger(ctx, tenant.staff, "acct_missing", "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected missing account to be not found, got %v", err)
	}

	_, err = svc.TrialBalance(ctx, tenant.staff, "yesterday")
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "as_of" {
		t.Fatalf("expected as_of field error, got %v", err)
	}
	report, err := svc.TrialBalance(ctx, tenant.staff, "2026-03-01")
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	if !report.Balanced || report.TotalDebitCents != 10000 || report.TotalCreditCents != 10000 {
		t.Fatalf("unexpected trial balance: %+v", report)
	}
	for _, row := range report.Rows {
		if row.Code == domain.AccountCodeCash && row.BalanceCents != 10000 {
			t.Fatalf("expected cash 10000 as of the first, got %+v", row)
		}
	}

	entries, err := svc.ListJournalEntries(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
}

func TestServiceMigrateOpeningBalances(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)
	businessID := tenant.business.ID
	operator := ports.AuthContext{UserID: "operator", Roles: []string{domain.RoleOwner}}

	seedLegacyRecords(t, svc, tenant)

	if _, err := svc.MigrateOpeningBalances(ctx, tenant.staff, businessID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff migration to be forbidden, got %v", err)
	}
	foreign := ports.AuthContext{UserID: "m", BusinessID: "biz_other", Roles: []string{domain.RoleManager}}
	if _, err := svc.MigrateOpeningBalances(ctx, foreign, businessID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected cross-tenant migration to be forbidden, got %v", err)
	}
	_, err := svc.MigrateOpeningBalances(ctx, ports.AuthContext{Roles: []string{domain.RoleOwner}}, businessID)
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "user_id" {
		t.Fatalf("expected user_id field error, got %v", err)
	}

	calls := 0
	flaky := *svc
	flaky.repo = flakyJournalRepo{Repository: svc.repo, calls: &calls, failOn: 2}
	if _, err := flaky.MigrateOpeningBalances(ctx, operator, businessID); err == nil {
		t.Fatal("expected failing journal write to abort the migration")
	}
	if openingEntries(t, svc, tenant) != 0 {
		t.Fatal("expected aborted migration to leave no opening entries")
	}

	result, err := svc.MigrateOpeningBalances(ctx, operator, businessID)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	want := map[string]int64{
		domain.OpeningInventory:   7200,
		domain.OpeningReceivables: 7000,
		domain.OpeningCash:        6200,
		domain.OpeningSalesTax:    1200,
	}
	if len(result.Entries) != len(want) {
		t.Fatalf("expected four opening lines, got %+v", result.Entries)
	}
	for _, line := range result.Entries {
		if line.AmountCents != want[line.Kind] || line.EntryID == "" || line.Skipped {
			t.Fatalf("unexpected opening line: %+v", line)
		}
	}
	if !result.Balanced || result.TotalDebitCents != 21600 || result.EntryDate != "2026-03-10" {
		t.Fatalf("unexpected migration result: %+v", result)
	}
	if openingEntries(t, svc, tenant) != 4 {
		t.Fatal("expected four opening entries")
	}

	if _, err := svc.MigrateOpeningBalances(ctx, operator, businessID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected second migration to conflict, got %v", err)
	}
}

func TestServiceMigrateOpeningBalancesSkipsZeroAmounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)

	result, err := svc.MigrateOpeningBalances(ctx, tenant.owner, tenant.business.ID)
	if err != nil {
		t.Fatalf("migrate empty business: %v", err)
	}
	for _, line := range result.Entries {
		if !line.Skipped || line.EntryID != "" {
			t.Fatalf("expected zero amounts to be skipped, got %+v", line)
		}
	}
	if !result.Balanced || result.TotalDebitCents != 0 {
		t.Fatalf("unexpected empty migration: %+v", result)
	}
	if _, err := svc.MigrateOpeningBalances(ctx, tenant.owner, tenant.business.ID); err != nil {
		t.Fatalf("expected rerun without posted entries to succeed, got %v", err)
	}
}

func TestServiceVerifyLedger(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)
	codes := accountIDsByCode(t, svc, tenant)

	seedLegacyRecords(t, svc, tenant)

	if _, err := svc.VerifyLedger(ctx, tenant.staff, tenant.business.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff verification to be forbidden, got %v", err)
	}
	if _, err := svc.VerifyLedger(ctx, tenant.manager, "biz_other"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected cross-tenant verification to be forbidden, got %v", err)
	}

	report, err := svc.VerifyLedger(ctx, tenant.manager, tenant.business.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Balanced || report.EntryCount != 3 || len(report.UnbalancedEntryIDs) != 0 {
		t.Fatalf("unexpected verification: %+v", report)
	}

	drift, err := svc.repo.CreateJournalEntry(ctx, domain.JournalEntry{
		BusinessID: tenant.business.ID,
		EntryDate:  "2026-03-10",
		Source:     domain.SourceManual,
		Lines:      []domain.JournalLine{domain.Debit(codes[domain.AccountCodeCash], 100, "")},
	})
	if err != nil {
		t.Fatalf("write drifted entry: %v", err)
	}

	report, err = svc.VerifyLedger(ctx, tenant.manager, tenant.business.ID)
	if err != nil {
		t.Fatalf("verify after drift: %v", err)
	}
	if report.Balanced || len(report.UnbalancedEntryIDs) != 1 || report.UnbalancedEntryIDs[0] != drift.ID {
		t.Fatalf("expected drift to be reported, got %+v", report)
	}
}

const sampleCatalog = `version: 1
items:
  - sku: tee-blk
    name: Black tee
    category: Apparel
    unit_cost_cents: 800
    unit_price_cents: 2000
    quantity_on_hand: 10
    reorder_level: 2
  - sku: MUG
    name: Mug
    category: kitchen
    unit_cost_cents: 300
    unit_price_cents: 1000
    quantity_on_hand: 4
customers:
  - name: Ada Lovelace
    email: ada@example.com
pricing_rules:
  - name: Tee promo
    priority: 5
    when:
      skus: [tee-blk]
    adjustment:
      type: percentage
      percent: 15
`

func TestServiceCatalogImportExport(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)

	if _, err := svc.ImportCatalog(ctx, tenant.staff, []byte(sampleCatalog)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff import to be forbidden, got %v", err)
	}

	result, err := svc.ImportCatalog(ctx, tenant.manager, []byte(sampleCatalog))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result != (domain.CatalogImportResult{ItemsCreated: 2, CustomersCreated: 1, RulesCreated: 1}) {
		t.Fatalf("unexpected import result: %+v", result)
	}

	items, err := svc.ListInventoryItems(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	skus := map[string]domain.InventoryItem{}
	for _, item := range items {
		skus[item.SKU] = item
	}
	tee, ok := skus["TEE-BLK"]
	if !ok || tee.Category != "apparel" || !tee.Active || tee.QuantityOnHand != 10 {
		t.Fatalf("unexpected imported tee: %+v", tee)
	}
	rules, err := svc.ListPricingRules(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 1 || len(rules[0].Conditions.ItemIDs) != 1 || rules[0].Conditions.ItemIDs[0] != tee.ID {
		t.Fatalf("expected rule resolved to the tee id, got %+v", rules)
	}

	raw, contentType, err := svc.ExportCatalog(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if contentType != "application/yaml" {
		t.Fatalf("unexpected content type %q", contentType)
	}
	exported, err := svc.catalog.Decode(raw)
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(exported.Items) != 2 || len(exported.Customers) != 1 || len(exported.PricingRules) != 1 {
		t.Fatalf("unexpected export: %+v", exported)
	}
	if got := exported.PricingRules[0].Conditions.ItemIDs; len(got) != 1 || got[0] != "TEE-BLK" {
		t.Fatalf("expected exported rule to reference SKUs, got %+v", got)
	}

	again, err := svc.ImportCatalog(ctx, tenant.manager, raw)
	if err != nil {
		t.Fatalf("re-import: %v", err)
	}
	if again != (domain.CatalogImportResult{ItemsUpdated: 2, CustomersCreated: 1, RulesUpdated: 1}) {
		t.Fatalf("unexpected re-import result: %+v", again)
	}
	customers, err := svc.ListCustomers(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 2 {
		t.Fatalf("expected customers to be created on every import, got %d", len(customers))
	}
}

func TestServiceCatalogImportRejectsBadRecords(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tenant := setupTenant(t, svc)

	_, err := svc.ImportCatalog(ctx, tenant.manager, []byte(`items:
  - sku: NEW
    category: misc
  - sku: new
    name: Duplicate
    category: misc
`))
	fields := map[string]bool{}
	for _, field := range domain.FieldErrors(err) {
		fields[field.Field] = true
	}
	if !fields["items[0].name"] || !fields["items[1].sku"] {
		t.Fatalf("expected indexed item field errors, got %v", err)
	}

	_, err = svc.ImportCatalog(ctx, tenant.manager, []byte(`items:
  - sku: NEW
    name: New thing
    category: misc
pricing_rules:
  - name: Ghost
    when:
      skus: [NEW, NOPE]
    adjustment:
      type: fixed
      amount_cents: 50
`))
	if fields := domain.FieldErrors(err); len(fields) != 1 || fields[0].Field != "pricing_rules[0].conditions.item_ids[1]" {
		t.Fatalf("expected unknown SKU field error, got %v", err)
	}
	items, err := svc.ListInventoryItems(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected failed import to write nothing, got %+v", items)
	}

	if _, err := svc.ImportCatalog(ctx, tenant.manager, []byte("items: [")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected malformed document to fail validation, got %v", err)
	}
}

// seedLegacyRecords leaves stock, one cash sale and a partly paid invoice.
func seedLegacyRecords(t *testing.T, svc *Service, tenant testTenant) {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.ImportCatalog(ctx, tenant.manager, []byte(`items:
  - sku: TEE
    name: Tee
    category: apparel
    unit_cost_cents: 800
    unit_price_cents: 2000
    quantity_on_hand: 10
  - sku: OLD
    name: Retired
    category: misc
    unit_cost_cents: 100
    quantity_on_hand: 5
    active: false
`)); err != nil {
		t.Fatalf("import legacy items: %v", err)
	}
	items, err := svc.ListInventoryItems(ctx, tenant.staff)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	var teeID string
	for _, item := range items {
		if item.SKU == "TEE" {
			teeID = item.ID
		}
	}

	if _, err := svc.CreateSale(ctx, tenant.staff, domain.SaleRequest{
		Lines:         []domain.CartLine{{ItemID: teeID, Quantity: 1}},
		PaymentMethod: domain.PaymentCash,
	}); err != nil {
		t.Fatalf("create legacy sale: %v", err)
	}

	customer := createCustomer(t, svc, tenant)
	invoice, err := svc.CreateInvoice(ctx, tenant.manager, domain.Invoice{
		CustomerID: customer.ID,
		Lines:      []domain.InvoiceLine{{Description: "Labour", Quantity: 1, UnitPriceCents: 10000}},
	})
	if err != nil {
		t.Fatalf("create legacy invoice: %v", err)
	}
	if _, err := svc.IssueInvoice(ctx, tenant.manager, invoice.ID, domain.IssueInvoiceRequest{IssueDate: "2026-03-01"}); err != nil {
		t.Fatalf("issue legacy invoice: %v", err)
	}
	if _, err := svc.RecordInvoicePayment(ctx, tenant.manager, invoice.ID, domain.InvoicePaymentRequest{AmountCents: 4000, Date: "2026-03-02"}); err != nil {
		t.Fatalf("pay legacy invoice: %v", err)
	}
}

func openingEntries(t *testing.T, svc *Service, tenant testTenant) int {
	t.Helper()
	entries, err := svc.ListJournalEntries(context.Background(), tenant.staff)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	count := 0
	for _, entry := range entries {
		if entry.Source == domain.SourceOpeningBalance {
			count++
		}
	}
	return count
}

// flakyJournalRepo fails the n-th journal write made through it.
type flakyJournalRepo struct {
	ports.Repository
	calls  *int
	failOn int
}

func (r flakyJournalRepo) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	return r.Repository.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		return fn(ctx, flakyJournalRepo{Repository: tx, calls: r.calls, failOn: r.failOn})
	})
}

func (r flakyJournalRepo) CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.JournalEntry, error) {
	*r.calls++
	if *r.calls == r.failOn {
		return domain.JournalEntry{}, errors.New("journal write failed")
	}
	return r.Repository.CreateJournalEntry(ctx, entry)
}
