package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bizzytrack/backend/internal/adapters/auth"
	"bizzytrack/backend/internal/adapters/impexp"
	"bizzytrack/backend/internal/adapters/persistence"
	"bizzytrack/backend/internal/adapters/telemetry"
	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
	"bizzytrack/backend/internal/service"
)

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected response: %v", body)
	}
}

func TestMetricsEndpointExposesRequestCounters(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)

	listed := doJSONRequest(t, router, http.MethodGet, "/api/staff", nil, ownerHeaders(businessID))
	if listed.Code != http.StatusOK {
		t.Fatalf("list staff failed: %d body=%s", listed.Code, listed.Body.String())
	}

	metrics := doRawRequest(t, router, http.MethodGet, "/metrics", nil, nil)
	if metrics.Code != http.StatusOK {
		t.Fatalf("expected metrics, got %d", metrics.Code)
	}
	body := metrics.Body.String()
	if !strings.Contains(body, `bizzytrack_events_total{event="business.created"} 1`) {
		t.Fatalf("expected business event counter, got %s", body)
	}
	if !strings.Contains(body, "/api/staff") {
		t.Fatalf("expected request metrics for /api/staff, got %s", body)
	}
}

func TestStaffRoleCannotMutate(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)

	rec := doJSONRequest(t, router, http.MethodPost, "/api/inventory", itemPayload("SKU-1", 5), map[string]string{"X-Role": "staff", "X-Business-ID": businessID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestTenantScopingHidesOtherBusinessRecords(t *testing.T) {
	router := newTestRouter(t)
	businessA := createBusiness(t, router)
	businessB := createBusiness(t, router)

	itemID := createItem(t, router, businessA, "SKU-A", 3)

	resItem := doJSONRequest(t, router, http.MethodGet, "/api/inventory/"+itemID, nil, ownerHeaders(businessB))
	if resItem.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-tenant item, got %d body=%s", resItem.Code, resItem.Body.String())
	}

	resBusiness := doJSONRequest(t, router, http.MethodGet, "/api/businesses/"+businessA, nil, ownerHeaders(businessB))
	if resBusiness.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-tenant business, got %d body=%s", resBusiness.Code, resBusiness.Body.String())
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSONRequest(t, router, http.MethodPost, "/api/businesses", map[string]any{"name": "", "currency": "dollars"}, map[string]string{"X-Role": "owner"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode validation response: %v", err)
	}
	fields := map[string]bool{}
	for _, field := range body.Fields {
		fields[field.Field] = true
	}
	for _, name := range []string{"name", "currency", "timezone"} {
		if !fields[name] {
			t.Fatalf("expected field error for %s, got %+v", name, body)
		}
	}
	if body.Error == "" || body.Error == "validation failed" {
		t.Fatalf("expected detailed message, got %q", body.Error)
	}
}

func TestSaleFlowUpdatesStockAndLedger(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)
	headers := ownerHeaders(businessID)
	itemID := createItem(t, router, businessID, "MUG-1", 10)

	quote := doJSONRequest(t, router, http.MethodPost, "/api/pos/quote", map[string]any{
		"lines": []map[string]any{{"item_id": itemID, "quantity": 2}},
	}, headers)
	if quote.Code != http.StatusOK {
		t.Fatalf("quote failed: %d body=%s", quote.Code, quote.Body.String())
	}
	var quoted domain.Quote
	decodeBody(t, quote, &quoted)
	if quoted.SubtotalCents != 1000 || quoted.TaxCents != 100 || quoted.TotalCents != 1100 {
		t.Fatalf("unexpected quote totals: %+v", quoted)
	}

	created := doJSONRequest(t, router, http.MethodPost, "/api/sales", map[string]any{
		"lines":          []map[string]any{{"item_id": itemID, "quantity": 2}},
		"payment_method": "cash",
	}, headers)
	if created.Code != http.StatusCreated {
		t.Fatalf("create sale failed: %d body=%s", created.Code, created.Body.String())
	}
	var sale domain.Sale
	decodeBody(t, created, &sale)
	if sale.TotalCents != quoted.TotalCents || sale.JournalEntryID == "" {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	var item domain.InventoryItem
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/inventory/"+itemID, nil, headers), &item)
	if item.QuantityOnHand != 8 {
		t.Fatalf("expected 8 on hand after sale, got %d", item.QuantityOnHand)
	}

	assertTrialBalanceBalanced(t, router, headers)

	overSell := doJSONRequest(t, router, http.MethodPost, "/api/sales", map[string]any{
		"lines":          []map[string]any{{"item_id": itemID, "quantity": 50}},
		"payment_method": "card",
	}, headers)
	if overSell.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient stock, got %d body=%s", overSell.Code, overSell.Body.String())
	}

	voided := doJSONRequest(t, router, http.MethodPost, "/api/sales/"+sale.ID+"/void", map[string]any{"reason": "customer returned"}, headers)
	if voided.Code != http.StatusOK {
		t.Fatalf("void sale failed: %d body=%s", voided.Code, voided.Body.String())
	}
	var voidedSale domain.Sale
	decodeBody(t, voided, &voidedSale)
	if voidedSale.Status != domain.SaleStatusVoided {
		t.Fatalf("expected voided status, got %q", voidedSale.Status)
	}

	again := doJSONRequest(t, router, http.MethodPost, "/api/sales/"+sale.ID+"/void", map[string]any{"reason": "twice"}, headers)
	if again.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second void, got %d body=%s", again.Code, again.Body.String())
	}

	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/inventory/"+itemID, nil, headers), &item)
	if item.QuantityOnHand != 10 {
		t.Fatalf("expected stock restored to 10, got %d", item.QuantityOnHand)
	}
	assertTrialBalanceBalanced(t, router, headers)

	summary := doJSONRequest(t, router, http.MethodGet, "/api/reports/sales-summary", nil, headers)
	if summary.Code != http.StatusOK {
		t.Fatalf("sales summary failed: %d body=%s", summary.Code, summary.Body.String())
	}
	lowStock := doJSONRequest(t, router, http.MethodGet, "/api/reports/low-stock", nil, headers)
	if lowStock.Code != http.StatusOK {
		t.Fatalf("low stock failed: %d body=%s", lowStock.Code, lowStock.Body.String())
	}
}

func TestHandoffRoutes(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)
	headers := ownerHeaders(businessID)

	intake := createResource(t, router, headers, "/api/departments", map[string]any{"name": "Intake"})
	workshop := createResource(t, router, headers, "/api/departments", map[string]any{"name": "Workshop"})
	customer := createResource(t, router, headers, "/api/customers", map[string]any{"name": "Dana"})
	job := createResource(t, router, headers, "/api/jobs", map[string]any{
		"customer_id":   customer,
		"title":         "Repair bike",
		"department_id": intake,
	})

	requested := doJSONRequest(t, router, http.MethodPost, "/api/jobs/"+job+"/handoffs", map[string]any{"to_department_id": workshop, "note": "needs tools"}, headers)
	if requested.Code != http.StatusCreated {
		t.Fatalf("request handoff failed: %d body=%s", requested.Code, requested.Body.String())
	}
	var handoff domain.Handoff
	decodeBody(t, requested, &handoff)

	duplicate := doJSONRequest(t, router, http.MethodPost, "/api/jobs/"+job+"/handoffs", map[string]any{"to_department_id": workshop}, headers)
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second pending handoff, got %d body=%s", duplicate.Code, duplicate.Body.String())
	}

	var inbox []domain.Handoff
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/departments/"+workshop+"/handoffs", nil, headers), &inbox)
	if len(inbox) != 1 || inbox[0].ID != handoff.ID {
		t.Fatalf("unexpected inbox: %+v", inbox)
	}

	accepted := doRawRequest(t, router, http.MethodPost, "/api/handoffs/"+handoff.ID+"/accept", nil, headers)
	if accepted.Code != http.StatusOK {
		t.Fatalf("accept handoff failed: %d body=%s", accepted.Code, accepted.Body.String())
	}

	var moved domain.Job
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/jobs/"+job, nil, headers), &moved)
	if moved.DepartmentID != workshop {
		t.Fatalf("expected job in workshop, got %q", moved.DepartmentID)
	}

	rejectLate := doJSONRequest(t, router, http.MethodPost, "/api/handoffs/"+handoff.ID+"/reject", map[string]any{"note": "too late"}, headers)
	if rejectLate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for decided handoff, got %d body=%s", rejectLate.Code, rejectLate.Body.String())
	}

	var history []domain.Handoff
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/jobs/"+job+"/handoffs", nil, headers), &history)
	if len(history) != 1 || history[0].Status != domain.HandoffAccepted {
		t.Fatalf("unexpected handoff history: %+v", history)
	}
}

func TestStaffAndDepartmentMemberRoutes(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)
	headers := ownerHeaders(businessID)

	department := createResource(t, router, headers, "/api/departments", map[string]any{"name": "Front"})
	staffID := createResource(t, router, headers, "/api/staff", map[string]any{"name": "Kim", "active": true})

	setPIN := doJSONRequest(t, router, http.MethodPost, "/api/staff/"+staffID+"/pin", map[string]any{"pin": "4821"}, headers)
	if setPIN.Code != http.StatusNoContent {
		t.Fatalf("set pin failed: %d body=%s", setPIN.Code, setPIN.Body.String())
	}

	for pin, want := range map[string]bool{"4821": true, "0000": false} {
		verified := doJSONRequest(t, router, http.MethodPost, "/api/staff/"+staffID+"/pin/verify", map[string]any{"pin": pin}, headers)
		if verified.Code != http.StatusOK {
			t.Fatalf("verify pin failed: %d body=%s", verified.Code, verified.Body.String())
		}
		var result map[string]bool
		decodeBody(t, verified, &result)
		if result["valid"] != want {
			t.Fatalf("pin %s: expected valid=%v, got %+v", pin, want, result)
		}
	}

	added := doJSONRequest(t, router, http.MethodPost, "/api/departments/"+department+"/members", map[string]any{"staff_id": staffID}, headers)
	if added.Code != http.StatusOK {
		t.Fatalf("add member failed: %d body=%s", added.Code, added.Body.String())
	}
	var withMember domain.Department
	decodeBody(t, added, &withMember)
	if len(withMember.MemberIDs) != 1 || withMember.MemberIDs[0] != staffID {
		t.Fatalf("unexpected members: %+v", withMember.MemberIDs)
	}

	removed := doRawRequest(t, router, http.MethodDelete, "/api/departments/"+department+"/members/"+staffID, nil, headers)
	if removed.Code != http.StatusOK {
		t.Fatalf("remove member failed: %d body=%s", removed.Code, removed.Body.String())
	}
	var withoutMember domain.Department
	decodeBody(t, removed, &withoutMember)
	if len(withoutMember.MemberIDs) != 0 {
		t.Fatalf("expected no members, got %+v", withoutMember.MemberIDs)
	}

	deleted := doRawRequest(t, router, http.MethodDelete, "/api/staff/"+staffID, nil, headers)
	if deleted.Code != http.StatusNoContent {
		t.Fatalf("delete staff failed: %d body=%s", deleted.Code, deleted.Body.String())
	}
}

func TestInvoiceRoutes(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)
	headers := ownerHeaders(businessID)
	customer := createResource(t, router, headers, "/api/customers", map[string]any{"name": "Lee"})

	created := doJSONRequest(t, router, http.MethodPost, "/api/invoices", map[string]any{
		"customer_id": customer,
		"lines":       []map[string]any{{"description": "Service call", "quantity": 1, "unit_price_cents": 10000}},
	}, headers)
	if created.Code != http.StatusCreated {
		t.Fatalf("create invoice failed: %d body=%s", created.Code, created.Body.String())
	}
	var invoice domain.Invoice
	decodeBody(t, created, &invoice)
	if invoice.Status != domain.InvoiceDraft || invoice.TotalCents != 11000 {
		t.Fatalf("unexpected draft invoice: %+v", invoice)
	}

	issued := doJSONRequest(t, router, http.MethodPost, "/api/invoices/"+invoice.ID+"/issue", map[string]any{"issue_date": "2026-03-01"}, headers)
	if issued.Code != http.StatusOK {
		t.Fatalf("issue invoice failed: %d body=%s", issued.Code, issued.Body.String())
	}

	edit := doJSONRequest(t, router, http.MethodPut, "/api/invoices/"+invoice.ID, map[string]any{
		"customer_id": customer,
		"lines":       []map[string]any{{"description": "Changed", "quantity": 1, "unit_price_cents": 1}},
	}, headers)
	if edit.Code != http.StatusConflict {
		t.Fatalf("expected 409 editing issued invoice, got %d body=%s", edit.Code, edit.Body.String())
	}

	overpay := doJSONRequest(t, router, http.MethodPost, "/api/invoices/"+invoice.ID+"/payments", map[string]any{"amount_cents": 20000, "date": "2026-03-02"}, headers)
	if overpay.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overpayment, got %d body=%s", overpay.Code, overpay.Body.String())
	}

	paid := doJSONRequest(t, router, http.MethodPost, "/api/invoices/"+invoice.ID+"/payments", map[string]any{"amount_cents": 11000, "date": "2026-03-02"}, headers)
	if paid.Code != http.StatusOK {
		t.Fatalf("record payment failed: %d body=%s", paid.Code, paid.Body.String())
	}
	decodeBody(t, paid, &invoice)
	if invoice.Status != domain.InvoicePaid || invoice.PaidCents != 11000 {
		t.Fatalf("expected paid invoice, got %+v", invoice)
	}

	voided := doRawRequest(t, router, http.MethodPost, "/api/invoices/"+invoice.ID+"/void", nil, headers)
	if voided.Code != http.StatusConflict {
		t.Fatalf("expected 409 voiding invoice with payments, got %d body=%s", voided.Code, voided.Body.String())
	}

	assertTrialBalanceBalanced(t, router, headers)
}

func TestJournalRoutes(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)
	headers := ownerHeaders(businessID)

	var accounts []domain.Account
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/accounts", nil, headers), &accounts)
	byCode := map[string]string{}
	for _, account := range accounts {
		byCode[account.Code] = account.ID
	}
	cash := byCode[domain.AccountCodeCash]
	equity := byCode[domain.AccountCodeOwnerEquity]
	if cash == "" || equity == "" {
		t.Fatalf("expected seeded system accounts, got %+v", accounts)
	}

	unbalanced := doJSONRequest(t, router, http.MethodPost, "/api/journal-entries", map[string]any{
		"entry_date": "2026-03-01",
		"lines": []map[string]any{
			{"account_id": cash, "debit_cents": 500},
			{"account_id": equity, "credit_cents": 400},
		},
	}, headers)
	if unbalanced.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unbalanced entry, got %d body=%s", unbalanced.Code, unbalanced.Body.String())
	}

	posted := doJSONRequest(t, router, http.MethodPost, "/api/journal-entries", map[string]any{
		"entry_date": "2026-03-01",
		"memo":       "owner contribution",
		"lines": []map[string]any{
			{"account_id": cash, "debit_cents": 50000},
			{"account_id": equity, "credit_cents": 50000},
		},
	}, headers)
	if posted.Code != http.StatusCreated {
		t.Fatalf("post entry failed: %d body=%s", posted.Code, posted.Body.String())
	}
	var entry domain.JournalEntry
	decodeBody(t, posted, &entry)

	var ledger domain.AccountLedger
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/accounts/"+cash+"/ledger?from=2026-03-01&to=2026-03-31", nil, headers), &ledger)
	if ledger.ClosingCents != 50000 {
		t.Fatalf("expected closing balance 50000, got %+v", ledger)
	}

	reversed := doJSONRequest(t, router, http.MethodPost, "/api/journal-entries/"+entry.ID+"/reverse", map[string]any{"date": "2026-03-05"}, headers)
	if reversed.Code != http.StatusCreated {
		t.Fatalf("reverse entry failed: %d body=%s", reversed.Code, reversed.Body.String())
	}
	again := doJSONRequest(t, router, http.MethodPost, "/api/journal-entries/"+entry.ID+"/reverse", map[string]any{"date": "2026-03-06"}, headers)
	if again.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second reversal, got %d body=%s", again.Code, again.Body.String())
	}

	systemDelete := doRawRequest(t, router, http.MethodDelete, "/api/accounts/"+cash, nil, headers)
	if systemDelete.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting system account, got %d body=%s", systemDelete.Code, systemDelete.Body.String())
	}

	var balance domain.TrialBalance
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/reports/trial-balance?as_of=2026-03-02", nil, headers), &balance)
	if !balance.Balanced || balance.TotalDebitCents != 50000 {
		t.Fatalf("unexpected trial balance before reversal date: %+v", balance)
	}
}

func TestCatalogExportImport(t *testing.T) {
	router := newTestRouter(t)
	source := createBusiness(t, router)
	target := createBusiness(t, router)
	createItem(t, router, source, "TEA-1", 4)

	exported := doRawRequest(t, router, http.MethodGet, "/api/catalog", nil, ownerHeaders(source))
	if exported.Code != http.StatusOK {
		t.Fatalf("export failed: %d body=%s", exported.Code, exported.Body.String())
	}
	if contentType := exported.Header().Get("Content-Type"); !strings.Contains(contentType, "yaml") {
		t.Fatalf("expected yaml content type, got %q", contentType)
	}

	imported := doRawRequest(t, router, http.MethodPost, "/api/catalog", exported.Body.Bytes(), ownerHeaders(target))
	if imported.Code != http.StatusOK {
		t.Fatalf("import failed: %d body=%s", imported.Code, imported.Body.String())
	}
	var result domain.CatalogImportResult
	decodeBody(t, imported, &result)
	if result.ItemsCreated != 1 {
		t.Fatalf("expected one imported item, got %+v", result)
	}

	broken := doRawRequest(t, router, http.MethodPost, "/api/catalog", []byte("items: ["), ownerHeaders(target))
	if broken.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed catalog, got %d body=%s", broken.Code, broken.Body.String())
	}
}

func TestMethodAndJSONErrors(t *testing.T) {
	router := newTestRouter(t)
	businessID := createBusiness(t, router)

	badMethod := doRawRequest(t, router, http.MethodPatch, "/api/staff", nil, ownerHeaders(businessID))
	if badMethod.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", badMethod.Code)
	}

	badJSON := doRawRequest(t, router, http.MethodPost, "/api/businesses", []byte("{"), map[string]string{"X-Role": "owner"})
	if badJSON.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", badJSON.Code)
	}

	unknownField := doRawRequest(t, router, http.MethodPost, "/api/customers", []byte(`{"name":"A","nickname":"B"}`), ownerHeaders(businessID))
	if unknownField.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", unknownField.Code)
	}

	paths := []string{
		"/api/unknown",
		"/api/sales/missing/refund",
		"/api/reports/profit",
		"/api/handoffs/some-id/cancel",
		"/nothing",
	}
	for _, path := range paths {
		rec := doRawRequest(t, router, http.MethodGet, path, nil, ownerHeaders(businessID))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %d", path, rec.Code)
		}
	}

	preflight := doRawRequest(t, router, http.MethodOptions, "/api/staff", nil, nil)
	if preflight.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", preflight.Code)
	}
}

func TestAuthFailureReturnsUnauthorized(t *testing.T) {
	svc := newTestService(t)
	router := NewRouterWithDependencies(Dependencies{AuthProvider: failingAuthProvider{}, Service: svc})

	rec := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	health := doRawRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	if health.Code != http.StatusOK {
		t.Fatalf("expected healthz to skip auth, got %d", health.Code)
	}
}

func TestJWTProtectedRoutes(t *testing.T) {
	provider, err := auth.NewJWTAuthProvider("router-test-secret")
	if err != nil {
		t.Fatalf("create jwt provider: %v", err)
	}
	router := NewRouterWithDependencies(Dependencies{AuthProvider: provider, Service: newTestService(t)})

	missing := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", missing.Code)
	}

	token, err := provider.Issue(ports.AuthContext{UserID: "operator", Roles: []string{domain.RoleOwner}}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	listed := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, map[string]string{"Authorization": "Bearer " + token})
	if listed.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d body=%s", listed.Code, listed.Body.String())
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	config := RuntimeConfig{Settings: Settings{RateLimitRPS: 0.001, RateLimitBurst: 1}}
	router := NewRouterWithDependencies(Dependencies{
		AuthProvider: auth.NewDevAuthProvider(),
		Service:      newTestService(t),
		Config:       config,
	})

	first := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, map[string]string{"X-Role": "owner"})
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, map[string]string{"X-Role": "owner"})
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	health := doRawRequest(t, router, http.MethodGet, "/healthz", nil, nil)
	if health.Code != http.StatusOK {
		t.Fatalf("expected healthz to bypass the limiter, got %d", health.Code)
	}
}

func TestPanicsBecomeInternalServerError(t *testing.T) {
	router := NewRouterWithDependencies(Dependencies{AuthProvider: auth.NewDevAuthProvider()})

	rec := doRawRequest(t, router, http.MethodGet, "/api/businesses", nil, map[string]string{"X-Role": "owner"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestAPICloseRunsCleanupOnceAcrossConcurrentCallers(t *testing.T) {
	var calls int
	var mu sync.Mutex
	cleanupErr := errors.New("cleanup failed")
	api := NewRouterWithDependencies(Dependencies{
		AuthProvider: auth.NewDevAuthProvider(),
		Service:      newTestService(t),
		Cleanup: func() error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return cleanupErr
		},
	})

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- api.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, cleanupErr) {
			t.Fatalf("expected cleanup error from every caller, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected cleanup once, got %d", calls)
	}
}

func TestNewAuthProviderProductionRequiresJWTSecret(t *testing.T) {
	t.Setenv("BIZZY_JWT_SECRET", "")
	t.Setenv("DEV_MODE", "false")

	_, err := NewAuthProvider(RuntimeConfig{
		Mode:     RuntimeModeProduction,
		Settings: Settings{AuthMode: AuthModeJWT},
	})
	if err == nil {
		t.Fatal("expected missing jwt secret to fail")
	}

	provider, err := NewAuthProvider(RuntimeConfig{
		Mode:     RuntimeModeProduction,
		Settings: Settings{AuthMode: AuthModeJWT, JWTSecret: "configured-secret-with-enough-bytes"},
	})
	if err != nil || provider == nil {
		t.Fatalf("expected configured secret to build a provider, got %v", err)
	}
}

func TestPathHelpers(t *testing.T) {
	segments := splitPath("/api/departments/dep-1/members/staff-9/")
	if len(segments) != 5 {
		t.Fatalf("unexpected segments: %v", segments)
	}
	if id, ok := parseResourceID(segments); !ok || id != "dep-1" {
		t.Fatalf("unexpected resource id %q", id)
	}
	if !isSubresourceRoute(segments, "members") {
		t.Fatal("expected members subresource")
	}
	if id, ok := parseSubresourceID(segments); !ok || id != "staff-9" {
		t.Fatalf("unexpected subresource id %q", id)
	}
	if isCollectionRoute(splitPath("/v1/staff"), "staff") {
		t.Fatal("expected non-api prefix to be rejected")
	}
	if len(splitPath("/")) != 0 {
		t.Fatal("expected root path to have no segments")
	}
	if !isExactRoute(splitPath("/api/pos/quote"), "api", "pos", "quote") {
		t.Fatal("expected quote route to match")
	}
}

func TestDecodeJSONRequestBodyTooLarge(t *testing.T) {
	router := newTestRouter(t)
	oversized := fmt.Sprintf(`{"name":"%s"}`, strings.Repeat("x", int(maxJSONBodyBytes)))

	rec := doRawRequest(t, router, http.MethodPost, "/api/businesses", []byte(oversized), map[string]string{"X-Role": "owner"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "request body too large") {
		t.Fatalf("expected body too large message, got %s", rec.Body.String())
	}
}

type failingAuthProvider struct{}

func (failingAuthProvider) FromRequest(_ *http.Request) (ports.AuthContext, error) {
	return ports.AuthContext{}, errors.New("no identity")
}

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	repo, err := persistence.NewFileRepository(filepath.Join(t.TempDir(), "test-data.json"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	svc, err := service.New(repo, telemetry.NewPrometheusTelemetry(), impexp.NewYAMLCodec())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo, err := persistence.NewFileRepository(filepath.Join(t.TempDir(), "test-data.json"))
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	metrics := telemetry.NewPrometheusTelemetry()
	svc, err := service.New(repo, metrics, impexp.NewYAMLCodec())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewRouterWithDependencies(Dependencies{
		AuthProvider: auth.NewDevAuthProvider(),
		Service:      svc,
		Metrics:      metrics,
	})
}

func ownerHeaders(businessID string) map[string]string {
	return map[string]string{"X-Role": "owner", "X-Business-ID": businessID, "X-User-ID": "owner-1"}
}

func businessPayload(name string) map[string]any {
	return map[string]any{
		"name":         name,
		"currency":     "USD",
		"timezone":     "UTC",
		"tax_rate_pct": 10,
	}
}

func createBusiness(t *testing.T, router http.Handler) string {
	t.Helper()
	response := doJSONRequest(t, router, http.MethodPost, "/api/businesses", businessPayload("Shop-"+t.Name()), map[string]string{"X-Role": "owner"})
	if response.Code != http.StatusCreated {
		t.Fatalf("create business failed: %d body=%s", response.Code, response.Body.String())
	}

	var business domain.Business
	decodeBody(t, response, &business)
	return business.ID
}

func itemPayload(sku string, quantity int64) map[string]any {
	return map[string]any{
		"sku":              sku,
		"name":             "Item " + sku,
		"category":         "general",
		"unit_cost_cents":  200,
		"unit_price_cents": 500,
		"quantity_on_hand": quantity,
		"reorder_level":    2,
		"active":           true,
	}
}

func createItem(t *testing.T, router http.Handler, businessID, sku string, quantity int64) string {
	t.Helper()
	return createResource(t, router, ownerHeaders(businessID), "/api/inventory", itemPayload(sku, quantity))
}

func createResource(t *testing.T, router http.Handler, headers map[string]string, path string, body map[string]any) string {
	t.Helper()
	response := doJSONRequest(t, router, http.MethodPost, path, body, headers)
	if response.Code != http.StatusCreated {
		t.Fatalf("create %s failed: %d body=%s", path, response.Code, response.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, response, &created)
	if created.ID == "" {
		t.Fatalf("create %s returned no id: %s", path, response.Body.String())
	}
	return created.ID
}

func assertTrialBalanceBalanced(t *testing.T, router http.Handler, headers map[string]string) {
	t.Helper()
	var balance domain.TrialBalance
	decodeBody(t, doJSONRequest(t, router, http.MethodGet, "/api/reports/trial-balance", nil, headers), &balance)
	if !balance.Balanced || balance.TotalDebitCents != balance.TotalCreditCents {
		t.Fatalf("expected balanced trial balance, got %+v", balance)
	}
}

func decodeBody(t *testing.T, response *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(response.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response (%d %s): %v", response.Code, response.Body.String(), err)
	}
}

func doJSONRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	var err error
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	return doRawRequest(t, handler, method, path, payload, headers)
}

func doRawRequest(t *testing.T, handler http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(method, path, bytes.NewReader(body)).WithContext(context.Background())
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)
	return response
}
