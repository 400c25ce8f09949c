package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func newTestRepository(t *testing.T) (*FileRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.json")
	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo, path
}

func createBusiness(t *testing.T, repo *FileRepository, name string) domain.Business {
	t.Helper()
	business, err := repo.CreateBusiness(context.Background(), domain.Business{Name: name, Currency: "USD", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("create business %s: %v", name, err)
	}
	return business
}

func TestFileRepositoryCRUDAndCascade(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepository(t)

	bizA := createBusiness(t, repo, "Shop A")
	bizB := createBusiness(t, repo, "Shop B")

	staff, err := repo.CreateStaff(ctx, domain.StaffProfile{BusinessID: bizA.ID, Name: "Alice", Active: true})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	if err := repo.SetStaffPINHash(ctx, bizA.ID, staff.ID, "hash"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	staff.Name = "Alice Updated"
	staff, err = repo.UpdateStaff(ctx, staff)
	if err != nil {
		t.Fatalf("update staff: %v", err)
	}
	if !staff.HasPIN {
		t.Fatal("expected update to keep pin flag")
	}

	department, err := repo.CreateDepartment(ctx, domain.Department{BusinessID: bizA.ID, Name: "Workshop", MemberIDs: []string{staff.ID, staff.ID}})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	if len(department.MemberIDs) != 1 {
		t.Fatalf("expected duplicate members to collapse, got %+v", department.MemberIDs)
	}

	customer, err := repo.CreateCustomer(ctx, domain.Customer{BusinessID: bizA.ID, Name: "Carol"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	job, err := repo.CreateJob(ctx, domain.Job{BusinessID: bizA.ID, CustomerID: customer.ID, DepartmentID: department.ID, Title: "Repair", Status: domain.JobStatusOpen})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if _, err := repo.CreateHandoff(ctx, domain.Handoff{BusinessID: bizA.ID, JobID: job.ID, Status: domain.HandoffPending}); err != nil {
		t.Fatalf("create handoff: %v", err)
	}
	if _, err := repo.CreateCustomer(ctx, domain.Customer{BusinessID: bizB.ID, Name: "Other"}); err != nil {
		t.Fatalf("create customer B: %v", err)
	}

	if _, err := repo.GetCustomer(ctx, bizB.ID, customer.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cross-tenant lookup to be not found, got %v", err)
	}

	if err := repo.DeleteJob(ctx, bizA.ID, job.ID); err != nil {
		t.Fatalf("delete job: %v", err)
	}
	handoffs, _ := repo.ListHandoffs(ctx, bizA.ID)
	if len(handoffs) != 0 {
		t.Fatalf("expected job deletion to drop handoffs, got %+v", handoffs)
	}

	if err := repo.DeleteBusiness(ctx, bizA.ID); err != nil {
		t.Fatalf("delete business: %v", err)
	}
	if _, err := repo.GetStaffPINHash(ctx, bizA.ID, staff.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected staff to be removed with business, got %v", err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	businesses, _ := reopened.ListBusinesses(ctx)
	if len(businesses) != 1 || businesses[0].ID != bizB.ID {
		t.Fatalf("expected only business B after reopen, got %+v", businesses)
	}
	customers, _ := reopened.ListCustomers(ctx, bizB.ID)
	if len(customers) != 1 {
		t.Fatalf("expected business B customer to survive, got %+v", customers)
	}
	if len(reopened.state.StaffPINs) != 0 {
		t.Fatalf("expected pins to be cascaded, got %+v", reopened.state.StaffPINs)
	}
}

func TestFileRepositoryUniqueness(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	biz := createBusiness(t, repo, "Shop")
	other := createBusiness(t, repo, "Other")

	item, err := repo.CreateInventoryItem(ctx, domain.InventoryItem{BusinessID: biz.ID, SKU: "CUP-1", Name: "Cup", Category: "kitchen"})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := repo.CreateInventoryItem(ctx, domain.InventoryItem{BusinessID: biz.ID, SKU: "cup-1", Name: "Dup", Category: "kitchen"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected sku conflict, got %v", err)
	}
	if _, err := repo.CreateInventoryItem(ctx, domain.InventoryItem{BusinessID: other.ID, SKU: "CUP-1", Name: "Cup", Category: "kitchen"}); err != nil {
		t.Fatalf("expected sku reuse across businesses, got %v", err)
	}
	found, err := repo.GetInventoryItemBySKU(ctx, biz.ID, "cup-1")
	if err != nil || found.ID != item.ID {
		t.Fatalf("expected lookup by sku, got %+v err=%v", found, err)
	}

	if _, err := repo.CreateAccount(ctx, domain.Account{BusinessID: biz.ID, Code: "1000", Name: "Cash", Type: domain.AccountAsset}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := repo.CreateAccount(ctx, domain.Account{BusinessID: biz.ID, Code: "1000", Name: "Again", Type: domain.AccountAsset}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected code conflict, got %v", err)
	}

	if _, err := repo.CreateInvoice(ctx, domain.Invoice{BusinessID: biz.ID, Number: "INV-000001"}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := repo.CreateInvoice(ctx, domain.Invoice{BusinessID: biz.ID, Number: "INV-000001"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected invoice number conflict, got %v", err)
	}
}

func TestFileRepositoryJournal(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	biz := createBusiness(t, repo, "Shop")
	cash, _ := repo.CreateAccount(ctx, domain.Account{BusinessID: biz.ID, Code: "1000", Name: "Cash", Type: domain.AccountAsset})
	revenue, _ := repo.CreateAccount(ctx, domain.Account{BusinessID: biz.ID, Code: "4000", Name: "Revenue", Type: domain.AccountRevenue})

	entry, err := repo.CreateJournalEntry(ctx, domain.JournalEntry{
		BusinessID: biz.ID,
		EntryDate:  "2026-03-01",
		Source:     domain.SourceManual,
		Lines:      []domain.JournalLine{domain.Debit(cash.ID, 100, ""), domain.Credit(revenue.ID, 100, "")},
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if _, err := repo.CreateJournalEntry(ctx, domain.JournalEntry{
		BusinessID: biz.ID,
		EntryDate:  "2026-03-01",
		Lines:      []domain.JournalLine{domain.Debit("acct_missing", 100, ""), domain.Credit(revenue.ID, 100, "")},
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown account to fail, got %v", err)
	}

	if err := repo.MarkJournalEntryReversed(ctx, biz.ID, entry.ID, "je_99"); err != nil {
		t.Fatalf("mark reversed: %v", err)
	}
	if err := repo.MarkJournalEntryReversed(ctx, biz.ID, entry.ID, "je_100"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected second reversal to conflict, got %v", err)
	}
	stored, _ := repo.GetJournalEntry(ctx, biz.ID, entry.ID)
	if stored.ReversedByID != "je_99" {
		t.Fatalf("unexpected reversal link %+v", stored)
	}
}

func TestFileRepositoryAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepository(t)
	biz := createBusiness(t, repo, "Shop")

	boom := errors.New("boom")
	err := repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		if _, err := tx.CreateCustomer(ctx, domain.Customer{BusinessID: biz.ID, Name: "Lost"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	customers, _ := repo.ListCustomers(ctx, biz.ID)
	if len(customers) != 0 {
		t.Fatalf("expected rollback, got %+v", customers)
	}

	err = repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		if _, err := tx.CreateCustomer(ctx, domain.Customer{BusinessID: biz.ID, Name: "Kept"}); err != nil {
			return err
		}
		return tx.Atomic(ctx, func(ctx context.Context, inner ports.Repository) error {
			_, err := inner.CreateCustomer(ctx, domain.Customer{BusinessID: biz.ID, Name: "Nested"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("atomic commit: %v", err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	customers, _ = reopened.ListCustomers(ctx, biz.ID)
	if len(customers) != 2 || customers[0].Name != "Kept" || customers[1].Name != "Nested" {
		t.Fatalf("expected both committed customers, got %+v", customers)
	}
}

func TestFileRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	biz := createBusiness(t, repo, "Shop")

	department, err := repo.CreateDepartment(ctx, domain.Department{BusinessID: biz.ID, Name: "Front", MemberIDs: []string{"staff_1"}})
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	department.MemberIDs[0] = "mutated"

	stored, _ := repo.GetDepartment(ctx, biz.ID, department.ID)
	if stored.MemberIDs[0] != "staff_1" {
		t.Fatalf("expected stored members to be isolated, got %+v", stored.MemberIDs)
	}
}

func TestFileRepositoryNotFoundCases(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	biz := createBusiness(t, repo, "Shop")

	checks := map[string]error{
		"business":   repo.DeleteBusiness(ctx, "biz_missing"),
		"staff":      repo.DeleteStaff(ctx, biz.ID, "staff_missing"),
		"pin":        repo.SetStaffPINHash(ctx, biz.ID, "staff_missing", "x"),
		"department": repo.DeleteDepartment(ctx, biz.ID, "dept_missing"),
		"customer":   repo.DeleteCustomer(ctx, biz.ID, "cust_missing"),
		"job":        repo.DeleteJob(ctx, biz.ID, "job_missing"),
		"item":       repo.DeleteInventoryItem(ctx, biz.ID, "item_missing"),
		"rule":       repo.DeletePricingRule(ctx, biz.ID, "rule_missing"),
		"invoice":    repo.DeleteInvoice(ctx, biz.ID, "inv_missing"),
		"account":    repo.DeleteAccount(ctx, biz.ID, "acct_missing"),
		"journal":    repo.MarkJournalEntryReversed(ctx, biz.ID, "je_missing", "x"),
	}
	for name, err := range checks {
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found for %s, got %v", name, err)
		}
	}

	if _, err := repo.UpdateSale(ctx, domain.Sale{ID: "sale_missing", BusinessID: biz.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for sale update, got %v", err)
	}
	if _, err := repo.UpdateHandoff(ctx, domain.Handoff{ID: "handoff_missing", BusinessID: biz.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for handoff update, got %v", err)
	}
	if _, err := repo.GetAccountByCode(ctx, biz.ID, "9999"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for account code, got %v", err)
	}
}

func TestFileRepositoryLoadAndDefaultPathBranches(t *testing.T) {
	ctx := context.Background()

	invalidFilePath := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalidFilePath, []byte("{bad json"), 0o600); err != nil {
		t.Fatalf("write invalid file: %v", err)
	}
	if _, err := NewFileRepository(invalidFilePath); err == nil {
		t.Fatal("expected decode error for invalid repository file")
	}

	emptyStateFile := filepath.Join(t.TempDir(), "empty-state.json")
	if err := os.WriteFile(emptyStateFile, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write empty state file: %v", err)
	}
	repo, err := NewFileRepository(emptyStateFile)
	if err != nil {
		t.Fatalf("open empty state repository: %v", err)
	}
	if _, err := repo.CreateBusiness(ctx, domain.Business{Name: "From Empty"}); err != nil {
		t.Fatalf("create business from empty state: %v", err)
	}

	if runtime.GOOS != "windows" {
		_, err = NewFileRepository(filepath.Join(os.DevNull, "repo.json"))
		if err == nil {
			t.Fatal("expected path error for unwritable directory")
		}
	}
}

func TestFileRepositoryRollsBackStateOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	initial := createBusiness(t, repo, "Persisted")

	renameFailureTarget := filepath.Join(t.TempDir(), "rename-target-dir")
	if err := os.Mkdir(renameFailureTarget, 0o755); err != nil {
		t.Fatalf("create rename target directory: %v", err)
	}
	repo.path = renameFailureTarget

	if _, err := repo.CreateBusiness(ctx, domain.Business{Name: "Should Rollback"}); err == nil {
		t.Fatal("expected create to fail when persist cannot rename to directory path")
	}

	businesses, err := repo.ListBusinesses(ctx)
	if err != nil {
		t.Fatalf("list businesses after failed persist: %v", err)
	}
	if len(businesses) != 1 || businesses[0].ID != initial.ID {
		t.Fatalf("expected state rollback to keep only initial business, got %+v", businesses)
	}
	if _, err := os.Stat(renameFailureTarget + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file cleanup after rename failure, got stat err: %v", err)
	}
}

func TestFileRepositoryClose(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepository(t)
	created := createBusiness(t, repo, "Close Persisted")

	if err := repo.Close(); err != nil {
		t.Fatalf("close repository: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close repository second time: %v", err)
	}

	reopened, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("reopen repository: %v", err)
	}
	businesses, err := reopened.ListBusinesses(ctx)
	if err != nil {
		t.Fatalf("list businesses after reopen: %v", err)
	}
	if len(businesses) != 1 || businesses[0].ID != created.ID {
		t.Fatalf("expected persisted business after close, got %+v", businesses)
	}
}

func TestPersistenceHelperBranches(t *testing.T) {
	repo := &FileRepository{}
	repo.ensureMapsLocked()
	if repo.state.Businesses == nil || repo.state.StaffPINs == nil || repo.state.JournalEntries == nil {
		t.Fatal("expected maps to be initialized")
	}

	if got := uniqueStrings([]string{"a", "b", "a"}); len(got) != 2 {
		t.Fatalf("expected unique strings, got %+v", got)
	}

	items := []domain.Customer{{ID: "c2", Name: "Bob"}, {ID: "c1", Name: "Bob"}, {ID: "c3", Name: "Alice"}}
	sortByName(items, func(c domain.Customer) string { return c.Name }, func(c domain.Customer) string { return c.ID })
	if items[0].ID != "c3" || items[1].ID != "c1" {
		t.Fatalf("unexpected sort order: %+v", items)
	}
}
