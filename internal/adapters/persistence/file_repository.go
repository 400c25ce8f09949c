package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

type fileState struct {
	Businesses       map[string]domain.Business        `json:"businesses"`
	Staff            map[string]domain.StaffProfile    `json:"staff"`
	StaffPINs        map[string]string                 `json:"staff_pins"`
	Departments      map[string]domain.Department      `json:"departments"`
	Customers        map[string]domain.Customer        `json:"customers"`
	Jobs             map[string]domain.Job             `json:"jobs"`
	Handoffs         map[string]domain.Handoff         `json:"handoffs"`
	InventoryItems   map[string]domain.InventoryItem   `json:"inventory_items"`
	StockAdjustments map[string]domain.StockAdjustment `json:"stock_adjustments"`
	PricingRules     map[string]domain.PricingRule     `json:"pricing_rules"`
	Sales            map[string]domain.Sale            `json:"sales"`
	Invoices         map[string]domain.Invoice         `json:"invoices"`
	Accounts         map[string]domain.Account         `json:"accounts"`
	JournalEntries   map[string]domain.JournalEntry    `json:"journal_entries"`
	Sequence         int64                             `json:"sequence"`
}

// FileRepository keeps the whole store in memory and writes it to one JSON
// file after every committed change.
type FileRepository struct {
	path           string
	mu             sync.RWMutex
	state          fileState
	persistedState fileState
}

type txKey struct{}

var _ ports.Repository = (*FileRepository)(nil)

func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		path = "./bizzytrack_data.json"
	}

	repo := &FileRepository{path: path}
	repo.ensureMapsLocked()
	repo.persistedState = cloneFileState(repo.state)

	if err := repo.load(); err != nil {
		return nil, err
	}

	return repo, nil
}

func (r *FileRepository) load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	content, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.persistLocked()
		}
		return err
	}

	if len(content) == 0 {
		return nil
	}

	if err := json.Unmarshal(content, &r.state); err != nil {
		return fmt.Errorf("decode repository data: %w", err)
	}

	r.ensureMapsLocked()
	r.persistedState = cloneFileState(r.state)
	return nil
}

func (r *FileRepository) ensureMapsLocked() {
	if r.state.Businesses == nil {
		r.state.Businesses = map[string]domain.Business{}
	}
	if r.state.Staff == nil {
		r.state.Staff = map[string]domain.StaffProfile{}
	}
	if r.state.StaffPINs == nil {
		r.state.StaffPINs = map[string]string{}
	}
	if r.state.Departments == nil {
		r.state.Departments = map[string]domain.Department{}
	}
	if r.state.Customers == nil {
		r.state.Customers = map[string]domain.Customer{}
	}
	if r.state.Jobs == nil {
		r.state.Jobs = map[string]domain.Job{}
	}
	if r.state.Handoffs == nil {
		r.state.Handoffs = map[string]domain.Handoff{}
	}
	if r.state.InventoryItems == nil {
		r.state.InventoryItems = map[string]domain.InventoryItem{}
	}
	if r.state.StockAdjustments == nil {
		r.state.StockAdjustments = map[string]domain.StockAdjustment{}
	}
	if r.state.PricingRules == nil {
		r.state.PricingRules = map[string]domain.PricingRule{}
	}
	if r.state.Sales == nil {
		r.state.Sales = map[string]domain.Sale{}
	}
	if r.state.Invoices == nil {
		r.state.Invoices = map[string]domain.Invoice{}
	}
	if r.state.Accounts == nil {
		r.state.Accounts = map[string]domain.Account{}
	}
	if r.state.JournalEntries == nil {
		r.state.JournalEntries = map[string]domain.JournalEntry{}
	}
}

// Atomic holds the write lock for the whole unit. Work done through the
// derived context skips per-call locking and persisting, and a failed unit
// restores the last persisted snapshot.
func (r *FileRepository) Atomic(ctx context.Context, fn func(ctx context.Context, tx ports.Repository) error) error {
	if r.inTx(ctx) {
		return fn(ctx, r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	txCtx := context.WithValue(ctx, txKey{}, r)
	if err := fn(txCtx, r); err != nil {
		r.state = cloneFileState(r.persistedState)
		return err
	}
	return r.persistLocked()
}

// Close flushes the current state. It is safe to call more than once.
func (r *FileRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.persistLocked()
}

func (r *FileRepository) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*FileRepository)
	return owner == r
}

func (r *FileRepository) lock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *FileRepository) rlock(ctx context.Context) func() {
	if r.inTx(ctx) {
		return func() {}
	}
	r.mu.RLock()
	return r.mu.RUnlock
}

// commitLocked persists outside of a unit; inside one the unit persists.
func (r *FileRepository) commitLocked(ctx context.Context) error {
	if r.inTx(ctx) {
		return nil
	}
	return r.persistLocked()
}

func (r *FileRepository) nextIDLocked(prefix string) string {
	r.state.Sequence++
	return fmt.Sprintf("%s_%d", prefix, r.state.Sequence)
}

func (r *FileRepository) persistLocked() error {
	r.ensureMapsLocked()
	body, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		r.state = cloneFileState(r.persistedState)
		return err
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		_ = os.Remove(tmp)
		r.state = cloneFileState(r.persistedState)
		return err
	}

	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		r.state = cloneFileState(r.persistedState)
		return err
	}
	r.persistedState = cloneFileState(r.state)

	return nil
}

func cloneMap[T any](source map[string]T, copyFn func(T) T) map[string]T {
	clone := make(map[string]T, len(source))
	for id, value := range source {
		if copyFn != nil {
			value = copyFn(value)
		}
		clone[id] = value
	}
	return clone
}

func cloneFileState(state fileState) fileState {
	pins := make(map[string]string, len(state.StaffPINs))
	for id, hash := range state.StaffPINs {
		pins[id] = hash
	}

	return fileState{
		Businesses:       cloneMap(state.Businesses, nil),
		Staff:            cloneMap(state.Staff, nil),
		StaffPINs:        pins,
		Departments:      cloneMap(state.Departments, copyDepartment),
		Customers:        cloneMap(state.Customers, nil),
		Jobs:             cloneMap(state.Jobs, copyJob),
		Handoffs:         cloneMap(state.Handoffs, copyHandoff),
		InventoryItems:   cloneMap(state.InventoryItems, nil),
		StockAdjustments: cloneMap(state.StockAdjustments, nil),
		PricingRules:     cloneMap(state.PricingRules, copyPricingRule),
		Sales:            cloneMap(state.Sales, copySale),
		Invoices:         cloneMap(state.Invoices, copyInvoice),
		Accounts:         cloneMap(state.Accounts, nil),
		JournalEntries:   cloneMap(state.JournalEntries, copyJournalEntry),
		Sequence:         state.Sequence,
	}
}

func copyStrings(values []string) []string {
	return append([]string{}, values...)
}

func copyDepartment(department domain.Department) domain.Department {
	department.MemberIDs = copyStrings(department.MemberIDs)
	return department
}

func copyJob(job domain.Job) domain.Job {
	job.AssigneeIDs = copyStrings(job.AssigneeIDs)
	return job
}

func copyHandoff(handoff domain.Handoff) domain.Handoff {
	if handoff.DecidedAt != nil {
		decided := *handoff.DecidedAt
		handoff.DecidedAt = &decided
	}
	return handoff
}

func copyPricingRule(rule domain.PricingRule) domain.PricingRule {
	rule.Conditions.Categories = copyStrings(rule.Conditions.Categories)
	rule.Conditions.ItemIDs = copyStrings(rule.Conditions.ItemIDs)
	rule.Conditions.DaysOfWeek = append([]int{}, rule.Conditions.DaysOfWeek...)
	return rule
}

func copySale(sale domain.Sale) domain.Sale {
	lines := make([]domain.PricedLine, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		line.AppliedRuleIDs = copyStrings(line.AppliedRuleIDs)
		lines = append(lines, line)
	}
	sale.Lines = lines
	return sale
}

func copyInvoice(invoice domain.Invoice) domain.Invoice {
	invoice.Lines = append([]domain.InvoiceLine{}, invoice.Lines...)
	invoice.PaymentEntryIDs = copyStrings(invoice.PaymentEntryIDs)
	return invoice
}

func copyJournalEntry(entry domain.JournalEntry) domain.JournalEntry {
	entry.Lines = append([]domain.JournalLine{}, entry.Lines...)
	return entry
}

func sortByName[T any](items []T, name func(T) string, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		if name(items[i]) == name(items[j]) {
			return id(items[i]) < id(items[j])
		}
		return name(items[i]) < name(items[j])
	})
}

func uniqueStrings(values []string) []string {
	seen := map[string]bool{}
	result := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		result = append(result, value)
	}
	return result
}
