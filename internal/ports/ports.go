package ports

import (
	"context"
	"net/http"

	"bizzytrack/backend/internal/domain"
)

type AuthContext struct {
	UserID     string   `json:"user_id"`
	BusinessID string   `json:"business_id"`
	Roles      []string `json:"roles"`
}

func (a AuthContext) HasRole(role string) bool {
	for _, entry := range a.Roles {
		if entry == role {
			return true
		}
	}

	return false
}

// PlatformOperator is a caller that is not bound to any business.
func (a AuthContext) PlatformOperator() bool {
	return a.BusinessID == ""
}

type AuthProvider interface {
	FromRequest(r *http.Request) (AuthContext, error)
}

type Telemetry interface {
	Record(name string, attributes map[string]string)
}

// CatalogCodec converts a business catalog to and from its portable document.
type CatalogCodec interface {
	ContentType() string
	Encode(catalog domain.Catalog) ([]byte, error)
	Decode(raw []byte) (domain.Catalog, error)
}

// Repository is the storage port. Get methods return domain.ErrNotFound for
// missing records and for records owned by another business.
type Repository interface {
	// Atomic runs fn against a transactional view of the store. Everything
	// written through tx is kept only when fn returns nil. Nested calls join
	// the outer unit.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	ListBusinesses(ctx context.Context) ([]domain.Business, error)
	GetBusiness(ctx context.Context, id string) (domain.Business, error)
	CreateBusiness(ctx context.Context, business domain.Business) (domain.Business, error)
	UpdateBusiness(ctx context.Context, business domain.Business) (domain.Business, error)
	DeleteBusiness(ctx context.Context, id string) error

	ListStaff(ctx context.Context, businessID string) ([]domain.StaffProfile, error)
	GetStaff(ctx context.Context, businessID, id string) (domain.StaffProfile, error)
	CreateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error)
	UpdateStaff(ctx context.Context, staff domain.StaffProfile) (domain.StaffProfile, error)
	DeleteStaff(ctx context.Context, businessID, id string) error
	SetStaffPINHash(ctx context.Context, businessID, staffID, hash string) error
	GetStaffPINHash(ctx context.Context, businessID, staffID string) (string, error)

	ListDepartments(ctx context.Context, businessID string) ([]domain.Department, error)
	GetDepartment(ctx context.Context, businessID, id string) (domain.Department, error)
	CreateDepartment(ctx context.Context, department domain.Department) (domain.Department, error)
	UpdateDepartment(ctx context.Context, department domain.Department) (domain.Department, error)
	DeleteDepartment(ctx context.Context, businessID, id string) error

	ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, businessID, id string) (domain.Customer, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	DeleteCustomer(ctx context.Context, businessID, id string) error

	ListJobs(ctx context.Context, businessID string) ([]domain.Job, error)
	GetJob(ctx context.Context, businessID, id string) (domain.Job, error)
	CreateJob(ctx context.Context, job domain.Job) (domain.Job, error)
	UpdateJob(ctx context.Context, job domain.Job) (domain.Job, error)
	DeleteJob(ctx context.Context, businessID, id string) error

	ListHandoffs(ctx context.Context, businessID string) ([]domain.Handoff, error)
	GetHandoff(ctx context.Context, businessID, id string) (domain.Handoff, error)
	CreateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error)
	UpdateHandoff(ctx context.Context, handoff domain.Handoff) (domain.Handoff, error)

	ListInventoryItems(ctx context.Context, businessID string) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, businessID, id string) (domain.InventoryItem, error)
	GetInventoryItemBySKU(ctx context.Context, businessID, sku string) (domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, businessID, id string) error

	ListStockAdjustments(ctx context.Context, businessID, itemID string) ([]domain.StockAdjustment, error)
	CreateStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) (domain.StockAdjustment, error)

	ListPricingRules(ctx context.Context, businessID string) ([]domain.PricingRule, error)
	GetPricingRule(ctx context.Context, businessID, id string) (domain.PricingRule, error)
	CreatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error)
	UpdatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error)
	DeletePricingRule(ctx context.Context, businessID, id string) error

	ListSales(ctx context.Context, businessID string) ([]domain.Sale, error)
	GetSale(ctx context.Context, businessID, id string) (domain.Sale, error)
	CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error)

	ListInvoices(ctx context.Context, businessID string) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, businessID, id string) (domain.Invoice, error)
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error)
	DeleteInvoice(ctx context.Context, businessID, id string) error

	ListAccounts(ctx context.Context, businessID string) ([]domain.Account, error)
	GetAccount(ctx context.Context, businessID, id string) (domain.Account, error)
	GetAccountByCode(ctx context.Context, businessID, code string) (domain.Account, error)
	CreateAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	UpdateAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	DeleteAccount(ctx context.Context, businessID, id string) error

	ListJournalEntries(ctx context.Context, businessID string) ([]domain.JournalEntry, error)
	GetJournalEntry(ctx context.Context, businessID, id string) (domain.JournalEntry, error)
	CreateJournalEntry(ctx context.Context, entry domain.JournalEntry) (domain.JournalEntry, error)
	MarkJournalEntryReversed(ctx context.Context, businessID, id, reversedByID string) error
}
