package domain

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"
const TimeOfDayLayout = "15:04"

const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

const (
	JobStatusOpen       = "open"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

const (
	HandoffPending  = "pending"
	HandoffAccepted = "accepted"
	HandoffRejected = "rejected"
)

const (
	StockReasonRestock    = "restock"
	StockReasonShrinkage  = "shrinkage"
	StockReasonCorrection = "correction"
)

const (
	AdjustmentPercentage = "percentage"
	AdjustmentFixed      = "fixed"
	AdjustmentOverride   = "override"
)

const (
	PaymentCash   = "cash"
	PaymentCard   = "card"
	PaymentMobile = "mobile"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

const (
	InvoiceDraft  = "draft"
	InvoiceIssued = "issued"
	InvoicePaid   = "paid"
	InvoiceVoid   = "void"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrUnbalanced = fmt.Errorf("journal entry is unbalanced: %w", ErrValidation)
)

type Business struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" validate:"required,max=200"`
	Currency   string    `json:"currency" validate:"required,iso4217"`
	Timezone   string    `json:"timezone" validate:"required,timezone"`
	TaxRatePct float64   `json:"tax_rate_pct" validate:"gte=0,lte=100"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Location resolves the business timezone, falling back to UTC for
// records written before the timezone was validated.
func (b Business) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type StaffProfile struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Name            string    `json:"name" validate:"required,max=200"`
	Email           string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string    `json:"phone,omitempty" validate:"max=40"`
	JobTitle        string    `json:"job_title,omitempty" validate:"max=120"`
	DepartmentID    string    `json:"department_id,omitempty"`
	HourlyRateCents int64     `json:"hourly_rate_cents" validate:"gte=0"`
	Active          bool      `json:"active"`
	HasPIN          bool      `json:"has_pin"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PINRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

type Department struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name" validate:"required,max=120"`
	Description string    `json:"description,omitempty" validate:"max=500"`
	ManagerID   string    `json:"manager_id,omitempty"`
	MemberIDs   []string  `json:"member_ids" validate:"dive,required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Customer struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	Name       string    `json:"name" validate:"required,max=200"`
	Email      string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone      string    `json:"phone,omitempty" validate:"max=40"`
	Address    string    `json:"address,omitempty" validate:"max=300"`
	Notes      string    `json:"notes,omitempty" validate:"max=2000"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Job struct {
	ID           string    `json:"id"`
	BusinessID   string    `json:"business_id"`
	CustomerID   string    `json:"customer_id" validate:"required"`
	Title        string    `json:"title" validate:"required,max=200"`
	Description  string    `json:"description,omitempty" validate:"max=2000"`
	DepartmentID string    `json:"department_id" validate:"required"`
	AssigneeIDs  []string  `json:"assignee_ids" validate:"dive,required"`
	Status       string    `json:"status" validate:"omitempty,oneof=open in_progress completed cancelled"`
	DueDate      string    `json:"due_date,omitempty" validate:"omitempty,ymd"`
	QuotedCents  int64     `json:"quoted_cents" validate:"gte=0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Handoff struct {
	ID               string     `json:"id"`
	BusinessID       string     `json:"business_id"`
	JobID            string     `json:"job_id"`
	FromDepartmentID string     `json:"from_department_id"`
	ToDepartmentID   string     `json:"to_department_id"`
	Status           string     `json:"status"`
	Note             string     `json:"note,omitempty"`
	RequestedBy      string     `json:"requested_by"`
	DecidedBy        string     `json:"decided_by,omitempty"`
	DecisionNote     string     `json:"decision_note,omitempty"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type HandoffRequest struct {
	ToDepartmentID string `json:"to_department_id" validate:"required"`
	Note           string `json:"note,omitempty" validate:"max=500"`
}

type HandoffDecision struct {
	Note string `json:"note,omitempty" validate:"max=500"`
}

type InventoryItem struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	SKU            string    `json:"sku" validate:"required,max=64"`
	Name           string    `json:"name" validate:"required,max=200"`
	Category       string    `json:"category" validate:"required,max=80"`
	UnitCostCents  int64     `json:"unit_cost_cents" validate:"gte=0"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"gte=0"`
	QuantityOnHand int64     `json:"quantity_on_hand" validate:"gte=0"`
	ReorderLevel   int64     `json:"reorder_level" validate:"gte=0"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type StockAdjustment struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"business_id"`
	ItemID         string    `json:"item_id"`
	QuantityDelta  int64     `json:"quantity_delta" validate:"required"`
	Reason         string    `json:"reason" validate:"required,oneof=restock shrinkage correction"`
	Note           string    `json:"note,omitempty" validate:"max=500"`
	JournalEntryID string    `json:"journal_entry_id,omitempty"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

type PricingConditions struct {
	Categories  []string `json:"categories,omitempty" validate:"dive,required"`
	ItemIDs     []string `json:"item_ids,omitempty" validate:"dive,required"`
	MinQuantity int64    `json:"min_quantity,omitempty" validate:"gte=0"`
	MaxQuantity int64    `json:"max_quantity,omitempty" validate:"gte=0"`
	StartTime   string   `json:"start_time,omitempty" validate:"omitempty,hhmm"`
	EndTime     string   `json:"end_time,omitempty" validate:"omitempty,hhmm"`
	DaysOfWeek  []int    `json:"days_of_week,omitempty" validate:"dive,gte=0,lte=6"`
	StartDate   string   `json:"start_date,omitempty" validate:"omitempty,ymd"`
	EndDate     string   `json:"end_date,omitempty" validate:"omitempty,ymd"`
}

type PriceAdjustment struct {
	Type        string  `json:"type" validate:"required,oneof=percentage fixed override"`
	Percent     float64 `json:"percent,omitempty" validate:"gte=0,lte=100"`
	AmountCents int64   `json:"amount_cents,omitempty" validate:"gte=0"`
}

type PricingRule struct {
	ID         string            `json:"id"`
	BusinessID string            `json:"business_id"`
	Name       string            `json:"name" validate:"required,max=120"`
	Priority   int               `json:"priority" validate:"gte=0"`
	Active     bool              `json:"active"`
	Stackable  bool              `json:"stackable"`
	Conditions PricingConditions `json:"conditions"`
	Adjustment PriceAdjustment   `json:"adjustment"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type CartLine struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

type QuoteRequest struct {
	Lines []CartLine `json:"lines" validate:"required,min=1,dive"`
	At    *time.Time `json:"at,omitempty"`
}

type PricedLine struct {
	ItemID         string   `json:"item_id"`
	Category       string   `json:"category,omitempty"`
	Quantity       int64    `json:"quantity"`
	ListUnitCents  int64    `json:"list_unit_cents"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	DiscountCents  int64    `json:"discount_cents"`
	LineTotalCents int64    `json:"line_total_cents"`
	UnitCostCents  int64    `json:"unit_cost_cents,omitempty"`
	AppliedRuleIDs []string `json:"applied_rule_ids,omitempty"`
}

type Quote struct {
	Lines         []PricedLine `json:"lines"`
	SubtotalCents int64        `json:"subtotal_cents"`
	DiscountCents int64        `json:"discount_cents"`
	TaxCents      int64        `json:"tax_cents"`
	TotalCents    int64        `json:"total_cents"`
}

type SaleRequest struct {
	Lines         []CartLine `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod string     `json:"payment_method" validate:"required,oneof=cash card mobile"`
	CustomerID    string     `json:"customer_id,omitempty"`
	StaffID       string     `json:"staff_id,omitempty"`
}

type VoidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type Sale struct {
	ID             string       `json:"id"`
	BusinessID     string       `json:"business_id"`
	CustomerID     string       `json:"customer_id,omitempty"`
	StaffID        string       `json:"staff_id,omitempty"`
	PaymentMethod  string       `json:"payment_method"`
	Status         string       `json:"status"`
	Lines          []PricedLine `json:"lines"`
	SubtotalCents  int64        `json:"subtotal_cents"`
	DiscountCents  int64        `json:"discount_cents"`
	TaxCents       int64        `json:"tax_cents"`
	TotalCents     int64        `json:"total_cents"`
	CostCents      int64        `json:"cost_cents"`
	JournalEntryID string       `json:"journal_entry_id,omitempty"`
	VoidEntryID    string       `json:"void_entry_id,omitempty"`
	VoidReason     string       `json:"void_reason,omitempty"`
	SoldAt         time.Time    `json:"sold_at"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type InvoiceLine struct {
	Description    string `json:"description" validate:"required,max=300"`
	Quantity       int64  `json:"quantity" validate:"gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	LineTotalCents int64  `json:"line_total_cents"`
}

type Invoice struct {
	ID              string        `json:"id"`
	BusinessID      string        `json:"business_id"`
	Number          string        `json:"number"`
	CustomerID      string        `json:"customer_id" validate:"required"`
	JobID           string        `json:"job_id,omitempty"`
	Lines           []InvoiceLine `json:"lines" validate:"required,min=1,dive"`
	Notes           string        `json:"notes,omitempty" validate:"max=2000"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	TaxCents        int64         `json:"tax_cents"`
	TotalCents      int64         `json:"total_cents"`
	PaidCents       int64         `json:"paid_cents"`
	Status          string        `json:"status"`
	IssueDate       string        `json:"issue_date,omitempty"`
	DueDate         string        `json:"due_date,omitempty" validate:"omitempty,ymd"`
	IssueEntryID    string        `json:"issue_entry_id,omitempty"`
	PaymentEntryIDs []string      `json:"payment_entry_ids,omitempty"`
	VoidEntryID     string        `json:"void_entry_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OutstandingCents is what the customer still owes on an issued invoice.
func (i Invoice) OutstandingCents() int64 {
	return i.TotalCents - i.PaidCents
}

type IssueInvoiceRequest struct {
	IssueDate string `json:"issue_date" validate:"required,ymd"`
	DueDate   string `json:"due_date,omitempty" validate:"omitempty,ymd"`
}

type InvoicePaymentRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	Date        string `json:"date" validate:"required,ymd"`
}

type SalesSummary struct {
	From          string `json:"from"`
	To            string `json:"to"`
	SaleCount     int    `json:"sale_count"`
	GrossCents    int64  `json:"gross_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
	NetCents      int64  `json:"net_cents"`
	CostCents     int64  `json:"cost_cents"`
	MarginCents   int64  `json:"margin_cents"`
}

// Catalog is the portable slice of a business used for import and export.
// Item conditions of its pricing rules carry SKUs instead of item ids.
type Catalog struct {
	Items        []InventoryItem
	Customers    []Customer
	PricingRules []PricingRule
}

type CatalogImportResult struct {
	ItemsCreated     int `json:"items_created"`
	ItemsUpdated     int `json:"items_updated"`
	CustomersCreated int `json:"customers_created"`
	RulesCreated     int `json:"rules_created"`
	RulesUpdated     int `json:"rules_updated"`
	// StockKept counts existing items whose imported quantity differed and
	// was ignored. Stock on hand only moves through adjustments and sales.
	StockKept int `json:"stock_kept"`
}
