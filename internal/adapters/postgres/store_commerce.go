package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	"bizzytrack/backend/internal/domain"
)

type inventoryItemRow struct {
	ID             string    `db:"id"`
	BusinessID     string    `db:"business_id"`
	SKU            string    `db:"sku"`
	Name           string    `db:"name"`
	Category       string    `db:"category"`
	UnitCostCents  int64     `db:"unit_cost_cents"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	QuantityOnHand int64     `db:"quantity_on_hand"`
	ReorderLevel   int64     `db:"reorder_level"`
	Active         bool      `db:"active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func newInventoryItemRow(item domain.InventoryItem) inventoryItemRow {
	return inventoryItemRow{
		ID:             item.ID,
		BusinessID:     item.BusinessID,
		SKU:            item.SKU,
		Name:           item.Name,
		Category:       item.Category,
		UnitCostCents:  item.UnitCostCents,
		UnitPriceCents: item.UnitPriceCents,
		QuantityOnHand: item.QuantityOnHand,
		ReorderLevel:   item.ReorderLevel,
		Active:         item.Active,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func (r inventoryItemRow) domain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:             r.ID,
		BusinessID:     r.BusinessID,
		SKU:            r.SKU,
		Name:           r.Name,
		Category:       r.Category,
		UnitCostCents:  r.UnitCostCents,
		UnitPriceCents: r.UnitPriceCents,
		QuantityOnHand: r.QuantityOnHand,
		ReorderLevel:   r.ReorderLevel,
		Active:         r.Active,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

const inventoryItemColumns = `id, business_id, sku, name, category, unit_cost_cents, unit_price_cents, quantity_on_hand,
	reorder_level, active, created_at, updated_at`

func (s *Store) ListInventoryItems(ctx context.Context, businessID string) ([]domain.InventoryItem, error) {
	var rows []inventoryItemRow
	err := s.list(ctx, &rows, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE business_id = $1 ORDER BY sku COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.InventoryItem, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, businessID, id string) (domain.InventoryItem, error) {
	var row inventoryItemRow
	err := s.get(ctx, &row, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return row.domain(), nil
}

// GetInventoryItemBySKU matches the SKU case-insensitively.
func (s *Store) GetInventoryItemBySKU(ctx context.Context, businessID, sku string) (domain.InventoryItem, error) {
	var row inventoryItemRow
	err := s.get(ctx, &row, `SELECT `+inventoryItemColumns+` FROM inventory_items WHERE business_id = $1 AND lower(sku) = lower($2)`+s.forUpdate(), businessID, sku)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item.ID = newID()
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO inventory_items (`+inventoryItemColumns+`)
		VALUES (:id, :business_id, :sku, :name, :category, :unit_cost_cents, :unit_price_cents, :quantity_on_hand,
			:reorder_level, :active, :created_at, :updated_at)
	`, newInventoryItemRow(item))
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item.UpdatedAt = now()
	err := s.get(ctx, &item.CreatedAt, `
		UPDATE inventory_items
		SET sku = $3, name = $4, category = $5, unit_cost_cents = $6, unit_price_cents = $7,
			quantity_on_hand = $8, reorder_level = $9, active = $10, updated_at = $11
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, item.BusinessID, item.ID, item.SKU, item.Name, item.Category, item.UnitCostCents, item.UnitPriceCents,
		item.QuantityOnHand, item.ReorderLevel, item.Active, item.UpdatedAt)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM inventory_items WHERE business_id = $1 AND id = $2`, businessID, id)
}

type stockAdjustmentRow struct {
	ID             string    `db:"id"`
	BusinessID     string    `db:"business_id"`
	ItemID         string    `db:"item_id"`
	QuantityDelta  int64     `db:"quantity_delta"`
	Reason         string    `db:"reason"`
	Note           string    `db:"note"`
	JournalEntryID string    `db:"journal_entry_id"`
	CreatedBy      string    `db:"created_by"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r stockAdjustmentRow) domain() domain.StockAdjustment {
	return domain.StockAdjustment{
		ID:             r.ID,
		BusinessID:     r.BusinessID,
		ItemID:         r.ItemID,
		QuantityDelta:  r.QuantityDelta,
		Reason:         r.Reason,
		Note:           r.Note,
		JournalEntryID: r.JournalEntryID,
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

const stockAdjustmentColumns = `id, business_id, item_id, quantity_delta, reason, note, journal_entry_id, created_by, created_at`

// ListStockAdjustments returns every adjustment of the business when itemID
// is empty.
func (s *Store) ListStockAdjustments(ctx context.Context, businessID, itemID string) ([]domain.StockAdjustment, error) {
	var rows []stockAdjustmentRow
	err := s.list(ctx, &rows, `
		SELECT `+stockAdjustmentColumns+` FROM stock_adjustments
		WHERE business_id = $1 AND ($2 = '' OR item_id = $2)
		ORDER BY created_at, id
	`, businessID, itemID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.StockAdjustment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) CreateStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) (domain.StockAdjustment, error) {
	adjustment.ID = newID()
	adjustment.CreatedAt = now()

	err := s.insert(ctx, `
		INSERT INTO stock_adjustments (`+stockAdjustmentColumns+`)
		VALUES (:id, :business_id, :item_id, :quantity_delta, :reason, :note, :journal_entry_id, :created_by, :created_at)
	`, stockAdjustmentRow{
		ID:             adjustment.ID,
		BusinessID:     adjustment.BusinessID,
		ItemID:         adjustment.ItemID,
		QuantityDelta:  adjustment.QuantityDelta,
		Reason:         adjustment.Reason,
		Note:           adjustment.Note,
		JournalEntryID: adjustment.JournalEntryID,
		CreatedBy:      adjustment.CreatedBy,
		CreatedAt:      adjustment.CreatedAt,
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	return adjustment, nil
}

type pricingRuleRow struct {
	ID         string                          `db:"id"`
	BusinessID string                          `db:"business_id"`
	Name       string                          `db:"name"`
	Priority   int                             `db:"priority"`
	Active     bool                            `db:"active"`
	Stackable  bool                            `db:"stackable"`
	Conditions jsonb[domain.PricingConditions] `db:"conditions"`
	Adjustment jsonb[domain.PriceAdjustment]   `db:"adjustment"`
	CreatedAt  time.Time                       `db:"created_at"`
	UpdatedAt  time.Time                       `db:"updated_at"`
}

func (r pricingRuleRow) domain() domain.PricingRule {
	return domain.PricingRule{
		ID:         r.ID,
		BusinessID: r.BusinessID,
		Name:       r.Name,
		Priority:   r.Priority,
		Active:     r.Active,
		Stackable:  r.Stackable,
		Conditions: r.Conditions.V,
		Adjustment: r.Adjustment.V,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const pricingRuleColumns = `id, business_id, name, priority, active, stackable, conditions, adjustment, created_at, updated_at`

func (s *Store) ListPricingRules(ctx context.Context, businessID string) ([]domain.PricingRule, error) {
	var rows []pricingRuleRow
	err := s.list(ctx, &rows, `SELECT `+pricingRuleColumns+` FROM pricing_rules WHERE business_id = $1 ORDER BY priority, id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.PricingRule, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return domain.SortRules(result), nil
}

func (s *Store) GetPricingRule(ctx context.Context, businessID, id string) (domain.PricingRule, error) {
	var row pricingRuleRow
	err := s.get(ctx, &row, `SELECT `+pricingRuleColumns+` FROM pricing_rules WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return domain.PricingRule{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	rule.ID = newID()
	rule.CreatedAt = now()
	rule.UpdatedAt = rule.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO pricing_rules (`+pricingRuleColumns+`)
		VALUES (:id, :business_id, :name, :priority, :active, :stackable, :conditions, :adjustment, :created_at, :updated_at)
	`, pricingRuleRow{
		ID:         rule.ID,
		BusinessID: rule.BusinessID,
		Name:       rule.Name,
		Priority:   rule.Priority,
		Active:     rule.Active,
		Stackable:  rule.Stackable,
		Conditions: jsonb[domain.PricingConditions]{V: rule.Conditions},
		Adjustment: jsonb[domain.PriceAdjustment]{V: rule.Adjustment},
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	})
	if err != nil {
		return domain.PricingRule{}, err
	}
	return rule, nil
}

func (s *Store) UpdatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	rule.UpdatedAt = now()
	err := s.get(ctx, &rule.CreatedAt, `
		UPDATE pricing_rules
		SET name = $3, priority = $4, active = $5, stackable = $6, conditions = $7, adjustment = $8, updated_at = $9
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, rule.BusinessID, rule.ID, rule.Name, rule.Priority, rule.Active, rule.Stackable,
		jsonb[domain.PricingConditions]{V: rule.Conditions}, jsonb[domain.PriceAdjustment]{V: rule.Adjustment}, rule.UpdatedAt)
	if err != nil {
		return domain.PricingRule{}, err
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return rule, nil
}

func (s *Store) DeletePricingRule(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM pricing_rules WHERE business_id = $1 AND id = $2`, businessID, id)
}

type saleRow struct {
	ID             string                     `db:"id"`
	BusinessID     string                     `db:"business_id"`
	CustomerID     string                     `db:"customer_id"`
	StaffID        string                     `db:"staff_id"`
	PaymentMethod  string                     `db:"payment_method"`
	Status         string                     `db:"status"`
	Lines          jsonb[[]domain.PricedLine] `db:"lines"`
	SubtotalCents  int64                      `db:"subtotal_cents"`
	DiscountCents  int64                      `db:"discount_cents"`
	TaxCents       int64                      `db:"tax_cents"`
	TotalCents     int64                      `db:"total_cents"`
	CostCents      int64                      `db:"cost_cents"`
	JournalEntryID string                     `db:"journal_entry_id"`
	VoidEntryID    string                     `db:"void_entry_id"`
	VoidReason     string                     `db:"void_reason"`
	SoldAt         time.Time                  `db:"sold_at"`
	CreatedBy      string                     `db:"created_by"`
	CreatedAt      time.Time                  `db:"created_at"`
	UpdatedAt      time.Time                  `db:"updated_at"`
}

func newSaleRow(sale domain.Sale) saleRow {
	return saleRow{
		ID:             sale.ID,
		BusinessID:     sale.BusinessID,
		CustomerID:     sale.CustomerID,
		StaffID:        sale.StaffID,
		PaymentMethod:  sale.PaymentMethod,
		Status:         sale.Status,
		Lines:          jsonb[[]domain.PricedLine]{V: sale.Lines},
		SubtotalCents:  sale.SubtotalCents,
		DiscountCents:  sale.DiscountCents,
		TaxCents:       sale.TaxCents,
		TotalCents:     sale.TotalCents,
		CostCents:      sale.CostCents,
		JournalEntryID: sale.JournalEntryID,
		VoidEntryID:    sale.VoidEntryID,
		VoidReason:     sale.VoidReason,
		SoldAt:         sale.SoldAt,
		CreatedBy:      sale.CreatedBy,
		CreatedAt:      sale.CreatedAt,
		UpdatedAt:      sale.UpdatedAt,
	}
}

func (r saleRow) domain() domain.Sale {
	return domain.Sale{
		ID:             r.ID,
		BusinessID:     r.BusinessID,
		CustomerID:     r.CustomerID,
		StaffID:        r.StaffID,
		PaymentMethod:  r.PaymentMethod,
		Status:         r.Status,
		Lines:          r.Lines.V,
		SubtotalCents:  r.SubtotalCents,
		DiscountCents:  r.DiscountCents,
		TaxCents:       r.TaxCents,
		TotalCents:     r.TotalCents,
		CostCents:      r.CostCents,
		JournalEntryID: r.JournalEntryID,
		VoidEntryID:    r.VoidEntryID,
		VoidReason:     r.VoidReason,
		SoldAt:         r.SoldAt.UTC(),
		CreatedBy:      r.CreatedBy,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

const saleColumns = `id, business_id, customer_id, staff_id, payment_method, status, lines, subtotal_cents, discount_cents,
	tax_cents, total_cents, cost_cents, journal_entry_id, void_entry_id, void_reason, sold_at, created_by, created_at, updated_at`

func (s *Store) ListSales(ctx context.Context, businessID string) ([]domain.Sale, error) {
	var rows []saleRow
	err := s.list(ctx, &rows, `SELECT `+saleColumns+` FROM sales WHERE business_id = $1 ORDER BY sold_at, id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Sale, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetSale(ctx context.Context, businessID, id string) (domain.Sale, error) {
	var row saleRow
	if err := s.get(ctx, &row, `SELECT `+saleColumns+` FROM sales WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.Sale{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	sale.ID = newID()
	sale.CreatedAt = now()
	sale.UpdatedAt = sale.CreatedAt
	if sale.SoldAt.IsZero() {
		sale.SoldAt = sale.CreatedAt
	}
	sale.SoldAt = sale.SoldAt.UTC().Truncate(time.Microsecond)

	err := s.insert(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (:id, :business_id, :customer_id, :staff_id, :payment_method, :status, :lines, :subtotal_cents,
			:discount_cents, :tax_cents, :total_cents, :cost_cents, :journal_entry_id, :void_entry_id, :void_reason,
			:sold_at, :created_by, :created_at, :updated_at)
	`, newSaleRow(sale))
	if err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

// UpdateSale rewrites status and ledger links. Lines and totals are fixed at
// creation.
func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	sale.UpdatedAt = now()
	err := s.get(ctx, &sale.CreatedAt, `
		UPDATE sales
		SET customer_id = $3, staff_id = $4, status = $5, journal_entry_id = $6, void_entry_id = $7,
			void_reason = $8, updated_at = $9
		WHERE business_id = $1 AND id = $2
		RETURNING created_at
	`, sale.BusinessID, sale.ID, sale.CustomerID, sale.StaffID, sale.Status, sale.JournalEntryID,
		sale.VoidEntryID, sale.VoidReason, sale.UpdatedAt)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

type invoiceRow struct {
	ID              string                      `db:"id"`
	BusinessID      string                      `db:"business_id"`
	Number          string                      `db:"number"`
	CustomerID      string                      `db:"customer_id"`
	JobID           string                      `db:"job_id"`
	Lines           jsonb[[]domain.InvoiceLine] `db:"lines"`
	Notes           string                      `db:"notes"`
	SubtotalCents   int64                       `db:"subtotal_cents"`
	TaxCents        int64                       `db:"tax_cents"`
	TotalCents      int64                       `db:"total_cents"`
	PaidCents       int64                       `db:"paid_cents"`
	Status          string                      `db:"status"`
	IssueDate       string                      `db:"issue_date"`
	DueDate         string                      `db:"due_date"`
	IssueEntryID    string                      `db:"issue_entry_id"`
	PaymentEntryIDs pq.StringArray              `db:"payment_entry_ids"`
	VoidEntryID     string                      `db:"void_entry_id"`
	CreatedAt       time.Time                   `db:"created_at"`
	UpdatedAt       time.Time                   `db:"updated_at"`
}

func newInvoiceRow(invoice domain.Invoice) invoiceRow {
	return invoiceRow{
		ID:              invoice.ID,
		BusinessID:      invoice.BusinessID,
		Number:          invoice.Number,
		CustomerID:      invoice.CustomerID,
		JobID:           invoice.JobID,
		Lines:           jsonb[[]domain.InvoiceLine]{V: invoice.Lines},
		Notes:           invoice.Notes,
		SubtotalCents:   invoice.SubtotalCents,
		TaxCents:        invoice.TaxCents,
		TotalCents:      invoice.TotalCents,
		PaidCents:       invoice.PaidCents,
		Status:          invoice.Status,
		IssueDate:       invoice.IssueDate,
		DueDate:         invoice.DueDate,
		IssueEntryID:    invoice.IssueEntryID,
		PaymentEntryIDs: stringArray(invoice.PaymentEntryIDs),
		VoidEntryID:     invoice.VoidEntryID,
		CreatedAt:       invoice.CreatedAt,
		UpdatedAt:       invoice.UpdatedAt,
	}
}

func (r invoiceRow) domain() domain.Invoice {
	invoice := domain.Invoice{
		ID:            r.ID,
		BusinessID:    r.BusinessID,
		Number:        r.Number,
		CustomerID:    r.CustomerID,
		JobID:         r.JobID,
		Lines:         r.Lines.V,
		Notes:         r.Notes,
		SubtotalCents: r.SubtotalCents,
		TaxCents:      r.TaxCents,
		TotalCents:    r.TotalCents,
		PaidCents:     r.PaidCents,
		Status:        r.Status,
		IssueDate:     r.IssueDate,
		DueDate:       r.DueDate,
		IssueEntryID:  r.IssueEntryID,
		VoidEntryID:   r.VoidEntryID,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if len(r.PaymentEntryIDs) > 0 {
		invoice.PaymentEntryIDs = append([]string{}, r.PaymentEntryIDs...)
	}
	return invoice
}

const invoiceColumns = `id, business_id, number, customer_id, job_id, lines, notes, subtotal_cents, tax_cents, total_cents,
	paid_cents, status, issue_date, due_date, issue_entry_id, payment_entry_ids, void_entry_id, created_at, updated_at`

func (s *Store) ListInvoices(ctx context.Context, businessID string) ([]domain.Invoice, error) {
	var rows []invoiceRow
	err := s.list(ctx, &rows, `SELECT `+invoiceColumns+` FROM invoices WHERE business_id = $1 ORDER BY number COLLATE "C", id`, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) GetInvoice(ctx context.Context, businessID, id string) (domain.Invoice, error) {
	var row invoiceRow
	if err := s.get(ctx, &row, `SELECT `+invoiceColumns+` FROM invoices WHERE business_id = $1 AND id = $2`+s.forUpdate(), businessID, id); err != nil {
		return domain.Invoice{}, err
	}
	return row.domain(), nil
}

func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	invoice.ID = newID()
	invoice.CreatedAt = now()
	invoice.UpdatedAt = invoice.CreatedAt

	err := s.insert(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (:id, :business_id, :number, :customer_id, :job_id, :lines, :notes, :subtotal_cents, :tax_cents,
			:total_cents, :paid_cents, :status, :issue_date, :due_date, :issue_entry_id, :payment_entry_ids,
			:void_entry_id, :created_at, :updated_at)
	`, newInvoiceRow(invoice))
	if err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

// UpdateInvoice never renumbers an invoice.
func (s *Store) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	invoice.UpdatedAt = now()
	var kept struct {
		Number    string    `db:"number"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := s.get(ctx, &kept, `
		UPDATE invoices
		SET customer_id = $3, job_id = $4, lines = $5, notes = $6, subtotal_cents = $7, tax_cents = $8,
			total_cents = $9, paid_cents = $10, status = $11, issue_date = $12, due_date = $13,
			issue_entry_id = $14, payment_entry_ids = $15, void_entry_id = $16, updated_at = $17
		WHERE business_id = $1 AND id = $2
		RETURNING number, created_at
	`, invoice.BusinessID, invoice.ID, invoice.CustomerID, invoice.JobID, jsonb[[]domain.InvoiceLine]{V: invoice.Lines},
		invoice.Notes, invoice.SubtotalCents, invoice.TaxCents, invoice.TotalCents, invoice.PaidCents, invoice.Status,
		invoice.IssueDate, invoice.DueDate, invoice.IssueEntryID, stringArray(invoice.PaymentEntryIDs),
		invoice.VoidEntryID, invoice.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.Number = kept.Number
	invoice.CreatedAt = kept.CreatedAt.UTC()
	return invoice, nil
}

func (s *Store) DeleteInvoice(ctx context.Context, businessID, id string) error {
	return s.exec(ctx, `DELETE FROM invoices WHERE business_id = $1 AND id = $2`, businessID, id)
}
