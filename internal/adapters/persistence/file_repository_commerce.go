package persistence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bizzytrack/backend/internal/domain"
)

func (r *FileRepository) ListInventoryItems(ctx context.Context, businessID string) ([]domain.InventoryItem, error) {
	defer r.rlock(ctx)()

	result := make([]domain.InventoryItem, 0)
	for _, item := range r.state.InventoryItems {
		if item.BusinessID == businessID {
			result = append(result, item)
		}
	}
	sortByName(result, func(i domain.InventoryItem) string { return i.SKU }, func(i domain.InventoryItem) string { return i.ID })
	return result, nil
}

func (r *FileRepository) GetInventoryItem(ctx context.Context, businessID, id string) (domain.InventoryItem, error) {
	defer r.rlock(ctx)()

	item, ok := r.state.InventoryItems[id]
	if !ok || item.BusinessID != businessID {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	return item, nil
}

func (r *FileRepository) GetInventoryItemBySKU(ctx context.Context, businessID, sku string) (domain.InventoryItem, error) {
	defer r.rlock(ctx)()

	for _, item := range r.state.InventoryItems {
		if item.BusinessID == businessID && strings.EqualFold(item.SKU, sku) {
			return item, nil
		}
	}
	return domain.InventoryItem{}, domain.ErrNotFound
}

func (r *FileRepository) skuTakenLocked(businessID, sku, exceptID string) bool {
	for id, item := range r.state.InventoryItems {
		if id != exceptID && item.BusinessID == businessID && strings.EqualFold(item.SKU, sku) {
			return true
		}
	}
	return false
}

func (r *FileRepository) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	defer r.lock(ctx)()

	if r.skuTakenLocked(item.BusinessID, item.SKU, "") {
		return domain.InventoryItem{}, fmt.Errorf("sku %q already exists: %w", item.SKU, domain.ErrConflict)
	}

	now := time.Now().UTC()
	item.ID = r.nextIDLocked("item")
	item.CreatedAt = now
	item.UpdatedAt = now
	r.state.InventoryItems[item.ID] = item

	if err := r.commitLocked(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (r *FileRepository) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	defer r.lock(ctx)()

	current, ok := r.state.InventoryItems[item.ID]
	if !ok || current.BusinessID != item.BusinessID {
		return domain.InventoryItem{}, domain.ErrNotFound
	}
	if r.skuTakenLocked(item.BusinessID, item.SKU, item.ID) {
		return domain.InventoryItem{}, fmt.Errorf("sku %q already exists: %w", item.SKU, domain.ErrConflict)
	}

	item.CreatedAt = current.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	r.state.InventoryItems[item.ID] = item

	if err := r.commitLocked(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

func (r *FileRepository) DeleteInventoryItem(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	item, ok := r.state.InventoryItems[id]
	if !ok || item.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.InventoryItems, id)
	return r.commitLocked(ctx)
}

// ListStockAdjustments returns every adjustment of the business when itemID
// is empty.
func (r *FileRepository) ListStockAdjustments(ctx context.Context, businessID, itemID string) ([]domain.StockAdjustment, error) {
	defer r.rlock(ctx)()

	result := make([]domain.StockAdjustment, 0)
	for _, adjustment := range r.state.StockAdjustments {
		if adjustment.BusinessID != businessID {
			continue
		}
		if itemID != "" && adjustment.ItemID != itemID {
			continue
		}
		result = append(result, adjustment)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *FileRepository) CreateStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) (domain.StockAdjustment, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	adjustment.ID = r.nextIDLocked("adj")
	adjustment.CreatedAt = now
	r.state.StockAdjustments[adjustment.ID] = adjustment

	if err := r.commitLocked(ctx); err != nil {
		return domain.StockAdjustment{}, err
	}
	return adjustment, nil
}

func (r *FileRepository) ListPricingRules(ctx context.Context, businessID string) ([]domain.PricingRule, error) {
	defer r.rlock(ctx)()

	result := make([]domain.PricingRule, 0)
	for _, rule := range r.state.PricingRules {
		if rule.BusinessID == businessID {
			result = append(result, copyPricingRule(rule))
		}
	}
	return domain.SortRules(result), nil
}

func (r *FileRepository) GetPricingRule(ctx context.Context, businessID, id string) (domain.PricingRule, error) {
	defer r.rlock(ctx)()

	rule, ok := r.state.PricingRules[id]
	if !ok || rule.BusinessID != businessID {
		return domain.PricingRule{}, domain.ErrNotFound
	}
	return copyPricingRule(rule), nil
}

func (r *FileRepository) CreatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	rule.ID = r.nextIDLocked("rule")
	rule.CreatedAt = now
	rule.UpdatedAt = now
	r.state.PricingRules[rule.ID] = copyPricingRule(rule)

	if err := r.commitLocked(ctx); err != nil {
		return domain.PricingRule{}, err
	}
	return rule, nil
}

func (r *FileRepository) UpdatePricingRule(ctx context.Context, rule domain.PricingRule) (domain.PricingRule, error) {
	defer r.lock(ctx)()

	current, ok := r.state.PricingRules[rule.ID]
	if !ok || current.BusinessID != rule.BusinessID {
		return domain.PricingRule{}, domain.ErrNotFound
	}

	rule.CreatedAt = current.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	r.state.PricingRules[rule.ID] = copyPricingRule(rule)

	if err := r.commitLocked(ctx); err != nil {
		return domain.PricingRule{}, err
	}
	return rule, nil
}

func (r *FileRepository) DeletePricingRule(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	rule, ok := r.state.PricingRules[id]
	if !ok || rule.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.PricingRules, id)
	return r.commitLocked(ctx)
}

func (r *FileRepository) ListSales(ctx context.Context, businessID string) ([]domain.Sale, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Sale, 0)
	for _, sale := range r.state.Sales {
		if sale.BusinessID == businessID {
			result = append(result, copySale(sale))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SoldAt.Equal(result[j].SoldAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].SoldAt.Before(result[j].SoldAt)
	})
	return result, nil
}

func (r *FileRepository) GetSale(ctx context.Context, businessID, id string) (domain.Sale, error) {
	defer r.rlock(ctx)()

	sale, ok := r.state.Sales[id]
	if !ok || sale.BusinessID != businessID {
		return domain.Sale{}, domain.ErrNotFound
	}
	return copySale(sale), nil
}

func (r *FileRepository) CreateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	defer r.lock(ctx)()

	now := time.Now().UTC()
	sale.ID = r.nextIDLocked("sale")
	if sale.SoldAt.IsZero() {
		sale.SoldAt = now
	}
	sale.CreatedAt = now
	sale.UpdatedAt = now
	r.state.Sales[sale.ID] = copySale(sale)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (r *FileRepository) UpdateSale(ctx context.Context, sale domain.Sale) (domain.Sale, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Sales[sale.ID]
	if !ok || current.BusinessID != sale.BusinessID {
		return domain.Sale{}, domain.ErrNotFound
	}

	sale.CreatedAt = current.CreatedAt
	sale.UpdatedAt = time.Now().UTC()
	r.state.Sales[sale.ID] = copySale(sale)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (r *FileRepository) ListInvoices(ctx context.Context, businessID string) ([]domain.Invoice, error) {
	defer r.rlock(ctx)()

	result := make([]domain.Invoice, 0)
	for _, invoice := range r.state.Invoices {
		if invoice.BusinessID == businessID {
			result = append(result, copyInvoice(invoice))
		}
	}
	sortByName(result, func(i domain.Invoice) string { return i.Number }, func(i domain.Invoice) string { return i.ID })
	return result, nil
}

func (r *FileRepository) GetInvoice(ctx context.Context, businessID, id string) (domain.Invoice, error) {
	defer r.rlock(ctx)()

	invoice, ok := r.state.Invoices[id]
	if !ok || invoice.BusinessID != businessID {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return copyInvoice(invoice), nil
}

func (r *FileRepository) CreateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	defer r.lock(ctx)()

	for _, existing := range r.state.Invoices {
		if existing.BusinessID == invoice.BusinessID && existing.Number == invoice.Number {
			return domain.Invoice{}, fmt.Errorf("invoice number %s already exists: %w", invoice.Number, domain.ErrConflict)
		}
	}

	now := time.Now().UTC()
	invoice.ID = r.nextIDLocked("inv")
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	r.state.Invoices[invoice.ID] = copyInvoice(invoice)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (r *FileRepository) UpdateInvoice(ctx context.Context, invoice domain.Invoice) (domain.Invoice, error) {
	defer r.lock(ctx)()

	current, ok := r.state.Invoices[invoice.ID]
	if !ok || current.BusinessID != invoice.BusinessID {
		return domain.Invoice{}, domain.ErrNotFound
	}

	invoice.Number = current.Number
	invoice.CreatedAt = current.CreatedAt
	invoice.UpdatedAt = time.Now().UTC()
	r.state.Invoices[invoice.ID] = copyInvoice(invoice)

	if err := r.commitLocked(ctx); err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

func (r *FileRepository) DeleteInvoice(ctx context.Context, businessID, id string) error {
	defer r.lock(ctx)()

	invoice, ok := r.state.Invoices[id]
	if !ok || invoice.BusinessID != businessID {
		return domain.ErrNotFound
	}
	delete(r.state.Invoices, id)
	return r.commitLocked(ctx)
}
