package service

import (
	"context"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListInventoryItems(ctx context.Context, auth ports.AuthContext) ([]domain.InventoryItem, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInventoryItems(ctx, businessID)
}

func (s *Service) GetInventoryItem(ctx context.Context, auth ports.AuthContext, itemID string) (domain.InventoryItem, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return s.repo.GetInventoryItem(ctx, businessID, itemID)
}

func (s *Service) CreateInventoryItem(ctx context.Context, auth ports.AuthContext, input domain.InventoryItem) (domain.InventoryItem, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	input = normalizeItem(input)
	if err := domain.Validate(input); err != nil {
		return domain.InventoryItem{}, err
	}

	input.ID = ""
	input.BusinessID = businessID
	created, err := s.repo.CreateInventoryItem(ctx, input)
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.telemetry.Record("inventory.created", map[string]string{"item_id": created.ID, "sku": created.SKU})
	return created, nil
}

// UpdateInventoryItem keeps the quantity on hand; stock moves through
// adjustments and sales.
func (s *Service) UpdateInventoryItem(ctx context.Context, auth ports.AuthContext, itemID string, input domain.InventoryItem) (domain.InventoryItem, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	input = normalizeItem(input)
	if err := domain.Validate(input); err != nil {
		return domain.InventoryItem{}, err
	}

	var updated domain.InventoryItem
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		item, err := tx.GetInventoryItem(ctx, businessID, itemID)
		if err != nil {
			return err
		}
		item.SKU = input.SKU
		item.Name = input.Name
		item.Category = input.Category
		item.UnitCostCents = input.UnitCostCents
		item.UnitPriceCents = input.UnitPriceCents
		item.ReorderLevel = input.ReorderLevel
		item.Active = input.Active

		updated, err = tx.UpdateInventoryItem(ctx, item)
		return err
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}

	s.telemetry.Record("inventory.updated", map[string]string{"item_id": updated.ID})
	return updated, nil
}

func (s *Service) DeleteInventoryItem(ctx context.Context, auth ports.AuthContext, itemID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteInventoryItem(ctx, businessID, itemID); err != nil {
		return err
	}

	s.telemetry.Record("inventory.deleted", map[string]string{"item_id": itemID})
	return nil
}

func (s *Service) ListStockAdjustments(ctx context.Context, auth ports.AuthContext, itemID string) ([]domain.StockAdjustment, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetInventoryItem(ctx, businessID, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListStockAdjustments(ctx, businessID, itemID)
}

// AdjustStock changes the quantity on hand and posts the value of the change
// at unit cost in the same unit.
func (s *Service) AdjustStock(ctx context.Context, auth ports.AuthContext, itemID string, input domain.StockAdjustment) (domain.StockAdjustment, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	input.Reason = strings.TrimSpace(input.Reason)
	input.Note = strings.TrimSpace(input.Note)
	if err := domain.Validate(input); err != nil {
		return domain.StockAdjustment{}, err
	}
	switch {
	case input.Reason == domain.StockReasonRestock && input.QuantityDelta < 0:
		return domain.StockAdjustment{}, domain.NewFieldError("quantity_delta", "must be positive for restock")
	case input.Reason == domain.StockReasonShrinkage && input.QuantityDelta > 0:
		return domain.StockAdjustment{}, domain.NewFieldError("quantity_delta", "must be negative for shrinkage")
	}

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	var created domain.StockAdjustment
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		item, err := tx.GetInventoryItem(ctx, businessID, itemID)
		if err != nil {
			return err
		}
		if item.QuantityOnHand+input.QuantityDelta < 0 {
			return domain.NewFieldError("quantity_delta", "would take stock below zero")
		}
		item.QuantityOnHand += input.QuantityDelta
		if _, err := tx.UpdateInventoryItem(ctx, item); err != nil {
			return err
		}

		adjustment := domain.StockAdjustment{
			BusinessID:    businessID,
			ItemID:        itemID,
			QuantityDelta: input.QuantityDelta,
			Reason:        input.Reason,
			Note:          input.Note,
			CreatedBy:     auth.UserID,
		}

		value := abs(input.QuantityDelta) * item.UnitCostCents
		if value > 0 {
			codes, err := loadChart(ctx, tx, businessID)
			if err != nil {
				return err
			}
			entry, err := unit.post(ctx, tx, domain.JournalEntry{
				BusinessID: businessID,
				EntryDate:  s.localToday(business),
				Memo:       "Stock " + input.Reason + " " + item.SKU,
				Source:     domain.SourceStockAdjustment,
				SourceID:   item.ID,
				CreatedBy:  auth.UserID,
				Lines:      stockAdjustmentLines(codes, input.Reason, input.QuantityDelta, value),
			})
			if err != nil {
				return err
			}
			adjustment.JournalEntryID = entry.ID
		}

		created, err = tx.CreateStockAdjustment(ctx, adjustment)
		return err
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	s.telemetry.Record("inventory.adjusted", map[string]string{"item_id": itemID, "reason": created.Reason})
	return created, nil
}

func stockAdjustmentLines(codes chart, reason string, delta, value int64) []domain.JournalLine {
	inventory := codes.id(domain.AccountCodeInventory)
	switch reason {
	case domain.StockReasonRestock:
		return []domain.JournalLine{
			domain.Debit(inventory, value, ""),
			domain.Credit(codes.id(domain.AccountCodePayable), value, ""),
		}
	case domain.StockReasonShrinkage:
		return []domain.JournalLine{
			domain.Debit(codes.id(domain.AccountCodeInventoryShrinkage), value, ""),
			domain.Credit(inventory, value, ""),
		}
	}

	equity := codes.id(domain.AccountCodeOwnerEquity)
	if delta > 0 {
		return []domain.JournalLine{domain.Debit(inventory, value, ""), domain.Credit(equity, value, "")}
	}
	return []domain.JournalLine{domain.Debit(equity, value, ""), domain.Credit(inventory, value, "")}
}

// LowStock lists active items at or below their reorder level.
func (s *Service) LowStock(ctx context.Context, auth ports.AuthContext) ([]domain.InventoryItem, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListInventoryItems(ctx, businessID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.InventoryItem, 0)
	for _, item := range items {
		if item.Active && item.QuantityOnHand <= item.ReorderLevel {
			result = append(result, item)
		}
	}
	return result, nil
}

func abs(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}
