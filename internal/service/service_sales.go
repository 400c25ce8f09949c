package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListSales(ctx context.Context, auth ports.AuthContext) ([]domain.Sale, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, businessID)
}

func (s *Service) GetSale(ctx context.Context, auth ports.AuthContext, saleID string) (domain.Sale, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Sale{}, err
	}
	return s.repo.GetSale(ctx, businessID, saleID)
}

// CreateSale rings up a cart: it prices the lines, takes the stock, stores the
// ticket and posts its journal entry as one unit.
func (s *Service) CreateSale(ctx context.Context, auth ports.AuthContext, input domain.SaleRequest) (domain.Sale, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Sale{}, err
	}
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.StaffID = strings.TrimSpace(input.StaffID)
	if err := domain.Validate(input); err != nil {
		return domain.Sale{}, err
	}
	if input.CustomerID != "" {
		if _, err := s.repo.GetCustomer(ctx, businessID, input.CustomerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Sale{}, domain.NewFieldError("customer_id", "must reference a customer of this business")
			}
			return domain.Sale{}, err
		}
	}
	if input.StaffID != "" {
		if err := s.ensureStaffBelongToBusiness(ctx, s.repo, businessID, "staff_id", []string{input.StaffID}); err != nil {
			if IsValidationError(err) {
				return domain.Sale{}, domain.NewFieldError("staff_id", "must reference staff of this business")
			}
			return domain.Sale{}, err
		}
	}

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Sale{}, err
	}
	soldAt := s.now().UTC()

	var created domain.Sale
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		quote, items, err := s.priceCart(ctx, tx, business, input.Lines, soldAt)
		if err != nil {
			return err
		}

		demand := make(map[string]int64, len(items))
		result := &domain.ValidationError{}
		for idx, line := range input.Lines {
			demand[line.ItemID] += line.Quantity
			if demand[line.ItemID] > items[line.ItemID].QuantityOnHand {
				result.Add(lineField(idx, "quantity"), fmt.Sprintf("exceeds stock on hand (%d)", items[line.ItemID].QuantityOnHand))
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		for itemID, quantity := range demand {
			item := items[itemID]
			item.QuantityOnHand -= quantity
			if _, err := tx.UpdateInventoryItem(ctx, item); err != nil {
				return err
			}
		}

		var cost int64
		for _, line := range quote.Lines {
			cost += line.UnitCostCents * line.Quantity
		}

		created, err = tx.CreateSale(ctx, domain.Sale{
			BusinessID:    businessID,
			CustomerID:    input.CustomerID,
			StaffID:       input.StaffID,
			PaymentMethod: input.PaymentMethod,
			Status:        domain.SaleStatusCompleted,
			Lines:         quote.Lines,
			SubtotalCents: quote.SubtotalCents,
			DiscountCents: quote.DiscountCents,
			TaxCents:      quote.TaxCents,
			TotalCents:    quote.TotalCents,
			CostCents:     cost,
			SoldAt:        soldAt,
			CreatedBy:     auth.UserID,
		})
		if err != nil {
			return err
		}

		if created.TotalCents == 0 && cost == 0 {
			return nil
		}
		codes, err := loadChart(ctx, tx, businessID)
		if err != nil {
			return err
		}
		entry, err := unit.post(ctx, tx, domain.JournalEntry{
			BusinessID: businessID,
			EntryDate:  soldAt.In(business.Location()).Format(domain.DateLayout),
			Memo:       "Sale " + created.ID,
			Source:     domain.SourceSale,
			SourceID:   created.ID,
			CreatedBy:  auth.UserID,
			Lines: domain.CompactLines(
				domain.Debit(codes.id(domain.AccountCodeCash), created.TotalCents, ""),
				domain.Credit(codes.id(domain.AccountCodeSalesRevenue), quote.NetCents(), ""),
				domain.Credit(codes.id(domain.AccountCodeSalesTax), created.TaxCents, ""),
				domain.Debit(codes.id(domain.AccountCodeCostOfGoods), cost, ""),
				domain.Credit(codes.id(domain.AccountCodeInventory), cost, ""),
			),
		})
		if err != nil {
			return err
		}

		created.JournalEntryID = entry.ID
		created, err = tx.UpdateSale(ctx, created)
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.telemetry.Record("sale.created", map[string]string{"sale_id": created.ID, "payment_method": created.PaymentMethod})
	return created, nil
}

// VoidSale puts the stock back and reverses the sale entry.
func (s *Service) VoidSale(ctx context.Context, auth ports.AuthContext, saleID string, input domain.VoidRequest) (domain.Sale, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.Sale{}, err
	}
	input.Reason = strings.TrimSpace(input.Reason)
	if err := domain.Validate(input); err != nil {
		return domain.Sale{}, err
	}

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Sale{}, err
	}

	var voided domain.Sale
	err = s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		sale, err := tx.GetSale(ctx, businessID, saleID)
		if err != nil {
			return err
		}
		if sale.Status != domain.SaleStatusCompleted {
			return fmt.Errorf("sale is %s: %w", sale.Status, domain.ErrConflict)
		}

		for _, line := range sale.Lines {
			item, err := tx.GetInventoryItem(ctx, businessID, line.ItemID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			item.QuantityOnHand += line.Quantity
			if _, err := tx.UpdateInventoryItem(ctx, item); err != nil {
				return err
			}
		}

		if sale.JournalEntryID != "" {
			original, err := tx.GetJournalEntry(ctx, businessID, sale.JournalEntryID)
			if err != nil {
				return err
			}
			reversal, err := unit.reverse(ctx, tx, original, s.localToday(business), "Void of sale "+sale.ID, auth.UserID, domain.SourceSaleVoid)
			if err != nil {
				return err
			}
			sale.VoidEntryID = reversal.ID
		}

		sale.Status = domain.SaleStatusVoided
		sale.VoidReason = input.Reason
		voided, err = tx.UpdateSale(ctx, sale)
		return err
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.telemetry.Record("sale.voided", map[string]string{"sale_id": voided.ID})
	return voided, nil
}
