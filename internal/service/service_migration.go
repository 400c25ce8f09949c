package service

import (
	"context"
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

// MigrateOpeningBalances books the balances carried by records that predate
// the journal: stock on hand, open receivables, cash collected and tax
// collected. It runs once per business and is all-or-nothing.
func (s *Service) MigrateOpeningBalances(ctx context.Context, auth ports.AuthContext, businessID string) (domain.OpeningBalanceResult, error) {
	if err := requireAnyRole(auth, managerRoles...); err != nil {
		return domain.OpeningBalanceResult{}, err
	}
	if err := enforceTenant(auth, businessID); err != nil {
		return domain.OpeningBalanceResult{}, err
	}
	if strings.TrimSpace(auth.UserID) == "" {
		return domain.OpeningBalanceResult{}, domain.NewFieldError("user_id", "is required")
	}

	var result domain.OpeningBalanceResult
	err := s.atomicLedger(ctx, func(ctx context.Context, tx ports.Repository, unit *ledgerUnit) error {
		business, err := tx.GetBusiness(ctx, businessID)
		if err != nil {
			return err
		}

		entries, err := tx.ListJournalEntries(ctx, businessID)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Source == domain.SourceOpeningBalance {
				return fmt.Errorf("opening balances already posted in %s: %w", entry.ID, domain.ErrConflict)
			}
		}

		amounts, err := openingAmounts(ctx, tx, businessID)
		if err != nil {
			return err
		}
		codes, err := loadChart(ctx, tx, businessID)
		if err != nil {
			return err
		}

		result = domain.OpeningBalanceResult{
			BusinessID: businessID,
			EntryDate:  s.localToday(business),
			Entries:    make([]domain.OpeningBalanceLine, 0, 4),
		}
		equity := codes.id(domain.AccountCodeOpeningEquity)
		plans := []struct {
			kind   string
			memo   string
			amount int64
			debit  string
			credit string
		}{
			{domain.OpeningInventory, "Opening inventory on hand", amounts.inventory, codes.id(domain.AccountCodeInventory), equity},
			{domain.OpeningReceivables, "Opening receivables", amounts.receivables, codes.id(domain.AccountCodeReceivable), equity},
			{domain.OpeningCash, "Opening cash collected", amounts.cash, codes.id(domain.AccountCodeCash), equity},
			{domain.OpeningSalesTax, "Opening sales tax collected", amounts.salesTax, equity, codes.id(domain.AccountCodeSalesTax)},
		}

		for _, plan := range plans {
			line := domain.OpeningBalanceLine{Kind: plan.kind, AmountCents: plan.amount}
			if plan.amount == 0 {
				line.Skipped = true
				result.Entries = append(result.Entries, line)
				continue
			}
			posted, err := unit.post(ctx, tx, domain.JournalEntry{
				BusinessID: businessID,
				EntryDate:  result.EntryDate,
				Memo:       plan.memo,
				Source:     domain.SourceOpeningBalance,
				SourceID:   plan.kind,
				CreatedBy:  auth.UserID,
				Lines: []domain.JournalLine{
					domain.Debit(plan.debit, plan.amount, ""),
					domain.Credit(plan.credit, plan.amount, ""),
				},
			})
			if err != nil {
				return fmt.Errorf("post %s opening balance: %w", plan.kind, err)
			}
			debit, credit := posted.Totals()
			result.TotalDebitCents += debit
			result.TotalCreditCents += credit
			line.EntryID = posted.ID
			result.Entries = append(result.Entries, line)
		}
		result.Balanced = result.TotalDebitCents == result.TotalCreditCents
		return nil
	})
	if err != nil {
		return domain.OpeningBalanceResult{}, err
	}

	s.telemetry.Record("ledger.opening_balances_migrated", map[string]string{"business_id": businessID})
	return result, nil
}

type openingTotals struct {
	inventory   int64
	receivables int64
	cash        int64
	salesTax    int64
}

func openingAmounts(ctx context.Context, repo ports.Repository, businessID string) (openingTotals, error) {
	var totals openingTotals

	items, err := repo.ListInventoryItems(ctx, businessID)
	if err != nil {
		return openingTotals{}, err
	}
	for _, item := range items {
		if item.Active {
			totals.inventory += item.QuantityOnHand * item.UnitCostCents
		}
	}

	sales, err := repo.ListSales(ctx, businessID)
	if err != nil {
		return openingTotals{}, err
	}
	for _, sale := range sales {
		if sale.Status == domain.SaleStatusCompleted {
			totals.cash += sale.TotalCents
			totals.salesTax += sale.TaxCents
		}
	}

	invoices, err := repo.ListInvoices(ctx, businessID)
	if err != nil {
		return openingTotals{}, err
	}
	for _, invoice := range invoices {
		switch invoice.Status {
		case domain.InvoiceIssued:
			totals.receivables += invoice.OutstandingCents()
			totals.cash += invoice.PaidCents
			totals.salesTax += invoice.TaxCents
		case domain.InvoicePaid:
			totals.cash += invoice.PaidCents
			totals.salesTax += invoice.TaxCents
		}
	}

	return totals, nil
}

// VerifyLedger checks every entry of the business and the grand totals.
func (s *Service) VerifyLedger(ctx context.Context, auth ports.AuthContext, businessID string) (domain.LedgerVerification, error) {
	if err := requireAnyRole(auth, managerRoles...); err != nil {
		return domain.LedgerVerification{}, err
	}
	if err := enforceTenant(auth, businessID); err != nil {
		return domain.LedgerVerification{}, err
	}
	if _, err := s.repo.GetBusiness(ctx, businessID); err != nil {
		return domain.LedgerVerification{}, err
	}

	entries, err := s.repo.ListJournalEntries(ctx, businessID)
	if err != nil {
		return domain.LedgerVerification{}, err
	}
	report := domain.VerifyEntries(businessID, entries)
	if !report.Balanced {
		s.telemetry.Record("ledger.drift_detected", map[string]string{"business_id": businessID})
	}
	return report, nil
}
