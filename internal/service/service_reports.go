package service

import (
	"context"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

// TrialBalance totals every account over entries dated on or before asOf.
func (s *Service) TrialBalance(ctx context.Context, auth ports.AuthContext, asOf string) (domain.TrialBalance, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.TrialBalance{}, err
	}
	if asOf != "" {
		if _, err := domain.ValidateDate(asOf); err != nil {
			return domain.TrialBalance{}, domain.NewFieldError("as_of", "must be a date formatted YYYY-MM-DD")
		}
	}

	accounts, err := s.repo.ListAccounts(ctx, businessID)
	if err != nil {
		return domain.TrialBalance{}, err
	}
	entries, err := s.repo.ListJournalEntries(ctx, businessID)
	if err != nil {
		return domain.TrialBalance{}, err
	}
	return domain.BuildTrialBalance(accounts, entries, asOf), nil
}

// SalesSummary aggregates completed sales whose local sale date falls in
// [from, to].
func (s *Service) SalesSummary(ctx context.Context, auth ports.AuthContext, from, to string) (domain.SalesSummary, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	if err := validateDateRange(from, to); err != nil {
		return domain.SalesSummary{}, err
	}

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	sales, err := s.repo.ListSales(ctx, businessID)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	summary := domain.SalesSummary{From: from, To: to}
	location := business.Location()
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		date := sale.SoldAt.In(location).Format(domain.DateLayout)
		if (from != "" && date < from) || (to != "" && date > to) {
			continue
		}
		summary.SaleCount++
		summary.GrossCents += sale.SubtotalCents
		summary.DiscountCents += sale.DiscountCents
		summary.TaxCents += sale.TaxCents
		summary.CostCents += sale.CostCents
	}
	summary.NetCents = summary.GrossCents - summary.DiscountCents
	summary.MarginCents = summary.NetCents - summary.CostCents
	return summary, nil
}
