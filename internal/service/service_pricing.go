package service

import (
	"context"
	"errors"
	"time"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

func (s *Service) ListPricingRules(ctx context.Context, auth ports.AuthContext) ([]domain.PricingRule, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPricingRules(ctx, businessID)
}

func (s *Service) GetPricingRule(ctx context.Context, auth ports.AuthContext, ruleID string) (domain.PricingRule, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.PricingRule{}, err
	}
	return s.repo.GetPricingRule(ctx, businessID, ruleID)
}

func (s *Service) CreatePricingRule(ctx context.Context, auth ports.AuthContext, input domain.PricingRule) (domain.PricingRule, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.PricingRule{}, err
	}
	input = normalizeRule(input)
	if err := domain.ValidatePricingRule(input); err != nil {
		return domain.PricingRule{}, err
	}

	input.ID = ""
	input.BusinessID = businessID
	created, err := s.repo.CreatePricingRule(ctx, input)
	if err != nil {
		return domain.PricingRule{}, err
	}

	s.telemetry.Record("pricing_rule.created", map[string]string{"rule_id": created.ID})
	return created, nil
}

func (s *Service) UpdatePricingRule(ctx context.Context, auth ports.AuthContext, ruleID string, input domain.PricingRule) (domain.PricingRule, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.PricingRule{}, err
	}
	input = normalizeRule(input)
	if err := domain.ValidatePricingRule(input); err != nil {
		return domain.PricingRule{}, err
	}

	rule, err := s.repo.GetPricingRule(ctx, businessID, ruleID)
	if err != nil {
		return domain.PricingRule{}, err
	}
	rule.Name = input.Name
	rule.Priority = input.Priority
	rule.Active = input.Active
	rule.Stackable = input.Stackable
	rule.Conditions = input.Conditions
	rule.Adjustment = input.Adjustment

	updated, err := s.repo.UpdatePricingRule(ctx, rule)
	if err != nil {
		return domain.PricingRule{}, err
	}

	s.telemetry.Record("pricing_rule.updated", map[string]string{"rule_id": updated.ID})
	return updated, nil
}

func (s *Service) DeletePricingRule(ctx context.Context, auth ports.AuthContext, ruleID string) error {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return err
	}

	if err := s.repo.DeletePricingRule(ctx, businessID, ruleID); err != nil {
		return err
	}

	s.telemetry.Record("pricing_rule.deleted", map[string]string{"rule_id": ruleID})
	return nil
}

// Quote prices a cart at the given instant, or now, in the business timezone.
func (s *Service) Quote(ctx context.Context, auth ports.AuthContext, input domain.QuoteRequest) (domain.Quote, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := domain.Validate(input); err != nil {
		return domain.Quote{}, err
	}

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Quote{}, err
	}
	at := s.now()
	if input.At != nil {
		at = *input.At
	}

	quote, _, err := s.priceCart(ctx, s.repo, business, input.Lines, at)
	return quote, err
}

// priceCart resolves the cart against the catalog and evaluates the active
// rules. It also returns the resolved items keyed by id.
func (s *Service) priceCart(ctx context.Context, repo ports.Repository, business domain.Business, lines []domain.CartLine, at time.Time) (domain.Quote, map[string]domain.InventoryItem, error) {
	items := make(map[string]domain.InventoryItem, len(lines))
	inputs := make([]domain.PricingInput, 0, len(lines))
	result := &domain.ValidationError{}

	for idx, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			found, err := repo.GetInventoryItem(ctx, business.ID, line.ItemID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return domain.Quote{}, nil, err
			}
			if err != nil || !found.Active {
				result.Add(lineField(idx, "item_id"), "must reference an active inventory item")
				continue
			}
			item = found
			items[item.ID] = item
		}
		inputs = append(inputs, domain.PricingInput{
			ItemID:        item.ID,
			Category:      item.Category,
			Quantity:      line.Quantity,
			ListUnitCents: item.UnitPriceCents,
			UnitCostCents: item.UnitCostCents,
		})
	}
	if err := result.Err(); err != nil {
		return domain.Quote{}, nil, err
	}

	rules, err := repo.ListPricingRules(ctx, business.ID)
	if err != nil {
		return domain.Quote{}, nil, err
	}
	return domain.PriceCart(rules, inputs, at.In(business.Location()), business.TaxRatePct), items, nil
}
