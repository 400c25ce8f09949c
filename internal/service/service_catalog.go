package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizzytrack/backend/internal/domain"
	"bizzytrack/backend/internal/ports"
)

// ExportCatalog encodes the items, customers and pricing rules of the caller's
// business. It returns the document and its content type.
func (s *Service) ExportCatalog(ctx context.Context, auth ports.AuthContext) ([]byte, string, error) {
	businessID, err := tenantScope(auth, anyRole...)
	if err != nil {
		return nil, "", err
	}

	items, err := s.repo.ListInventoryItems(ctx, businessID)
	if err != nil {
		return nil, "", err
	}
	customers, err := s.repo.ListCustomers(ctx, businessID)
	if err != nil {
		return nil, "", err
	}
	rules, err := s.repo.ListPricingRules(ctx, businessID)
	if err != nil {
		return nil, "", err
	}

	skus := make(map[string]string, len(items))
	for _, item := range items {
		skus[item.ID] = item.SKU
	}
	for idx := range rules {
		mapped := make([]string, 0, len(rules[idx].Conditions.ItemIDs))
		for _, itemID := range rules[idx].Conditions.ItemIDs {
			if sku, ok := skus[itemID]; ok {
				mapped = append(mapped, sku)
			}
		}
		rules[idx].Conditions.ItemIDs = mapped
	}

	raw, err := s.catalog.Encode(domain.Catalog{Items: items, Customers: customers, PricingRules: rules})
	if err != nil {
		return nil, "", fmt.Errorf("encode catalog: %w", err)
	}

	s.telemetry.Record("catalog.exported", map[string]string{"business_id": businessID})
	return raw, s.catalog.ContentType(), nil
}

// ImportCatalog upserts items by SKU and rules by name, and creates every
// customer. Nothing is written unless every record is valid. Existing items
// keep their quantity on hand so the ledger keeps matching stock value.
func (s *Service) ImportCatalog(ctx context.Context, auth ports.AuthContext, raw []byte) (domain.CatalogImportResult, error) {
	businessID, err := tenantScope(auth, managerRoles...)
	if err != nil {
		return domain.CatalogImportResult{}, err
	}

	catalog, err := s.catalog.Decode(raw)
	if err != nil {
		if IsValidationError(err) {
			return domain.CatalogImportResult{}, err
		}
		return domain.CatalogImportResult{}, domain.NewFieldError("catalog", err.Error())
	}
	if err := validateCatalog(&catalog); err != nil {
		return domain.CatalogImportResult{}, err
	}

	var result domain.CatalogImportResult
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx ports.Repository) error {
		result = domain.CatalogImportResult{}
		itemIDs := make(map[string]string, len(catalog.Items))
		for _, input := range catalog.Items {
			existing, err := tx.GetInventoryItemBySKU(ctx, businessID, input.SKU)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				input.ID = ""
				input.BusinessID = businessID
				created, err := tx.CreateInventoryItem(ctx, input)
				if err != nil {
					return err
				}
				itemIDs[created.SKU] = created.ID
				result.ItemsCreated++
			case err != nil:
				return err
			default:
				if input.QuantityOnHand != existing.QuantityOnHand {
					result.StockKept++
				}
				input.ID = existing.ID
				input.BusinessID = businessID
				input.QuantityOnHand = existing.QuantityOnHand
				updated, err := tx.UpdateInventoryItem(ctx, input)
				if err != nil {
					return err
				}
				itemIDs[updated.SKU] = updated.ID
				result.ItemsUpdated++
			}
		}

		for _, input := range catalog.Customers {
			input.ID = ""
			input.BusinessID = businessID
			if _, err := tx.CreateCustomer(ctx, input); err != nil {
				return err
			}
			result.CustomersCreated++
		}

		rules, err := tx.ListPricingRules(ctx, businessID)
		if err != nil {
			return err
		}
		ruleIDs := make(map[string]string, len(rules))
		for _, rule := range rules {
			ruleIDs[strings.ToLower(rule.Name)] = rule.ID
		}

		for idx, input := range catalog.PricingRules {
			resolved := make([]string, 0, len(input.Conditions.ItemIDs))
			for pos, sku := range input.Conditions.ItemIDs {
				itemID, ok := itemIDs[strings.ToUpper(sku)]
				if !ok {
					item, err := tx.GetInventoryItemBySKU(ctx, businessID, sku)
					if errors.Is(err, domain.ErrNotFound) {
						return domain.NewFieldError(fmt.Sprintf("pricing_rules[%d].conditions.item_ids[%d]", idx, pos), "must reference a known SKU")
					}
					if err != nil {
						return err
					}
					itemID = item.ID
				}
				resolved = append(resolved, itemID)
			}
			input.Conditions.ItemIDs = resolved
			input.BusinessID = businessID

			if ruleID, ok := ruleIDs[strings.ToLower(input.Name)]; ok {
				input.ID = ruleID
				if _, err := tx.UpdatePricingRule(ctx, input); err != nil {
					return err
				}
				result.RulesUpdated++
				continue
			}
			input.ID = ""
			created, err := tx.CreatePricingRule(ctx, input)
			if err != nil {
				return err
			}
			ruleIDs[strings.ToLower(created.Name)] = created.ID
			result.RulesCreated++
		}
		return nil
	})
	if err != nil {
		return domain.CatalogImportResult{}, err
	}

	s.telemetry.Record("catalog.imported", map[string]string{
		"business_id":   businessID,
		"items_created": fmt.Sprint(result.ItemsCreated),
		"rules_created": fmt.Sprint(result.RulesCreated),
	})
	return result, nil
}

// validateCatalog normalizes every record in place and collects all field
// failures under their position in the document.
func validateCatalog(catalog *domain.Catalog) error {
	result := &domain.ValidationError{}
	seen := make(map[string]bool, len(catalog.Items))

	for idx := range catalog.Items {
		catalog.Items[idx] = normalizeItem(catalog.Items[idx])
		prefix := indexedField("items", idx)
		collectFields(result, prefix, domain.Validate(catalog.Items[idx]))
		if seen[catalog.Items[idx].SKU] {
			result.Add(prefix+".sku", "is duplicated in the catalog")
		}
		seen[catalog.Items[idx].SKU] = true
	}
	for idx := range catalog.Customers {
		catalog.Customers[idx] = normalizeCustomer(catalog.Customers[idx])
		collectFields(result, indexedField("customers", idx), domain.Validate(catalog.Customers[idx]))
	}
	for idx := range catalog.PricingRules {
		catalog.PricingRules[idx] = normalizeRule(catalog.PricingRules[idx])
		collectFields(result, indexedField("pricing_rules", idx), domain.ValidatePricingRule(catalog.PricingRules[idx]))
	}

	return result.Err()
}

func collectFields(result *domain.ValidationError, prefix string, err error) {
	for _, field := range domain.FieldErrors(err) {
		result.Add(prefix+"."+field.Field, field.Message)
	}
}
