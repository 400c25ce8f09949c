package impexp

import (
	"fmt"

	"bizzytrack/backend/internal/domain"
)

// MapCatalog turns the document into domain records. Records that omit
// active are imported as active.
func MapCatalog(dto YAMLCatalog) (domain.Catalog, error) {
	if dto.Version != 0 && dto.Version != catalogVersion {
		return domain.Catalog{}, domain.NewFieldError("version", fmt.Sprintf("unsupported catalog version %d", dto.Version))
	}

	catalog := domain.Catalog{
		Items:        make([]domain.InventoryItem, 0, len(dto.Items)),
		Customers:    make([]domain.Customer, 0, len(dto.Customers)),
		PricingRules: make([]domain.PricingRule, 0, len(dto.PricingRules)),
	}

	for _, item := range dto.Items {
		catalog.Items = append(catalog.Items, domain.InventoryItem{
			SKU:            item.SKU,
			Name:           item.Name,
			Category:       item.Category,
			UnitCostCents:  item.UnitCostCents,
			UnitPriceCents: item.UnitPriceCents,
			QuantityOnHand: item.QuantityOnHand,
			ReorderLevel:   item.ReorderLevel,
			Active:         activeOrDefault(item.Active),
		})
	}

	for _, customer := range dto.Customers {
		catalog.Customers = append(catalog.Customers, domain.Customer{
			Name:    customer.Name,
			Email:   customer.Email,
			Phone:   customer.Phone,
			Address: customer.Address,
			Notes:   customer.Notes,
		})
	}

	for _, rule := range dto.PricingRules {
		catalog.PricingRules = append(catalog.PricingRules, domain.PricingRule{
			Name:      rule.Name,
			Priority:  rule.Priority,
			Active:    activeOrDefault(rule.Active),
			Stackable: rule.Stackable,
			Conditions: domain.PricingConditions{
				Categories:  rule.When.Categories,
				ItemIDs:     rule.When.SKUs,
				MinQuantity: rule.When.MinQuantity,
				MaxQuantity: rule.When.MaxQuantity,
				StartTime:   rule.When.StartTime,
				EndTime:     rule.When.EndTime,
				DaysOfWeek:  rule.When.DaysOfWeek,
				StartDate:   rule.When.StartDate,
				EndDate:     rule.When.EndDate,
			},
			Adjustment: domain.PriceAdjustment{
				Type:        rule.Adjustment.Type,
				Percent:     rule.Adjustment.Percent,
				AmountCents: rule.Adjustment.AmountCents,
			},
		})
	}

	return catalog, nil
}

// ToYAML is the inverse of MapCatalog.
func ToYAML(catalog domain.Catalog) YAMLCatalog {
	dto := YAMLCatalog{
		Version:      catalogVersion,
		Items:        make([]YAMLItem, 0, len(catalog.Items)),
		Customers:    make([]YAMLCustomer, 0, len(catalog.Customers)),
		PricingRules: make([]YAMLPricingRule, 0, len(catalog.PricingRules)),
	}

	for _, item := range catalog.Items {
		active := item.Active
		dto.Items = append(dto.Items, YAMLItem{
			SKU:            item.SKU,
			Name:           item.Name,
			Category:       item.Category,
			UnitCostCents:  item.UnitCostCents,
			UnitPriceCents: item.UnitPriceCents,
			QuantityOnHand: item.QuantityOnHand,
			ReorderLevel:   item.ReorderLevel,
			Active:         &active,
		})
	}

	for _, customer := range catalog.Customers {
		dto.Customers = append(dto.Customers, YAMLCustomer{
			Name:    customer.Name,
			Email:   customer.Email,
			Phone:   customer.Phone,
			Address: customer.Address,
			Notes:   customer.Notes,
		})
	}

	for _, rule := range catalog.PricingRules {
		active := rule.Active
		dto.PricingRules = append(dto.PricingRules, YAMLPricingRule{
			Name:      rule.Name,
			Priority:  rule.Priority,
			Active:    &active,
			Stackable: rule.Stackable,
			When: YAMLConditions{
				Categories:  rule.Conditions.Categories,
				SKUs:        rule.Conditions.ItemIDs,
				MinQuantity: rule.Conditions.MinQuantity,
				MaxQuantity: rule.Conditions.MaxQuantity,
				StartTime:   rule.Conditions.StartTime,
				EndTime:     rule.Conditions.EndTime,
				DaysOfWeek:  rule.Conditions.DaysOfWeek,
				StartDate:   rule.Conditions.StartDate,
				EndDate:     rule.Conditions.EndDate,
			},
			Adjustment: YAMLAdjustment{
				Type:        rule.Adjustment.Type,
				Percent:     rule.Adjustment.Percent,
				AmountCents: rule.Adjustment.AmountCents,
			},
		})
	}

	return dto
}

func activeOrDefault(active *bool) bool {
	if active == nil {
		return true
	}
	return *active
}
