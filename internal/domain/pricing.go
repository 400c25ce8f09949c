package domain

import (
	"math"
	"sort"
	"time"
)

// PricingInput is one cart line resolved against the inventory catalog.
type PricingInput struct {
	ItemID        string
	Category      string
	Quantity      int64
	ListUnitCents int64
	UnitCostCents int64
}

// ValidatePricingRule applies the rule schema plus the checks that span
// several fields.
func ValidatePricingRule(rule PricingRule) error {
	if err := Validate(rule); err != nil {
		return err
	}

	result := &ValidationError{}
	conditions := rule.Conditions
	if conditions.MaxQuantity > 0 && conditions.MaxQuantity < conditions.MinQuantity {
		result.Add("conditions.max_quantity", "must be greater than or equal to min_quantity")
	}
	if (conditions.StartTime == "") != (conditions.EndTime == "") {
		result.Add("conditions.end_time", "start_time and end_time must be set together")
	} else if conditions.StartTime != "" && conditions.StartTime == conditions.EndTime {
		result.Add("conditions.end_time", "must differ from start_time")
	}
	if conditions.StartDate != "" && conditions.EndDate != "" && conditions.EndDate < conditions.StartDate {
		result.Add("conditions.end_date", "must not be before start_date")
	}

	switch rule.Adjustment.Type {
	case AdjustmentPercentage:
		if rule.Adjustment.Percent <= 0 {
			result.Add("adjustment.percent", "must be greater than 0 for percentage adjustments")
		}
	case AdjustmentFixed:
		if rule.Adjustment.AmountCents <= 0 {
			result.Add("adjustment.amount_cents", "must be greater than 0 for fixed adjustments")
		}
	}

	return result.Err()
}

// SortRules returns rules in evaluation order: ascending priority, then id.
func SortRules(rules []PricingRule) []PricingRule {
	sorted := append([]PricingRule{}, rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority == sorted[j].Priority {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

// RuleMatches reports whether every condition set on the rule holds for the
// line at the given local time. Unset conditions always hold.
func RuleMatches(rule PricingRule, line PricingInput, at time.Time) bool {
	conditions := rule.Conditions

	if len(conditions.Categories) > 0 && !containsString(conditions.Categories, line.Category) {
		return false
	}
	if len(conditions.ItemIDs) > 0 && !containsString(conditions.ItemIDs, line.ItemID) {
		return false
	}
	if conditions.MinQuantity > 0 && line.Quantity < conditions.MinQuantity {
		return false
	}
	if conditions.MaxQuantity > 0 && line.Quantity > conditions.MaxQuantity {
		return false
	}
	if conditions.StartTime != "" && conditions.EndTime != "" && !withinTimeWindow(conditions.StartTime, conditions.EndTime, at) {
		return false
	}
	if len(conditions.DaysOfWeek) > 0 && !containsInt(conditions.DaysOfWeek, int(at.Weekday())) {
		return false
	}

	date := at.Format(DateLayout)
	if conditions.StartDate != "" && date < conditions.StartDate {
		return false
	}
	if conditions.EndDate != "" && date > conditions.EndDate {
		return false
	}

	return true
}

// withinTimeWindow treats the window as [start, end) and wraps past midnight
// when start is later than end.
func withinTimeWindow(start, end string, at time.Time) bool {
	startMinutes, err := MinutesOfDay(start)
	if err != nil {
		return false
	}
	endMinutes, err := MinutesOfDay(end)
	if err != nil {
		return false
	}
	current := at.Hour()*60 + at.Minute()
	if startMinutes < endMinutes {
		return current >= startMinutes && current < endMinutes
	}
	return current >= startMinutes || current < endMinutes
}

// ApplyAdjustment returns the new unit price, never below zero.
func ApplyAdjustment(unitCents int64, adjustment PriceAdjustment) int64 {
	var next int64
	switch adjustment.Type {
	case AdjustmentPercentage:
		next = unitCents - RoundCents(float64(unitCents)*adjustment.Percent/100)
	case AdjustmentFixed:
		next = unitCents - adjustment.AmountCents
	case AdjustmentOverride:
		next = adjustment.AmountCents
	default:
		next = unitCents
	}
	if next < 0 {
		return 0
	}
	return next
}

// EvaluateLine scans the rules in evaluation order. A matching stackable rule
// applies and the scan continues; any other match applies and ends the scan.
// Overrides always end the scan.
func EvaluateLine(rules []PricingRule, line PricingInput, at time.Time) PricedLine {
	price := line.ListUnitCents
	applied := make([]string, 0)

	for _, rule := range SortRules(rules) {
		if !rule.Active || !RuleMatches(rule, line, at) {
			continue
		}
		price = ApplyAdjustment(price, rule.Adjustment)
		applied = append(applied, rule.ID)
		if !rule.Stackable || rule.Adjustment.Type == AdjustmentOverride {
			break
		}
	}

	lineTotal := price * line.Quantity
	return PricedLine{
		ItemID:         line.ItemID,
		Category:       line.Category,
		Quantity:       line.Quantity,
		ListUnitCents:  line.ListUnitCents,
		UnitPriceCents: price,
		DiscountCents:  line.ListUnitCents*line.Quantity - lineTotal,
		LineTotalCents: lineTotal,
		UnitCostCents:  line.UnitCostCents,
		AppliedRuleIDs: applied,
	}
}

// PriceCart evaluates every line and adds tax on the discounted total.
func PriceCart(rules []PricingRule, lines []PricingInput, at time.Time, taxRatePct float64) Quote {
	quote := Quote{Lines: make([]PricedLine, 0, len(lines))}
	var net int64
	for _, line := range lines {
		priced := EvaluateLine(rules, line, at)
		quote.Lines = append(quote.Lines, priced)
		quote.SubtotalCents += priced.ListUnitCents * priced.Quantity
		net += priced.LineTotalCents
	}
	quote.DiscountCents = quote.SubtotalCents - net
	quote.TaxCents = TaxCents(net, taxRatePct)
	quote.TotalCents = net + quote.TaxCents
	return quote
}

// NetCents is the discounted amount before tax.
func (q Quote) NetCents() int64 {
	return q.SubtotalCents - q.DiscountCents
}

// TaxCents rounds half away from zero.
func TaxCents(netCents int64, taxRatePct float64) int64 {
	if taxRatePct <= 0 {
		return 0
	}
	return RoundCents(float64(netCents) * taxRatePct / 100)
}

func RoundCents(value float64) int64 {
	return int64(math.Round(value))
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

func containsInt(values []int, target int) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
