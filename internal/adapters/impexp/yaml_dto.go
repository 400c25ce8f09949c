package impexp

const catalogVersion = 1

type YAMLCatalog struct {
	Version      int               `yaml:"version"`
	Items        []YAMLItem        `yaml:"items"`
	Customers    []YAMLCustomer    `yaml:"customers"`
	PricingRules []YAMLPricingRule `yaml:"pricing_rules"`
}

type YAMLItem struct {
	SKU            string `yaml:"sku"`
	Name           string `yaml:"name"`
	Category       string `yaml:"category"`
	UnitCostCents  int64  `yaml:"unit_cost_cents"`
	UnitPriceCents int64  `yaml:"unit_price_cents"`
	QuantityOnHand int64  `yaml:"quantity_on_hand"`
	ReorderLevel   int64  `yaml:"reorder_level"`
	Active         *bool  `yaml:"active,omitempty"`
}

type YAMLCustomer struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email,omitempty"`
	Phone   string `yaml:"phone,omitempty"`
	Address string `yaml:"address,omitempty"`
	Notes   string `yaml:"notes,omitempty"`
}

type YAMLPricingRule struct {
	Name       string         `yaml:"name"`
	Priority   int            `yaml:"priority"`
	Active     *bool          `yaml:"active,omitempty"`
	Stackable  bool           `yaml:"stackable,omitempty"`
	When       YAMLConditions `yaml:"when"`
	Adjustment YAMLAdjustment `yaml:"adjustment"`
}

type YAMLConditions struct {
	Categories  []string `yaml:"categories,omitempty"`
	SKUs        []string `yaml:"skus,omitempty"`
	MinQuantity int64    `yaml:"min_quantity,omitempty"`
	MaxQuantity int64    `yaml:"max_quantity,omitempty"`
	StartTime   string   `yaml:"start_time,omitempty"`
	EndTime     string   `yaml:"end_time,omitempty"`
	DaysOfWeek  []int    `yaml:"days_of_week,omitempty"`
	StartDate   string   `yaml:"start_date,omitempty"`
	EndDate     string   `yaml:"end_date,omitempty"`
}

type YAMLAdjustment struct {
	Type        string  `yaml:"type"`
	Percent     float64 `yaml:"percent,omitempty"`
	AmountCents int64   `yaml:"amount_cents,omitempty"`
}
