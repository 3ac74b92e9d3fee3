package scraper

import "strings"

// Fuel codes known to the pipeline.
const (
	FuelAI92     = "AI92"
	FuelAI92Plus = "AI92PLUS"
	FuelAI95     = "AI95"
	FuelDiesel   = "DIESEL"
	FuelGas      = "GAS"
)

// ListingConfig defines how to extract station cards from a listing page.
type ListingConfig struct {
	CardSelector       string `yaml:"card_selector" json:"card_selector"`
	NameSelector       string `yaml:"name_selector" json:"name_selector"`
	BrandSelector      string `yaml:"brand_selector,omitempty" json:"brand_selector,omitempty"`
	AddressSelector    string `yaml:"address_selector,omitempty" json:"address_selector,omitempty"`
	LocationSelector   string `yaml:"location_selector" json:"location_selector"`
	PriceBlockSelector string `yaml:"price_block_selector" json:"price_block_selector"`
	FuelLabelSelector  string `yaml:"fuel_label_selector" json:"fuel_label_selector"`
	PriceSelector      string `yaml:"price_selector" json:"price_selector"`
}

// DefaultListingConfig returns the selectors of the upstream price
// aggregator's station cards.
func DefaultListingConfig() ListingConfig {
	return ListingConfig{
		CardSelector:       "div.ListingCard_orgCard__xCwyi",
		NameSelector:       "a.ListingCard_name__O9sxw",
		BrandSelector:      "span.ListingCard_brand__Jk1pQ",
		AddressSelector:    "p.ListingCard_iconBlockText___egMo",
		LocationSelector:   "div.ListingCard_location__yrEON a:last-child",
		PriceBlockSelector: "div.PricesListNew_block__4lVEL",
		FuelLabelSelector:  "div.PricesListNew_blockLabel__FyFeq",
		PriceSelector:      "div.PricesListNew_pricing__m0s8Y p",
	}
}

// FuelRule maps an upstream fuel label to a fuel code. A label matches when
// it contains any of Keywords and none of Excludes, compared
// case-insensitively.
type FuelRule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Excludes []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Code     string   `yaml:"code" json:"code"`
}

// DefaultFuelRules returns the label rules in evaluation order. A "92" label
// carrying a plus is never plain AI92.
func DefaultFuelRules() []FuelRule {
	return []FuelRule{
		{Keywords: []string{"92+", "92 +", "92плюс", "92 плюс"}, Code: FuelAI92Plus},
		{Keywords: []string{"92"}, Excludes: []string{"+", "плюс"}, Code: FuelAI92},
		{Keywords: []string{"95"}, Code: FuelAI95},
		{Keywords: []string{"газ", "пропан", "lpg"}, Code: FuelGas},
		{Keywords: []string{"дт", "дизель", "diesel"}, Code: FuelDiesel},
	}
}

// MatchFuel returns the code of the first rule matching label.
func MatchFuel(label string, rules []FuelRule) (string, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "", false
	}

	for _, rule := range rules {
		if rule.matches(label) {
			return rule.Code, true
		}
	}

	return "", false
}

func (r FuelRule) matches(label string) bool {
	for _, ex := range r.Excludes {
		if ex != "" && strings.Contains(label, strings.ToLower(ex)) {
			return false
		}
	}

	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(label, strings.ToLower(kw)) {
			return true
		}
	}

	return false
}
