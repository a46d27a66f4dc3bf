package insights

import "fmt"

// Policy names accepted by PolicyByName.
const (
	PolicyStrict  = "strict"
	PolicyLenient = "lenient"
)

// Policy sets the significance guards applied before magnitude rules fire.
// A rule needs a member count strictly above its guard.
type Policy struct {
	Name string `json:"name"`
	// HighValueMinCount guards the high-value cluster rule.
	HighValueMinCount int `json:"high_value_min_count"`
	// SmallPurchaseMinCount guards the frequent small purchases rule.
	SmallPurchaseMinCount int `json:"small_purchase_min_count"`
	// ShoppingMinCount guards the frequent shopping rule.
	ShoppingMinCount int `json:"shopping_min_count"`
}

// StrictInsightPolicy is used for whole expense-history analysis: only
// clusters with more than five members count for magnitude insights.
func StrictInsightPolicy() Policy {
	return Policy{
		Name:                  PolicyStrict,
		HighValueMinCount:     5,
		SmallPurchaseMinCount: 5,
		ShoppingMinCount:      10,
	}
}

// LenientInsightPolicy lowers the high-spending guard to more than two members.
func LenientInsightPolicy() Policy {
	return Policy{
		Name:                  PolicyLenient,
		HighValueMinCount:     2,
		SmallPurchaseMinCount: 5,
		ShoppingMinCount:      10,
	}
}

// PolicyByName returns a named policy. Empty selects the strict policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PolicyStrict:
		return StrictInsightPolicy(), nil
	case PolicyLenient:
		return LenientInsightPolicy(), nil
	default:
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}
