package eligibility

import (
	"math"
	"strings"

	"github.com/ddudev/storefront-gateway/internal/engine"
)

// Rule values and cart totals are compared without conversion: the
// engine is contracted to express both in major currency units. This
// constant is the single place that assumption lives; flip it here if a
// deployment turns out to store rule values in minor units.
const AmountUnitScale = 1.0

// PromotionInfo is the slim promotion view echoed in a Result.
type PromotionInfo struct {
	Code        string `json:"code"`
	IsAutomatic bool   `json:"is_automatic"`
}

// Result is the free-shipping eligibility snapshot computed fresh per
// request. Nothing here is ever persisted.
type Result struct {
	Eligible        bool           `json:"eligible"`
	MinimumTotal    *float64       `json:"minimumTotal"`
	CurrentTotal    float64        `json:"currentTotal"`
	AmountRemaining *float64       `json:"amountRemaining"`
	Percentage      int            `json:"percentage"`
	Promotion       *PromotionInfo `json:"promotion"`
	CurrencyCode    string         `json:"currencyCode"`
}

// ParseValue derives one number from any of the value shapes the engine
// emits: a numeric literal, a numeric string, or an {id, value} object
// wrapping either. It is total: anything unrecognized parses to 0.
func ParseValue(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case string:
		return parseLeadingInt(x)
	case map[string]interface{}:
		return ParseValue(x["value"])
	case engine.RuleValue:
		return ParseValue(x.Value)
	default:
		return 0
	}
}

// parseLeadingInt mirrors the storefront's historical parseInt
// behavior: an optional sign followed by leading digits, everything
// after the digits ignored, no digits at all coerces to 0.
func parseLeadingInt(s string) float64 {
	s = strings.TrimSpace(s)
	i := 0
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n := 0.0
	seen := false
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + float64(s[i]-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// Threshold normalizes a rule's values to numbers and picks the
// maximum. A gte rule should carry exactly one value; if several are
// present the most restrictive threshold wins.
func Threshold(values engine.RuleValues) float64 {
	max := 0.0
	for _, v := range values {
		if parsed := ParseValue(v.Value); parsed > max {
			max = parsed
		}
	}
	return max
}

// Compute turns a resolved rule (or its absence) plus a cart snapshot
// into a Result. It is pure: identical inputs yield identical output,
// and it never fails; every malformed input folds into "not eligible".
func Compute(rule *engine.Rule, cart *engine.Cart, promo *engine.Promotion) Result {
	res := Result{Percentage: 0}

	if promo != nil {
		res.Promotion = &PromotionInfo{Code: promo.Code, IsAutomatic: promo.IsAutomatic}
	}
	if cart != nil {
		res.CurrencyCode = cart.CurrencyCode
		res.CurrentTotal = currentTotal(cart)
	}

	if rule == nil {
		return res
	}

	minimum := Threshold(rule.Values) * AmountUnitScale
	if minimum <= 0 {
		// unset or malformed threshold
		return res
	}

	res.MinimumTotal = &minimum
	res.Eligible = res.CurrentTotal >= minimum

	remaining := 0.0
	if !res.Eligible {
		remaining = minimum - res.CurrentTotal
	}
	res.AmountRemaining = &remaining

	res.Percentage = clampPercentage(res.CurrentTotal / minimum * 100)
	return res
}

// currentTotal deliberately prefers item_subtotal so shipping never
// counts toward its own threshold.
func currentTotal(cart *engine.Cart) float64 {
	if cart.ItemSubtotal != nil {
		return *cart.ItemSubtotal
	}
	if cart.Subtotal != nil {
		return *cart.Subtotal
	}
	return 0
}

func clampPercentage(p float64) int {
	rounded := int(math.Round(p))
	if rounded > 100 {
		return 100
	}
	if rounded < 0 {
		return 0
	}
	return rounded
}
