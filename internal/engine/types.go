package engine

import "encoding/json"

// Promotion is the commerce engine's discount configuration. Only the
// fields the gateway reads are mapped; everything else stays upstream.
type Promotion struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Status      string `json:"status"`
	IsAutomatic bool   `json:"is_automatic"`
	Rules       []Rule `json:"rules,omitempty"`
}

// PromotionRef is the owning-promotion relation attached to a rule when
// rules are listed system-wide.
type PromotionRef struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// Rule is a single promotion condition (attribute, operator, values).
type Rule struct {
	ID        string        `json:"id"`
	Attribute string        `json:"attribute"`
	Operator  string        `json:"operator"`
	RuleType  string        `json:"rule_type,omitempty"`
	Values    RuleValues    `json:"values,omitempty"`
	Promotion *PromotionRef `json:"promotion,omitempty"`
}

// RuleValue is one entry of a rule's values relation. Depending on which
// API path loaded the rule, an entry arrives either as a bare scalar or
// as an {id, value} object; both collapse into this shape.
type RuleValue struct {
	ID    string      `json:"id,omitempty"`
	Value interface{} `json:"value"`
}

func (v *RuleValue) UnmarshalJSON(data []byte) error {
	var obj struct {
		ID    string      `json:"id"`
		Value interface{} `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		v.ID = obj.ID
		v.Value = obj.Value
		return nil
	}

	// not an object: bare scalar
	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	v.Value = scalar
	return nil
}

// RuleValues tolerates the three shapes the engine emits for the values
// field: a bare scalar, an array of scalars, or an array of {id, value}
// objects.
type RuleValues []RuleValue

func (vs *RuleValues) UnmarshalJSON(data []byte) error {
	var arr []RuleValue
	if err := json.Unmarshal(data, &arr); err == nil {
		*vs = arr
		return nil
	}

	var single RuleValue
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*vs = RuleValues{single}
	return nil
}

// Cart is the engine's cart snapshot. Subtotal fields are pointers so a
// missing field is distinguishable from a zero total.
type Cart struct {
	ID           string   `json:"id"`
	RegionID     string   `json:"region_id,omitempty"`
	CurrencyCode string   `json:"currency_code,omitempty"`
	ItemSubtotal *float64 `json:"item_subtotal,omitempty"`
	Subtotal     *float64 `json:"subtotal,omitempty"`
}

// Region carries the currency a cart falls back to when it has none of
// its own.
type Region struct {
	ID           string `json:"id"`
	CurrencyCode string `json:"currency_code"`
}
