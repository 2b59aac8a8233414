package promotion

import (
	"context"
	"errors"
	"log"

	"github.com/ddudev/storefront-gateway/internal/engine"
)

// DefaultFreeShippingCode is the promotion code the storefront keys the
// free-shipping threshold on.
const DefaultFreeShippingCode = "FREESHIPPING"

// EngineAPI is the slice of the commerce engine the resolver needs.
type EngineAPI interface {
	GetPromotionByCode(ctx context.Context, code string) (*engine.Promotion, error)
	ListRules(ctx context.Context) ([]engine.Rule, error)
}

// Resolver locates the minimum-subtotal rule of the free-shipping
// promotion. Two strategies are tried in order: the direct
// promotion-with-rules load, then a system-wide rule listing filtered
// client-side, because the engine's rules relation sometimes comes back
// empty on the direct path.
type Resolver struct {
	engine EngineAPI
	code   string
}

func NewResolver(api EngineAPI, code string) *Resolver {
	if code == "" {
		code = DefaultFreeShippingCode
	}
	return &Resolver{engine: api, code: code}
}

// Resolve returns the free-shipping promotion and its subtotal rule.
// Either may be nil: a missing promotion or rule is an expected
// business state, not an error, so every failure is logged and folded
// into absence. Resolve never fails the outer request.
func (r *Resolver) Resolve(ctx context.Context) (*engine.Promotion, *engine.Rule) {
	promo, err := r.engine.GetPromotionByCode(ctx, r.code)
	if err != nil {
		if !errors.Is(err, engine.ErrNotFound) {
			log.Printf("promotion lookup failed for %q: %v", r.code, err)
		}
		return nil, nil
	}

	log.Printf("promotion %q resolved: id=%s status=%s rules=%d", r.code, promo.ID, promo.Status, len(promo.Rules))

	if rule := matchSubtotalRule(promo.Rules); rule != nil {
		return promo, rule
	}

	// fallback: the direct load omitted the rules relation
	rule := r.resolveFromRuleListing(ctx, promo.ID)
	return promo, rule
}

func (r *Resolver) resolveFromRuleListing(ctx context.Context, promoID string) *engine.Rule {
	rules, err := r.engine.ListRules(ctx)
	if err != nil {
		log.Printf("fallback rule listing failed for promotion %s: %v", promoID, err)
		return nil
	}

	var owned []engine.Rule
	for _, rule := range rules {
		if rule.Promotion == nil || rule.Promotion.ID != promoID {
			continue
		}
		if rule.RuleType != "rules" {
			continue
		}
		owned = append(owned, rule)
	}

	log.Printf("fallback rule listing: %d rules total, %d owned by promotion %s", len(rules), len(owned), promoID)

	return matchSubtotalRule(owned)
}

func matchSubtotalRule(rules []engine.Rule) *engine.Rule {
	for i := range rules {
		if rules[i].Attribute == "subtotal" && rules[i].Operator == "gte" {
			return &rules[i]
		}
	}
	return nil
}
