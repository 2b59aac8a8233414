package eligibility

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ddudev/storefront-gateway/internal/engine"
)

// ErrCartNotFound is surfaced when the engine knows nothing about the
// requested cart. The handler maps it to 404.
var ErrCartNotFound = errors.New("cart not found")

// CartAPI is the slice of the commerce engine the service needs.
type CartAPI interface {
	GetCart(ctx context.Context, cartID string) (*engine.Cart, error)
}

// RuleResolver locates the free-shipping promotion and its subtotal
// rule; absence of either is a valid state.
type RuleResolver interface {
	Resolve(ctx context.Context) (*engine.Promotion, *engine.Rule)
}

// CurrencyLookup resolves a region's currency for carts that carry none
// of their own.
type CurrencyLookup interface {
	Currency(ctx context.Context, regionID string) (string, error)
}

// Recorder receives analytics events; recording is best effort and
// never fails a check.
type Recorder interface {
	Record(ctx context.Context, eventType, aggregateID string, payload interface{}) error
}

// Service computes free-shipping eligibility for a cart. Concurrent
// checks for the same cart are collapsed into one engine round trip.
type Service struct {
	carts    CartAPI
	resolver RuleResolver
	regions  CurrencyLookup
	recorder Recorder
	sfg      singleflight.Group
}

func NewService(carts CartAPI, resolver RuleResolver, regions CurrencyLookup, recorder Recorder) *Service {
	return &Service{
		carts:    carts,
		resolver: resolver,
		regions:  regions,
		recorder: recorder,
	}
}

// Check fetches the cart, resolves the promotion rule and computes the
// eligibility snapshot.
func (s *Service) Check(ctx context.Context, cartID string) (Result, error) {
	v, err, _ := s.sfg.Do(cartID, func() (interface{}, error) {
		cart, err := s.carts.GetCart(ctx, cartID)
		if err != nil {
			if errors.Is(err, engine.ErrNotFound) {
				return Result{}, ErrCartNotFound
			}
			return Result{}, fmt.Errorf("load cart %s: %w", cartID, err)
		}

		promo, rule := s.resolver.Resolve(ctx)

		if cart.CurrencyCode == "" && cart.RegionID != "" && s.regions != nil {
			currency, errCur := s.regions.Currency(ctx, cart.RegionID)
			if errCur != nil {
				log.Printf("currency lookup for region %s failed: %v", cart.RegionID, errCur)
			} else {
				cart.CurrencyCode = currency
			}
		}

		res := Compute(rule, cart, promo)
		s.record(cartID, res)
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (s *Service) record(cartID string, res Result) {
	if s.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, "eligibility_checked", cartID, res); err != nil {
		log.Printf("record eligibility event error: %v", err)
	}
}
