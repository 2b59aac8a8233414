// Package region caches the engine's region→currency map. The cache
// state is explicit: the data plus the timestamps of the last refresh
// and the last failure, so refresh and backoff behavior is testable
// without a module-level singleton.
package region

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ddudev/storefront-gateway/internal/engine"
)

var ErrUnknownRegion = errors.New("unknown region")

// RegionLister is the slice of the commerce engine the cache needs.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]engine.Region, error)
}

type Cache struct {
	engine  RegionLister
	ttl     time.Duration
	backoff time.Duration

	mu              sync.Mutex
	data            map[string]string
	lastRefreshedAt time.Time
	lastFailureAt   time.Time
}

func NewCache(api RegionLister, ttl, backoff time.Duration) *Cache {
	return &Cache{
		engine:  api,
		ttl:     ttl,
		backoff: backoff,
	}
}

// Currency resolves a region's currency code, refreshing the whole map
// when it is stale. After a refresh failure the cache serves stale data
// for the backoff window instead of hammering the engine.
func (c *Cache) Currency(ctx context.Context, regionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.needsRefresh(now) {
		if err := c.refresh(ctx, now); err != nil {
			if c.data == nil {
				return "", err
			}
			log.Printf("region refresh failed, serving stale data: %v", err)
		}
	}

	if c.data == nil {
		return "", errors.New("region map unavailable")
	}

	currency, ok := c.data[regionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRegion, regionID)
	}
	return currency, nil
}

func (c *Cache) needsRefresh(now time.Time) bool {
	if c.data != nil && now.Sub(c.lastRefreshedAt) < c.ttl {
		return false
	}
	// stale or empty, but a recent failure puts refreshes on hold
	return now.Sub(c.lastFailureAt) >= c.backoff
}

// refresh must be called with the mutex held.
func (c *Cache) refresh(ctx context.Context, now time.Time) error {
	regions, err := c.engine.ListRegions(ctx)
	if err != nil {
		c.lastFailureAt = now
		return fmt.Errorf("list regions: %w", err)
	}

	data := make(map[string]string, len(regions))
	for _, r := range regions {
		data[r.ID] = r.CurrencyCode
	}
	c.data = data
	c.lastRefreshedAt = now
	return nil
}
