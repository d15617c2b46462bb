package rates

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Cache holds the rate set currently in force and refreshes it from the
// governance oracle once the cached expiry passes. With no oracle
// configured it serves the bootstrap values indefinitely; epoch 0 runs
// on hardcoded defaults before any oracle exists.
type Cache struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	oracle GovernanceOracle
	cur    RateSet

	// onUpdate fires after a successful refresh, outside the lock.
	onUpdate func(RateSet)
}

// NewCache creates a rate cache seeded with bootstrap rates. oracle may
// be nil until governance is deployed.
func NewCache(clock clockwork.Clock, oracle GovernanceOracle, bootstrap RateSet) (*Cache, error) {
	if err := bootstrap.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap rates: %w", err)
	}
	return &Cache{clock: clock, oracle: oracle, cur: bootstrap}, nil
}

// OnUpdate registers a callback fired after each successful refresh.
func (c *Cache) OnUpdate(fn func(RateSet)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// SetOracle swaps the governance oracle reference. The cached rates keep
// serving until their expiry passes.
func (c *Cache) SetOracle(oracle GovernanceOracle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oracle = oracle
}

// Oracle returns the governance oracle reference, nil before wiring.
func (c *Cache) Oracle() GovernanceOracle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.oracle
}

// Current returns the rate set in force now, refreshing from the oracle
// if the cached expiry has passed. A refreshed set that fails the
// 100%-sum check aborts the whole operation.
func (c *Cache) Current(ctx context.Context) (RateSet, error) {
	c.mu.Lock()

	now := c.clock.Now()
	if !now.After(c.cur.Expiry) || c.oracle == nil {
		rs := c.cur
		c.mu.Unlock()
		return rs, nil
	}

	fresh, err := c.oracle.LatestRates(ctx)
	if err != nil {
		c.mu.Unlock()
		return RateSet{}, fmt.Errorf("refresh epoch rates: %w", err)
	}
	if err := fresh.Validate(); err != nil {
		c.mu.Unlock()
		return RateSet{}, err
	}

	c.cur = fresh
	fire := c.onUpdate
	c.mu.Unlock()

	if fire != nil {
		fire(fresh)
	}
	return fresh, nil
}

// Cached returns the rate set as currently cached, with no refresh.
func (c *Cache) Cached() RateSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
