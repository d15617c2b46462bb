// Package recent keeps an in-memory LRU of the latest distribution
// records so hot history queries never touch the archive.
package recent

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dexfoundry/feesplitd/internal/events"
)

// DefaultSize is the cache capacity used when none is configured.
const DefaultSize = 1024

// Cache holds recent distributions keyed by sequence.
type Cache struct {
	lru *lru.Cache[uint64, events.Distribution]
}

// NewCache creates a cache with the given capacity.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[uint64, events.Distribution](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Add records a distribution.
func (c *Cache) Add(d events.Distribution) {
	c.lru.Add(d.Seq, d)
}

// Get returns the distribution with the given sequence, if cached.
func (c *Cache) Get(seq uint64) (events.Distribution, bool) {
	return c.lru.Get(seq)
}

// Latest returns up to n of the most recent distributions, newest
// first.
func (c *Cache) Latest(n int) []events.Distribution {
	keys := c.lru.Keys()
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	out := make([]events.Distribution, 0, n)
	// Keys returns oldest first.
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if d, ok := c.lru.Peek(keys[i]); ok {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of cached distributions.
func (c *Cache) Len() int { return c.lru.Len() }
