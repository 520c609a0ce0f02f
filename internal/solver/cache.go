package solver

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/san-kum/pksim/internal/pk"
)

// DefaultParseTTL is how long a parsed model stays cached.
const DefaultParseTTL = time.Hour

// CachedParser wraps a Service and memoizes successful parses keyed by the xxHash64 of
// the equation text. Simulate and Fit pass through.
type CachedParser struct {
	Service

	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[uint64]cacheEntry
	hits    int
	misses  int
}

type cacheEntry struct {
	text   string
	model  *pk.Model
	expiry time.Time
}

// NewCachedParser wraps svc. A ttl <= 0 uses DefaultParseTTL.
func NewCachedParser(svc Service, ttl time.Duration) *CachedParser {
	if ttl <= 0 {
		ttl = DefaultParseTTL
	}
	return &CachedParser{
		Service: svc,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uint64]cacheEntry),
	}
}

func (c *CachedParser) Parse(ctx context.Context, equations string) (*pk.Model, error) {
	key := xxhash.Sum64String(equations)
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.text == equations && now.Before(e.expiry) {
		c.hits++
		c.mu.Unlock()
		return e.model.Clone(), nil
	}
	c.misses++
	c.mu.Unlock()

	m, err := c.Service.Parse(ctx, equations)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{text: equations, model: m.Clone(), expiry: now.Add(c.ttl)}
	c.mu.Unlock()
	return m, nil
}

// Stats returns the hit and miss counts.
func (c *CachedParser) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Purge drops every cached model.
func (c *CachedParser) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
