package query

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes MetadataFull results for a short TTL, backed by
// patrickmn/go-cache rather than a hand-rolled map+ticker -- the same
// TTL-cache library the teacher's go.mod already pulls in (indirectly,
// via bleve) for this exact concern. go-cache owns expiry and its own
// janitor goroutine; Cache layers a soft maxSize bound on top, since
// go-cache itself is unbounded.
type Cache struct {
	inner      *gocache.Cache
	maxSize    int
	defaultTTL time.Duration
}

// NewCache creates a cache whose entries expire defaultTTL after
// insertion unless overridden per-entry via SetWithTTL.
func NewCache(maxSize int, defaultTTL time.Duration) *Cache {
	return &Cache{
		inner:      gocache.New(defaultTTL, defaultTTL),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
	}
}

// Get retrieves an item from the cache, or nil if absent or expired.
func (c *Cache) Get(key string) interface{} {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil
	}
	return v
}

// Set adds an item to the cache under the cache's default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL adds an item to the cache with a specific TTL.
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if c.maxSize > 0 && c.inner.ItemCount() >= c.maxSize {
		c.evictOne()
	}
	c.inner.Set(key, value, ttl)
}

// Delete removes an item from the cache.
func (c *Cache) Delete(key string) {
	c.inner.Delete(key)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.inner.Flush()
}

// GetStats returns cache statistics.
func (c *Cache) GetStats() map[string]int {
	items := c.inner.Items()
	now := time.Now().UnixNano()
	valid, expired := 0, 0
	for _, item := range items {
		if item.Expiration > 0 && now > item.Expiration {
			expired++
		} else {
			valid++
		}
	}
	return map[string]int{
		"total":   len(items),
		"valid":   valid,
		"expired": expired,
		"maxSize": c.maxSize,
	}
}

// evictOne drops an arbitrary entry to stay under maxSize, since
// go-cache does not itself enforce a size bound.
func (c *Cache) evictOne() {
	for k := range c.inner.Items() {
		c.inner.Delete(k)
		return
	}
}
