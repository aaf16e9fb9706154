// Package dedup suppresses duplicate removal notifications. Bursts of
// notifications for the same object (retry loops in application code,
// several hardlinks torn down at once) would otherwise bloat the
// journal with rows that add nothing.
package dedup

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache remembers recently journaled identities with LRU eviction, so
// memory stays bounded no matter how many objects are removed.
type Cache struct {
	cache  *lru.Cache
	window time.Duration
}

// NewCache creates a size-constrained dedup cache. Entries older than
// the window no longer suppress anything.
func NewCache(size int, window time.Duration) (*Cache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		cache:  cache,
		window: window,
	}, nil
}

// Seen reports whether the identity was journaled within the window,
// and records it as journaled now if it was not.
func (c *Cache) Seen(dev, ino uint64) bool {
	key := fmt.Sprintf("%d:%d", dev, ino)
	now := time.Now()

	if v, ok := c.cache.Get(key); ok {
		if last, ok := v.(time.Time); ok && now.Sub(last) < c.window {
			return true
		}
	}

	c.cache.Add(key, now)
	return false
}

// Len returns the number of tracked identities.
func (c *Cache) Len() int {
	return c.cache.Len()
}
