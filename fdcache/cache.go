// Package fdcache maps open file descriptors to their last resolved
// identity. The OS reuses a descriptor number as soon as it is closed,
// so an entry must never survive the descriptor it was created for:
// callers evict before the close call delegates to the OS.
package fdcache

import (
	"sync"

	"github.com/filetrack/removetrace/identity"
)

// Cache is a thread-safe descriptor-to-identity map.
type Cache struct {
	ids map[int]identity.ID
	mu  sync.RWMutex
}

// New creates an empty descriptor cache.
func New() *Cache {
	return &Cache{
		ids: make(map[int]identity.ID),
	}
}

// Put records the identity of an open descriptor, replacing any
// previous entry for the same number.
func (c *Cache) Put(fd int, id identity.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[fd] = id
}

// Get retrieves the identity recorded for a descriptor.
func (c *Cache) Get(fd int) (identity.ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[fd]
	return id, ok
}

// Evict removes the entry for a descriptor. Evicting a descriptor
// without an entry is a no-op.
func (c *Cache) Evict(fd int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, fd)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}
