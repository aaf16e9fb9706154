package fdcache

import (
	"sync"
	"testing"

	"github.com/filetrack/removetrace/identity"
)

func TestPutGetEvict(t *testing.T) {
	c := New()

	id := identity.ID{Dev: 3, Ino: 99}
	c.Put(7, id)

	got, ok := c.Get(7)
	if !ok || got != id {
		t.Errorf("Get(7) = %v %v, want %v true", got, ok, id)
	}

	c.Evict(7)
	if _, ok := c.Get(7); ok {
		t.Error("entry survived eviction")
	}
}

func TestEvictAbsentIsNoop(t *testing.T) {
	c := New()
	c.Put(1, identity.ID{Ino: 1})

	c.Evict(42)

	if c.Len() != 1 {
		t.Errorf("Len = %d after evicting absent key, want 1", c.Len())
	}
}

func TestPutReplacesEntry(t *testing.T) {
	c := New()
	c.Put(5, identity.ID{Ino: 1})
	c.Put(5, identity.ID{Ino: 2})

	got, _ := c.Get(5)
	if got.Ino != 2 {
		t.Errorf("Get(5).Ino = %d, want 2", got.Ino)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestConcurrentEviction(t *testing.T) {
	const n = 128

	c := New()
	for fd := 0; fd < n; fd++ {
		c.Put(fd, identity.ID{Ino: uint64(fd)})
	}

	var wg sync.WaitGroup
	for fd := 0; fd < n; fd++ {
		wg.Add(1)
		go func(fd int) {
			defer wg.Done()
			c.Evict(fd)
		}(fd)
	}
	wg.Wait()

	if c.Len() != 0 {
		t.Errorf("Len = %d after concurrent eviction, want 0", c.Len())
	}
}

func TestConcurrentMixedAccess(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(3)
		go func(fd int) {
			defer wg.Done()
			c.Put(fd, identity.ID{Ino: uint64(fd)})
		}(i)
		go func(fd int) {
			defer wg.Done()
			c.Get(fd)
		}(i)
		go func(fd int) {
			defer wg.Done()
			c.Evict(fd)
		}(i)
	}
	wg.Wait()
}
