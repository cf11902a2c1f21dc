package memory

import (
	"txnstore/pkg/primitives"
	"txnstore/pkg/storage/page"
)

// cache is the bounded, in-memory page table. It has no eviction policy
// of its own: the pool decides what to evict and calls remove directly.
type cache struct {
	capacity int
	pages    map[primitives.PageID]page.Page
}

func newCache(capacity int) *cache {
	return &cache{capacity: capacity, pages: make(map[primitives.PageID]page.Page, capacity)}
}

func (c *cache) get(pid primitives.PageID) (page.Page, bool) {
	p, ok := c.pages[pid]
	return p, ok
}

func (c *cache) put(pid primitives.PageID, p page.Page) {
	c.pages[pid] = p
}

func (c *cache) remove(pid primitives.PageID) {
	delete(c.pages, pid)
}

func (c *cache) full() bool {
	return len(c.pages) >= c.capacity
}

func (c *cache) all() []page.Page {
	out := make([]page.Page, 0, len(c.pages))
	for _, p := range c.pages {
		out = append(out, p)
	}
	return out
}
