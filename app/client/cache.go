package client

import (
	"context"
	"sync"

	"github.com/lysyi3m/watchlist/app/media"
)

type Lister interface {
	List(ctx context.Context, q Query) ([]media.Record, error)
}

var _ Lister = (*Client)(nil)

// ListCache keeps the last fetched list per query. Invalidate drops every
// entry at once; a fetch that started before an invalidation is returned to
// its caller but not cached.
type ListCache struct {
	lister     Lister
	mu         sync.Mutex
	entries    map[Query][]media.Record
	generation uint64
}

func NewListCache(lister Lister) *ListCache {
	return &ListCache{lister: lister, entries: make(map[Query][]media.Record)}
}

func (c *ListCache) Get(ctx context.Context, q Query) ([]media.Record, error) {
	c.mu.Lock()
	if items, ok := c.entries[q]; ok {
		c.mu.Unlock()
		return items, nil
	}
	generation := c.generation
	c.mu.Unlock()

	items, err := c.lister.List(ctx, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == generation {
		c.entries[q] = items
	}
	c.mu.Unlock()

	return items, nil
}

// Peek returns the cached list without fetching.
func (c *ListCache) Peek(q Query) ([]media.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, ok := c.entries[q]
	return items, ok
}

func (c *ListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	clear(c.entries)
}
