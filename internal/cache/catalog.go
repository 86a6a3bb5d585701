package cache

import (
	"context"
	"strconv"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

const allCategoriesKey = "categories:all"

// CategoryCatalog caches reads of an immutable category table.
type CategoryCatalog struct {
	next   storage.CategoryCatalog
	list   *LRUCache[[]core.Category]
	exists *LRUCache[bool]
}

var _ storage.CategoryCatalog = (*CategoryCatalog)(nil)

func NewCategoryCatalog(next storage.CategoryCatalog, ttl time.Duration) *CategoryCatalog {
	return &CategoryCatalog{
		next:   next,
		list:   NewLRUCache[[]core.Category](1, ttl),
		exists: NewLRUCache[bool](256, ttl),
	}
}

// Register hands the underlying caches to m for periodic cleanup.
func (c *CategoryCatalog) Register(m *Manager) {
	m.Register(c.list)
	m.Register(c.exists)
}

func (c *CategoryCatalog) ListCategories(ctx context.Context) ([]core.Category, error) {
	if cats, ok := c.list.Get(allCategoriesKey); ok {
		return append([]core.Category(nil), cats...), nil
	}
	cats, err := c.next.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.list.Set(allCategoriesKey, append([]core.Category(nil), cats...))
	return cats, nil
}

func (c *CategoryCatalog) CategoryExists(ctx context.Context, id int64) (bool, error) {
	key := strconv.FormatInt(id, 10)
	if ok, hit := c.exists.Get(key); hit {
		return ok, nil
	}
	ok, err := c.next.CategoryExists(ctx, id)
	if err != nil {
		return false, err
	}
	c.exists.Set(key, ok)
	return ok, nil
}

// Stats sums the hit and miss counters of both caches.
func (c *CategoryCatalog) Stats() Stats {
	a, b := c.list.Stats(), c.exists.Stats()
	return Stats{
		Size:      a.Size + b.Size,
		Hits:      a.Hits + b.Hits,
		Misses:    a.Misses + b.Misses,
		Evictions: a.Evictions + b.Evictions,
	}
}
