package templatestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"blueprint/internal/generation"
)

// CachedStore fronts a slower Store (Postgres) with expiring LRU caches.
// Writes through the CachedStore invalidate affected entries.
type CachedStore struct {
	next  Store
	byID  *expirable.LRU[string, generation.ProjectTemplate]
	lists *expirable.LRU[string, []generation.ProjectTemplate]
}

func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	if size <= 0 {
		size = 256
	}
	return &CachedStore{
		next:  next,
		byID:  expirable.NewLRU[string, generation.ProjectTemplate](size, nil, ttl),
		lists: expirable.NewLRU[string, []generation.ProjectTemplate](64, nil, ttl),
	}
}

func (c *CachedStore) GetTemplate(ctx context.Context, id string) (generation.ProjectTemplate, error) {
	if t, ok := c.byID.Get(id); ok {
		return t, nil
	}
	t, err := c.next.GetTemplate(ctx, id)
	if err != nil {
		return generation.ProjectTemplate{}, err
	}
	c.byID.Add(id, t)
	return t, nil
}

func (c *CachedStore) ListTemplates(ctx context.Context, category string) ([]generation.ProjectTemplate, error) {
	key := normalizeCategory(category)
	if ts, ok := c.lists.Get(key); ok {
		return append([]generation.ProjectTemplate(nil), ts...), nil
	}
	ts, err := c.next.ListTemplates(ctx, category)
	if err != nil {
		return nil, err
	}
	c.lists.Add(key, ts)
	return append([]generation.ProjectTemplate(nil), ts...), nil
}

func (c *CachedStore) PutTemplate(ctx context.Context, t generation.ProjectTemplate) error {
	if err := c.next.PutTemplate(ctx, t); err != nil {
		return err
	}
	c.byID.Remove(normalize(t).ID)
	c.lists.Purge()
	return nil
}

func (c *CachedStore) DeleteTemplate(ctx context.Context, id string) error {
	if err := c.next.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	c.byID.Remove(id)
	c.lists.Purge()
	return nil
}
