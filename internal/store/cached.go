package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLookupCacheSize is the number of snippet records kept by CachedLookup.
const DefaultLookupCacheSize = 1000

// CachedLookup wraps a SnippetStore's batched lookup with an LRU of found
// records. Only hits are cached: an id missing from the store is asked for
// again on every lookup, so a deleted snippet disappears from results as soon
// as Invalidate is called for it.
type CachedLookup struct {
	inner SnippetStore
	cache *lru.Cache[string, *Snippet]
}

// NewCachedLookup creates a cached lookup over inner.
func NewCachedLookup(inner SnippetStore, size int) *CachedLookup {
	if size <= 0 {
		size = DefaultLookupCacheSize
	}
	cache, _ := lru.New[string, *Snippet](size)
	return &CachedLookup{inner: inner, cache: cache}
}

// GetSnippets serves cached records and fetches the rest in one batched call.
func (c *CachedLookup) GetSnippets(ctx context.Context, ids []string) ([]*Snippet, error) {
	results := make([]*Snippet, 0, len(ids))
	var missing []string
	for _, id := range uniqueIDs(ids) {
		if sn, ok := c.cache.Get(id); ok {
			results = append(results, sn)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return results, nil
	}

	fetched, err := c.inner.GetSnippets(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, sn := range fetched {
		c.cache.Add(sn.ID, sn)
	}
	return append(results, fetched...), nil
}

// Invalidate drops cached records after a mutation.
func (c *CachedLookup) Invalidate(ids ...string) {
	for _, id := range ids {
		c.cache.Remove(id)
	}
}

// Len returns the number of cached records.
func (c *CachedLookup) Len() int {
	return c.cache.Len()
}
