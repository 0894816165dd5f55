package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hupe1980/kpagg/core"
)

// CachedKeypoints is a read-through LRU cache in front of a KeypointStore.
// Cached sets are shared and must not be modified.
type CachedKeypoints struct {
	KeypointStore
	cache *lru.Cache[string, *core.KeypointSet]
}

// NewCachedKeypoints caches up to size keypoint sets of ks.
func NewCachedKeypoints(ks KeypointStore, size int) (*CachedKeypoints, error) {
	cache, err := lru.New[string, *core.KeypointSet](size)
	if err != nil {
		return nil, err
	}
	return &CachedKeypoints{KeypointStore: ks, cache: cache}, nil
}

// Keypoints returns the set of name, reading it from the store on a miss.
func (c *CachedKeypoints) Keypoints(ctx context.Context, name string) (*core.KeypointSet, error) {
	if set, ok := c.cache.Get(name); ok {
		return set, nil
	}
	set, err := c.KeypointStore.Keypoints(ctx, name)
	if err != nil {
		return nil, err
	}
	c.cache.Add(name, set)
	return set, nil
}

// PutKeypoints writes through and refreshes the cache.
func (c *CachedKeypoints) PutKeypoints(ctx context.Context, name string, set *core.KeypointSet) error {
	if err := c.KeypointStore.PutKeypoints(ctx, name, set); err != nil {
		c.cache.Remove(name)
		return err
	}
	c.cache.Add(name, set)
	return nil
}

// Len returns the number of cached sets.
func (c *CachedKeypoints) Len() int { return c.cache.Len() }
