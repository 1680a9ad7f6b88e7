// Package adapters holds decorators that wrap a port implementation with
// extra behavior while keeping the port's contract.
package adapters

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/ports"
)

// CachedDirectory serves List from a per-user TTL cache. Concurrent misses
// for the same user share one backend call. Any change notification for a
// user drops that user's entry before subscribers hear about it.
type CachedDirectory struct {
	next   ports.CategoryDirectory
	cache  *cache.LRUCache[[]core.Category]
	group  singleflight.Group
	logger *log.Logger
	// epoch moves on every invalidation; a List that started in an older
	// epoch does not populate the cache.
	epoch atomic.Uint64
}

var _ ports.CategoryDirectory = (*CachedDirectory)(nil)

const maxCachedUsers = 256

func NewCachedDirectory(next ports.CategoryDirectory, ttl time.Duration, logger *log.Logger) *CachedDirectory {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedDirectory{
		next:   next,
		cache:  cache.NewLRUCache[[]core.Category](maxCachedUsers, ttl),
		logger: logger.WithComponent(log.ComponentCache),
	}
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (d *CachedDirectory) Cache() *cache.LRUCache[[]core.Category] {
	return d.cache
}

func (d *CachedDirectory) CacheStats() cache.Stats {
	return d.cache.Stats()
}

func (d *CachedDirectory) List(ctx context.Context, userID string) ([]core.Category, error) {
	if cats, ok := d.cache.Get(userID); ok {
		return cloneCategories(cats), nil
	}
	v, err, shared := d.group.Do(userID, func() (any, error) {
		epoch := d.epoch.Load()
		cats, err := d.next.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		if d.epoch.Load() == epoch {
			d.cache.Set(userID, cats)
		}
		return cats, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		d.logger.DebugContext(ctx, "Category list shared between callers", log.FieldUserID, userID)
	}
	return cloneCategories(v.([]core.Category)), nil
}

func (d *CachedDirectory) Create(ctx context.Context, userID, name string, kind core.Kind) (core.Category, error) {
	c, err := d.next.Create(ctx, userID, name, kind)
	d.invalidate(userID)
	return c, err
}

// Update and Delete do not know the owning user, so they drop every entry.
func (d *CachedDirectory) Update(ctx context.Context, id, name string, kind core.Kind) error {
	err := d.next.Update(ctx, id, name, kind)
	d.invalidate("")
	return err
}

func (d *CachedDirectory) Delete(ctx context.Context, id string) error {
	err := d.next.Delete(ctx, id)
	d.invalidate("")
	return err
}

func (d *CachedDirectory) Subscribe(userID string, onChange func()) func() {
	return d.next.Subscribe(userID, func() {
		d.invalidate(userID)
		onChange()
	})
}

// invalidate drops userID's entry, or every entry for an empty userID.
func (d *CachedDirectory) invalidate(userID string) {
	d.epoch.Add(1)
	if userID == "" {
		d.cache.Purge()
		return
	}
	d.cache.Delete(userID)
}

func cloneCategories(in []core.Category) []core.Category {
	out := make([]core.Category, len(in))
	copy(out, in)
	return out
}
