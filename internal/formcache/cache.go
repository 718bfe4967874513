// Package formcache keeps published forms in memory for the submission path.
package formcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faciam-dev/gcform/internal/store"
	"github.com/faciam-dev/gcform/pkg/metrics"
)

// Loader returns every published form.
type Loader func(ctx context.Context) ([]store.Record, error)

type Option func(*Cache)

// WithLogger sets the logger used for reload failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// Cache maps slugs and ids of published forms to their records.
type Cache struct {
	mu     sync.RWMutex
	bySlug map[string]store.Record
	slugOf map[string]string

	load Loader
	log  *zap.SugaredLogger
}

// New loads the published forms once and, when interval is positive,
// reloads them until ctx is done.
func New(ctx context.Context, load Loader, interval time.Duration, opts ...Option) (*Cache, error) {
	c := &Cache{load: load, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(c)
	}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	if interval > 0 {
		go c.start(ctx, interval)
	}
	return c, nil
}

func (c *Cache) start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				c.log.Warnw("reload published forms", "err", err)
			}
		}
	}
}

// Reload replaces the cached forms with a fresh load. On error the current
// contents are kept.
func (c *Cache) Reload(ctx context.Context) error {
	recs, err := c.load(ctx)
	if err != nil {
		return err
	}
	bySlug := make(map[string]store.Record, len(recs))
	slugOf := make(map[string]string, len(recs))
	for _, r := range recs {
		// records arrive oldest first, so the newest form wins a shared slug
		if prev, ok := bySlug[r.Form.Slug]; ok {
			delete(slugOf, prev.Form.ID)
		}
		bySlug[r.Form.Slug] = r
		slugOf[r.Form.ID] = r.Form.Slug
	}
	c.mu.Lock()
	c.bySlug, c.slugOf = bySlug, slugOf
	c.mu.Unlock()
	c.log.Debugw("published forms reloaded", "count", len(recs))
	return nil
}

// BySlug returns the published form with slug.
func (c *Cache) BySlug(slug string) (store.Record, bool) {
	c.mu.RLock()
	r, ok := c.bySlug[slug]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.Inc()
		return store.Record{}, false
	}
	metrics.CacheHits.Inc()
	return r, true
}

// ByID returns the published form with id.
func (c *Cache) ByID(id string) (store.Record, bool) {
	c.mu.RLock()
	slug, ok := c.slugOf[id]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.Inc()
		return store.Record{}, false
	}
	return c.BySlug(slug)
}

// Put stores a just-published form.
func (c *Cache) Put(r store.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.slugOf[r.Form.ID]; ok && old != r.Form.Slug {
		delete(c.bySlug, old)
	}
	if prev, ok := c.bySlug[r.Form.Slug]; ok && prev.Form.ID != r.Form.ID {
		delete(c.slugOf, prev.Form.ID)
	}
	c.bySlug[r.Form.Slug] = r
	c.slugOf[r.Form.ID] = r.Form.Slug
}

// Remove drops a form, e.g. after it was unpublished.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slug, ok := c.slugOf[id]; ok {
		delete(c.bySlug, slug)
		delete(c.slugOf, id)
	}
}

// Len returns the number of cached forms.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySlug)
}
