package preload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/wozplayer/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single preload, same as a playback load
const DefaultTimeout = 10 * time.Second

// LoadFunc produces the handle cached for a cue
type LoadFunc[T any] func(ctx context.Context, id domain.MediaID) (T, error)

// Cache deduplicates and keeps preloaded media handles per cue.
// Entries are never evicted; the vocabulary is small and fixed.
type Cache[T any] struct {
	logger  *zap.Logger
	load    LoadFunc[T]
	timeout time.Duration

	mu      sync.RWMutex
	entries map[domain.MediaID]T
	group   singleflight.Group
}

// NewCache creates a cache backed by load
func NewCache[T any](logger *zap.Logger, load LoadFunc[T], timeout time.Duration) *Cache[T] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cache[T]{
		logger:  logger,
		load:    load,
		timeout: timeout,
		entries: make(map[domain.MediaID]T),
	}
}

// Request preloads every id and waits for all of them.
// Cached ids are skipped, in-flight ids share the running load, and
// failures are logged without being returned.
func (c *Cache[T]) Request(ctx context.Context, ids []domain.MediaID) {
	var wg sync.WaitGroup
	for _, id := range ids {
		if c.Cached(id) {
			continue
		}
		wg.Add(1)
		go func(id domain.MediaID) {
			defer wg.Done()
			if _, err := c.fetch(ctx, id); err != nil {
				c.logger.Warn("Preload failed",
					zap.String("media", string(id)),
					zap.Error(err))
			}
		}(id)
	}
	wg.Wait()
}

// fetch runs at most one load per id at a time
func (c *Cache[T]) fetch(ctx context.Context, id domain.MediaID) (T, error) {
	v, err, shared := c.group.Do(string(id), func() (interface{}, error) {
		if h, ok := c.Get(id); ok {
			return h, nil
		}

		loadCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		c.logger.Debug("Preloading media", zap.String("media", string(id)))
		h, err := c.load(loadCtx, id)
		if err != nil {
			if loadCtx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("preload timed out after %s: %w", c.timeout, err)
			}
			return nil, err
		}

		c.mu.Lock()
		c.entries[id] = h
		c.mu.Unlock()

		c.logger.Info("Media preloaded", zap.String("media", string(id)))
		return h, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		c.logger.Debug("Joined in-flight preload", zap.String("media", string(id)))
	}
	return v.(T), nil
}

// Get returns the cached handle of id
func (c *Cache[T]) Get(id domain.MediaID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[id]
	return h, ok
}

// Cached reports whether id has a completed preload
func (c *Cache[T]) Cached(id domain.MediaID) bool {
	_, ok := c.Get(id)
	return ok
}

// Len returns the number of cached entries
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
