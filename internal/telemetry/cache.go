package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type cacheEntry struct {
	modTime time.Time
	size    int64
	flight  *Flight
}

// Cache keeps parsed flights in memory. An entry is reused only while the
// file's modification time and size are unchanged.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Load returns the flight at path, parsing it if the cached copy is stale.
// Callers must not modify the returned flight.
func (c *Cache) Load(path string) (*Flight, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := filepath.Clean(path)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		return e.flight, nil
	}

	flight, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{modTime: info.ModTime(), size: info.Size(), flight: flight}
	c.mu.Unlock()
	return flight, nil
}

// LoadAll loads every path concurrently. Results keep the order of paths;
// failed files are reported in errs keyed by path.
func (c *Cache) LoadAll(ctx context.Context, paths []string) ([]*Flight, map[string]error) {
	flights := make([]*Flight, len(paths))
	errs := make([]error, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			flights[i], errs[i] = c.Load(p)
			return nil
		})
	}
	_ = g.Wait()

	failed := make(map[string]error)
	out := make([]*Flight, 0, len(paths))
	for i, f := range flights {
		if errs[i] != nil {
			failed[paths[i]] = errs[i]
			continue
		}
		out = append(out, f)
	}
	return out, failed
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, filepath.Clean(path))
	c.mu.Unlock()
}

// Len reports the number of cached flights.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
