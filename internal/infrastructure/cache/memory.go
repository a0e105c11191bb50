package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jumboapi/backend/internal/domain"
)

// MemoryCache is a thread-safe in-memory match cache. Entries never expire;
// Clear is the only way to drop them. When a file path is given the cache is
// mirrored to disk so matches survive a restart.
type MemoryCache struct {
	data  map[string]domain.CacheEntry
	mutex sync.RWMutex
	path  string
}

// NewMemoryCache creates a match cache. path may be empty for a purely
// in-memory cache; otherwise previously saved entries are loaded from it.
func NewMemoryCache(path string) *MemoryCache {
	cache := &MemoryCache{
		data: make(map[string]domain.CacheEntry),
		path: path,
	}
	cache.load()
	return cache
}

// Get retrieves a stored match.
func (c *MemoryCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.data[key]
	if !exists {
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}

// Put stores a resolved match.
func (c *MemoryCache) Put(ctx context.Context, key string, entry *domain.CacheEntry) error {
	c.mutex.Lock()
	c.data[key] = *entry
	c.mutex.Unlock()
	return c.save()
}

// Clear drops every stored match.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	c.data = make(map[string]domain.CacheEntry)
	c.mutex.Unlock()
	return c.save()
}

// Size returns the current number of stored matches (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

func (c *MemoryCache) load() {
	if c.path == "" {
		return
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var saved map[string]domain.CacheEntry
	if err := json.Unmarshal(raw, &saved); err != nil {
		return
	}
	c.data = saved
}

func (c *MemoryCache) save() error {
	if c.path == "" {
		return nil
	}
	c.mutex.RLock()
	raw, err := json.MarshalIndent(c.data, "", "  ")
	c.mutex.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, raw, 0o644)
}
