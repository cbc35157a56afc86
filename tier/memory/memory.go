package memory

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Cache is the process-local memory tier: an LRU over decoded artifacts.
// Capacity pressure is absorbed by the LRU itself; TTL expiration is
// applied externally by the eviction manager.
type Cache struct {
	lru *lru.Cache[string, *models.CacheEntry]
	mu  sync.RWMutex
}

// New creates a new in-memory LRU tier with the specified size
func New(size int) (*Cache, error) {
	l, err := lru.New[string, *models.CacheEntry](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		lru: l,
	}, nil
}

// Kind identifies the layer
func (c *Cache) Kind() models.Tier {
	return models.TierMemory
}

// Get retrieves a snapshot copy of the entry for a key
func (c *Cache) Get(key models.CacheKey) (*models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key.Location())
	if !ok {
		return nil, false
	}

	entry.Touch(time.Now().UTC())
	return entry.Clone(), true
}

// Put stores an entry; the LRU discards its least recent entry when full
func (c *Cache) Put(entry *models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := entry.Clone()
	stored.Tier = models.TierMemory
	c.lru.Add(entry.Key.Location(), stored)
	return nil
}

// Delete removes the entry for a key
func (c *Cache) Delete(key models.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key.Location())
}

// Entries returns a point-in-time snapshot without artifacts.
// Peek keeps recency order undisturbed during eviction scans.
func (c *Cache) Entries() []*models.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := c.lru.Keys()
	snapshot := make([]*models.CacheEntry, 0, len(keys))
	for _, k := range keys {
		entry, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		meta := *entry
		meta.Artifact = nil
		snapshot = append(snapshot, &meta)
	}
	return snapshot
}

// Len returns the current entry count
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lru.Len()
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}
