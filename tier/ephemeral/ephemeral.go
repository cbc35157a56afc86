package ephemeral

import (
	"fmt"
	"sync"
	"time"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Cache is the near-cache: a small bounded map holding the pages around
// the reader's current position. It enforces an explicit capacity budget
// with a typed error instead of disabling itself when full.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*models.CacheEntry
	maxEntries int
}

// New creates an ephemeral cache holding at most maxEntries entries.
func New(maxEntries int) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be positive, got %d", maxEntries)
	}
	return &Cache{
		entries:    make(map[string]*models.CacheEntry),
		maxEntries: maxEntries,
	}, nil
}

// Kind identifies the layer
func (c *Cache) Kind() models.Tier {
	return models.TierEphemeral
}

// Get retrieves a snapshot copy of the entry for a key
func (c *Cache) Get(key models.CacheKey) (*models.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key.Location()]
	if !ok {
		return nil, false
	}

	entry.Touch(time.Now().UTC())
	return entry.Clone(), true
}

// Put stores an entry, rejecting writes beyond the capacity budget
func (c *Cache) Put(entry *models.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := entry.Key.Location()
	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.maxEntries {
		return fmt.Errorf("%w: ephemeral tier at capacity (%d entries)", models.ErrQuotaExceeded, c.maxEntries)
	}

	stored := entry.Clone()
	stored.Tier = models.TierEphemeral
	c.entries[k] = stored
	return nil
}

// Delete removes the entry for a key
func (c *Cache) Delete(key models.CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key.Location())
}

// Entries returns a point-in-time snapshot without artifacts
func (c *Cache) Entries() []*models.CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make([]*models.CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
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

	return len(c.entries)
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*models.CacheEntry)
}
