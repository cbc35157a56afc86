package tier

import "github.com/kawayiYokami/HentaiReader-sub000/models"

// Tier is one in-memory storage layer probed by the resolver. Fast tiers
// are pure accelerators: any component may clear one without correctness
// impact, the persistent store stays the source of truth.
// Implementations must be safe for concurrent use.
type Tier interface {
	// Kind identifies the layer for diagnostics and promotion decisions.
	Kind() models.Tier

	// Get retrieves a snapshot copy of the entry stored at the key's
	// page location and records the access. The entry may carry a
	// different fingerprint than the lookup key; the caller decides
	// whether the copy is still valid. Readers hold the copy, so
	// eviction can never pull an entry out from under an in-flight
	// resolve.
	Get(key models.CacheKey) (*models.CacheEntry, bool)

	// Put stores an entry. Bounded tiers return models.ErrQuotaExceeded
	// when full; callers treat promotion failures as non-fatal.
	Put(entry *models.CacheEntry) error

	// Delete removes the entry for a key, if present.
	Delete(key models.CacheKey)

	// Entries returns a point-in-time snapshot of all entries without
	// their artifacts, for eviction scans.
	Entries() []*models.CacheEntry

	// Len returns the current entry count.
	Len() int

	// Clear removes all entries.
	Clear()
}
