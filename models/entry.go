package models

import "time"

// EntryStatus tracks the lifecycle of a cache entry.
type EntryStatus string

const (
	StatusReady   EntryStatus = "ready"
	StatusPending EntryStatus = "pending"
	StatusError   EntryStatus = "error"
)

// CacheEntry is one stored artifact plus its bookkeeping metadata.
// The artifact is immutable once the entry is Ready; a changed source
// produces a new entry under a fresh fingerprint, never an in-place update.
type CacheEntry struct {
	Key            CacheKey
	Artifact       []byte
	Tier           Tier
	Status         EntryStatus
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64
	SizeBytes      int64
}

// NewEntry creates a Ready entry for a freshly computed artifact.
func NewEntry(key CacheKey, artifact []byte, tier Tier) *CacheEntry {
	now := time.Now().UTC()
	return &CacheEntry{
		Key:            key,
		Artifact:       artifact,
		Tier:           tier,
		Status:         StatusReady,
		CreatedAt:      now,
		LastAccessedAt: now,
		SizeBytes:      int64(len(artifact)),
	}
}

// Touch records an access for LRU ordering and hit statistics.
func (e *CacheEntry) Touch(now time.Time) {
	e.LastAccessedAt = now
	e.AccessCount++
}

// ExpiredAt reports whether the entry is older than maxAge at now.
// A zero maxAge means the entry never expires.
func (e *CacheEntry) ExpiredAt(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > maxAge
}

// Clone returns a snapshot copy safe to hand to readers while the
// original remains subject to eviction.
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	if e.Artifact != nil {
		c.Artifact = append([]byte(nil), e.Artifact...)
	}
	return &c
}
