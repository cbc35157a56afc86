package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kawayiYokami/HentaiReader-sub000/blobstore"
	"github.com/kawayiYokami/HentaiReader-sub000/metadata"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Store is the persistent tier adapter: artifact blobs in a blobstore,
// one structured metadata record per key in the metadata index. It is
// the durable source of truth; faster tiers are disposable accelerators.
// All writes funnel through here.
type Store struct {
	blobs blobstore.Store
	meta  metadata.Store
	log   *slog.Logger
}

// New creates a persistent store over the given blob and metadata stores.
func New(blobs blobstore.Store, meta metadata.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{blobs: blobs, meta: meta, log: logger}
}

// Put stores an artifact and its metadata record. A quota failure
// triggers one eviction pass over the oldest half of entries and a
// single retry; a second failure surfaces models.ErrQuotaExceeded.
func (s *Store) Put(ctx context.Context, entry *models.CacheEntry) error {
	key := entry.Key.Encode()

	err := s.blobs.Put(ctx, key, entry.Artifact)
	if errors.Is(err, models.ErrQuotaExceeded) {
		evicted, evictErr := s.EvictOldest(ctx, 0.5)
		if evictErr != nil {
			return fmt.Errorf("quota eviction pass failed: %w", evictErr)
		}
		s.log.Warn("persistent store at capacity, evicted oldest entries",
			"evicted", evicted, "key", key)

		err = s.blobs.Put(ctx, key, entry.Artifact)
	}
	if err != nil {
		return fmt.Errorf("failed to store artifact %s: %w", key, err)
	}

	stored := entry.Clone()
	stored.Tier = models.TierPersistent
	if err := s.meta.PutEntry(ctx, stored); err != nil {
		// Roll the blob back; an unindexed artifact is invisible to every
		// cleanup path.
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.log.Error("failed to remove unindexed artifact", "key", key, "error", delErr)
		}
		return fmt.Errorf("failed to index artifact %s: %w", key, err)
	}
	return nil
}

// Get retrieves an entry with its artifact.
// Returns nil if the key is unknown. A metadata record whose blob is
// missing is flagged StatusError and reported as models.ErrStaleMetadata
// rather than crashing the read path.
func (s *Store) Get(ctx context.Context, key models.CacheKey) (*models.CacheEntry, error) {
	entry, err := s.meta.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	artifact, err := s.blobs.Get(ctx, key.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", key.Encode(), err)
	}
	if artifact == nil {
		if markErr := s.meta.MarkStatus(ctx, key, models.StatusError); markErr != nil {
			s.log.Error("failed to flag stale metadata", "key", key.Encode(), "error", markErr)
		}
		return nil, fmt.Errorf("%w: artifact missing for %s", models.ErrStaleMetadata, key.Encode())
	}

	if err := s.meta.TouchEntry(ctx, key); err != nil {
		s.log.Debug("failed to record access", "key", key.Encode(), "error", err)
	}

	entry.Artifact = artifact
	return entry, nil
}

// Delete removes an entry's artifact and metadata record.
func (s *Store) Delete(ctx context.Context, key models.CacheKey) error {
	if err := s.blobs.Delete(ctx, key.Encode()); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", key.Encode(), err)
	}
	return s.meta.DeleteEntry(ctx, key)
}

// List returns one page of metadata records matching the filter, without
// artifacts.
func (s *Store) List(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.CacheEntry], error) {
	return s.meta.ListEntries(ctx, filter, pageIndex, pageSize)
}

// EvictOldest removes the given fraction of entries, least recently
// accessed first. Only called for quota pressure or by administrators;
// routine TTL/capacity eviction never touches the persistent tier.
func (s *Store) EvictOldest(ctx context.Context, fraction float64) (int, error) {
	stats, err := s.meta.Stats(ctx)
	if err != nil {
		return 0, err
	}

	limit := int(float64(stats.Entries) * fraction)
	if limit <= 0 {
		return 0, nil
	}

	keys, err := s.meta.OldestKeys(ctx, limit)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			s.log.Error("failed to evict entry", "key", key.Encode(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StaleKeys returns keys flagged as stale metadata, for bulk cleanup.
func (s *Store) StaleKeys(ctx context.Context) ([]models.CacheKey, error) {
	return s.meta.StaleKeys(ctx)
}

// Metadata exposes the underlying index for the admin surface.
func (s *Store) Metadata() metadata.Store {
	return s.meta
}

// Blobs exposes the underlying blob store for the admin surface.
func (s *Store) Blobs() blobstore.Store {
	return s.blobs
}

// Close releases both underlying stores.
func (s *Store) Close() error {
	blobErr := s.blobs.Close()
	metaErr := s.meta.Close()
	if blobErr != nil {
		return blobErr
	}
	return metaErr
}
