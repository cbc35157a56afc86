package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
	"github.com/kawayiYokami/HentaiReader-sub000/store"
	"github.com/kawayiYokami/HentaiReader-sub000/tier"
)

// DocumentChecker reports whether a source document still exists, e.g.
// a file-system check in the reader application.
type DocumentChecker interface {
	Exists(ctx context.Context, document string) (bool, error)
}

// Config holds configuration for the Service
type Config struct {
	Store     *store.Store
	Tiers     []tier.Tier
	Documents DocumentChecker // optional; CleanupOrphaned fails without it
	Logger    *slog.Logger
}

// Service is the administration surface: grouped/paginated listings over
// the persistent index, substitution CRUD, and bulk deletion. Mutations
// delete metadata atomically first, so a concurrent resolver read sees
// either the pre- or post-mutation state, never a half-deleted group.
type Service struct {
	cfg Config
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{cfg: cfg}, nil
}

// ListGrouped returns one page of aggregate views grouped by
// (document, language), computed in a single pass over the index.
func (s *Service) ListGrouped(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.AggregateView], error) {
	return s.cfg.Store.Metadata().ListGrouped(ctx, filter, pageIndex, pageSize)
}

// ListEntries returns one page of raw metadata records.
func (s *Service) ListEntries(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.CacheEntry], error) {
	return s.cfg.Store.List(ctx, filter, pageIndex, pageSize)
}

// EditSubstitution creates or updates a text substitution. In-flight
// computations keep the snapshot taken at their request start; the next
// fresh request sees the edit.
func (s *Service) EditSubstitution(ctx context.Context, original, replacement string) error {
	if original == "" {
		return fmt.Errorf("original text is required")
	}
	return s.cfg.Store.Metadata().PutSubstitution(ctx, models.SubstitutionMapping{
		Original:    original,
		Replacement: replacement,
	})
}

// DeleteSubstitution removes a substitution by original text.
func (s *Service) DeleteSubstitution(ctx context.Context, original string) error {
	return s.cfg.Store.Metadata().DeleteSubstitution(ctx, original)
}

// ListSubstitutions returns all substitutions.
func (s *Service) ListSubstitutions(ctx context.Context) ([]models.SubstitutionMapping, error) {
	return s.cfg.Store.Metadata().ListSubstitutions(ctx)
}

// DeleteGroup removes every entry sharing (document, language): the
// metadata rows in one transaction, then blobs and fast-tier copies.
func (s *Service) DeleteGroup(ctx context.Context, document, language string) (int, error) {
	keys, err := s.cfg.Store.Metadata().DeleteGroup(ctx, document, language)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group metadata: %w", err)
	}

	s.dropArtifacts(ctx, keys)
	s.cfg.Logger.Info("deleted group",
		"document", document, "language", language, "entries", len(keys))
	return len(keys), nil
}

// ClearTier empties a single tier. Clearing a fast tier costs only
// performance; clearing the persistent tier deletes every stored entry.
func (s *Service) ClearTier(ctx context.Context, which models.Tier) error {
	if which == models.TierPersistent {
		keys, err := s.cfg.Store.Metadata().DeleteAllEntries(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear persistent index: %w", err)
		}
		s.dropArtifacts(ctx, keys)
		s.cfg.Logger.Info("cleared persistent tier", "entries", len(keys))
		return nil
	}

	for _, t := range s.cfg.Tiers {
		if t.Kind() == which {
			t.Clear()
			return nil
		}
	}
	return fmt.Errorf("no such tier: %s", which)
}

// CleanupOrphaned removes persistent entries whose source document no
// longer exists. Returns the number of entries removed.
func (s *Service) CleanupOrphaned(ctx context.Context) (int, error) {
	if s.cfg.Documents == nil {
		return 0, fmt.Errorf("no document checker configured")
	}

	docs, err := s.cfg.Store.Metadata().ListDocuments(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		exists, err := s.cfg.Documents.Exists(ctx, doc)
		if err != nil {
			s.cfg.Logger.Error("failed to check document", "document", doc, "error", err)
			continue
		}
		if exists {
			continue
		}

		keys, err := s.cfg.Store.Metadata().DeleteDocument(ctx, doc)
		if err != nil {
			return removed, err
		}
		s.dropArtifacts(ctx, keys)
		removed += len(keys)
		s.cfg.Logger.Info("removed orphaned document", "document", doc, "entries", len(keys))
	}
	return removed, nil
}

// CleanupStale removes entries whose metadata outlived their backing
// artifact. Returns the number of rows removed.
func (s *Service) CleanupStale(ctx context.Context) (int, error) {
	keys, err := s.cfg.Store.StaleKeys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if err := s.cfg.Store.Delete(ctx, key); err != nil {
			s.cfg.Logger.Error("failed to remove stale entry", "key", key.Encode(), "error", err)
			continue
		}
		s.dropFromTiers(key)
		removed++
	}
	return removed, nil
}

// Stats summarizes the cache: persistent index totals, per-tier entry
// counts, and a hit-rate approximation from persisted access counters.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := s.cfg.Store.Metadata().Stats(ctx)
	if err != nil {
		return stats, err
	}

	stats.TierEntries = make(map[string]int, len(s.cfg.Tiers))
	for _, t := range s.cfg.Tiers {
		stats.TierEntries[t.Kind().String()] = t.Len()
	}

	// Every access beyond an entry's first read was a cache hit.
	if stats.TotalAccess > 0 {
		stats.HitRate = float64(stats.TotalAccess) / float64(stats.TotalAccess+int64(stats.Entries))
	}
	return stats, nil
}

func (s *Service) dropArtifacts(ctx context.Context, keys []models.CacheKey) {
	for _, key := range keys {
		if err := s.cfg.Store.Blobs().Delete(ctx, key.Encode()); err != nil {
			s.cfg.Logger.Error("failed to delete artifact", "key", key.Encode(), "error", err)
		}
		s.dropFromTiers(key)
	}
}

func (s *Service) dropFromTiers(key models.CacheKey) {
	for _, t := range s.cfg.Tiers {
		t.Delete(key)
	}
}
