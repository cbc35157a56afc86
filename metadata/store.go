package metadata

import (
	"context"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Store defines the interface for the structured metadata index kept
// alongside artifact blobs: one record per cache entry (timestamps,
// size, fingerprint, status) queryable without deserializing blobs,
// plus the administrator-maintained substitution table.
// Implementations use SQLite or other relational databases.
type Store interface {
	// PutEntry inserts or replaces the metadata record for an entry.
	PutEntry(ctx context.Context, entry *models.CacheEntry) error

	// GetEntry retrieves the metadata record for a key.
	// Returns nil if the key is unknown.
	GetEntry(ctx context.Context, key models.CacheKey) (*models.CacheEntry, error)

	// TouchEntry records an access for LRU ordering and hit statistics.
	TouchEntry(ctx context.Context, key models.CacheKey) error

	// MarkStatus updates an entry's status, e.g. flagging stale metadata.
	MarkStatus(ctx context.Context, key models.CacheKey, status models.EntryStatus) error

	// DeleteEntry removes the metadata record for a key.
	DeleteEntry(ctx context.Context, key models.CacheKey) error

	// ListEntries returns one page of metadata records matching the
	// filter, ordered by encoded key for deterministic iteration.
	ListEntries(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.CacheEntry], error)

	// ListGrouped aggregates entries by (document, language) in a single
	// pass: page count, min/max page index, total size, most recent access.
	ListGrouped(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.AggregateView], error)

	// DeleteGroup removes every metadata record in a (document, language)
	// group atomically and returns the removed keys.
	DeleteGroup(ctx context.Context, document, language string) ([]models.CacheKey, error)

	// DeleteDocument removes every metadata record for a document across
	// all languages atomically and returns the removed keys.
	DeleteDocument(ctx context.Context, document string) ([]models.CacheKey, error)

	// DeleteAllEntries removes every metadata record and returns the
	// removed keys, for persistent tier clears.
	DeleteAllEntries(ctx context.Context) ([]models.CacheKey, error)

	// ListDocuments returns the distinct document ids present in the index.
	ListDocuments(ctx context.Context) ([]string, error)

	// OldestKeys returns up to limit Ready keys ordered by least recent
	// access, for quota eviction passes.
	OldestKeys(ctx context.Context, limit int) ([]models.CacheKey, error)

	// StaleKeys returns keys whose records are flagged as stale, for bulk
	// cleanup by the admin surface.
	StaleKeys(ctx context.Context) ([]models.CacheKey, error)

	// PutSubstitution inserts or replaces a text substitution.
	PutSubstitution(ctx context.Context, sub models.SubstitutionMapping) error

	// GetSubstitution retrieves a substitution by original text.
	// Returns nil if none exists.
	GetSubstitution(ctx context.Context, original string) (*models.SubstitutionMapping, error)

	// DeleteSubstitution removes a substitution by original text.
	// Returns models.ErrNotFound when no such substitution exists.
	DeleteSubstitution(ctx context.Context, original string) error

	// ListSubstitutions returns all substitutions ordered by original text.
	ListSubstitutions(ctx context.Context) ([]models.SubstitutionMapping, error)

	// Stats summarizes the index: entry count, total bytes, access totals,
	// stale count.
	Stats(ctx context.Context) (models.Stats, error)

	// Close releases any resources.
	Close() error
}
