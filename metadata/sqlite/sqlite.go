package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Store is a SQLite-backed implementation of metadata.Store
type Store struct {
	db *sql.DB
}

// Config holds configuration for SQLite
type Config struct {
	DBPath string // Path to SQLite database file
}

// New creates a new SQLite-backed metadata store
func New(config *Config) (*Store, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("DBPath is required")
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key              TEXT PRIMARY KEY,
		document         TEXT NOT NULL,
		page             INTEGER NOT NULL,
		language         TEXT NOT NULL,
		fingerprint      TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'ready',
		size_bytes       INTEGER NOT NULL,
		created_at       INTEGER NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		access_count     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_entries_group ON entries(document, language);
	CREATE INDEX IF NOT EXISTS idx_entries_last_accessed ON entries(last_accessed_at);
	CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(status);

	CREATE TABLE IF NOT EXISTS substitutions (
		original    TEXT PRIMARY KEY,
		replacement TEXT NOT NULL,
		updated_at  INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// PutEntry inserts or replaces the metadata record for an entry
func (s *Store) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries
		 (key, document, page, language, fingerprint, status, size_bytes, created_at, last_accessed_at, access_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Key.Encode(), entry.Key.Document, entry.Key.Page, entry.Key.Language, entry.Key.Fingerprint,
		string(entry.Status), entry.SizeBytes, entry.CreatedAt.Unix(), entry.LastAccessedAt.Unix(), entry.AccessCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry retrieves the metadata record for a key
func (s *Store) GetEntry(ctx context.Context, key models.CacheKey) (*models.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document, page, language, fingerprint, status, size_bytes, created_at, last_accessed_at, access_count
		 FROM entries WHERE key = ?`,
		key.Encode(),
	)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	return entry, nil
}

// TouchEntry records an access for LRU ordering and hit statistics
func (s *Store) TouchEntry(ctx context.Context, key models.CacheKey) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET last_accessed_at = ?, access_count = access_count + 1 WHERE key = ?`,
		time.Now().Unix(), key.Encode(),
	)
	if err != nil {
		return fmt.Errorf("failed to touch entry: %w", err)
	}
	return nil
}

// MarkStatus updates an entry's status
func (s *Store) MarkStatus(ctx context.Context, key models.CacheKey, status models.EntryStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE entries SET status = ? WHERE key = ?`,
		string(status), key.Encode(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark entry status: %w", err)
	}
	return nil
}

// DeleteEntry removes the metadata record for a key
func (s *Store) DeleteEntry(ctx context.Context, key models.CacheKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key.Encode())
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// filterClause builds the WHERE clause for a listing filter
func filterClause(filter models.Filter) (string, []any) {
	var conds []string
	var args []any

	if filter.Document != "" {
		conds = append(conds, "document = ?")
		args = append(args, filter.Document)
	}
	if filter.Language != "" {
		conds = append(conds, "language = ?")
		args = append(args, filter.Language)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		conds = append(conds, `document LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

// ListEntries returns one page of metadata records matching the filter
func (s *Store) ListEntries(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.CacheEntry], error) {
	page := models.Page[models.CacheEntry]{PageIndex: pageIndex, PageSize: pageSize}
	where, args := filterClause(filter)

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`+where, args...).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("failed to count entries: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document, page, language, fingerprint, status, size_bytes, created_at, last_accessed_at, access_count
		 FROM entries`+where+` ORDER BY key LIMIT ? OFFSET ?`,
		append(args, pageSize, pageIndex*pageSize)...,
	)
	if err != nil {
		return page, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return page, fmt.Errorf("failed to scan entry: %w", err)
		}
		page.Items = append(page.Items, *entry)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("error iterating entries: %w", err)
	}

	return page, nil
}

// ListGrouped aggregates entries by (document, language) in a single pass
func (s *Store) ListGrouped(ctx context.Context, filter models.Filter, pageIndex, pageSize int) (models.Page[models.AggregateView], error) {
	page := models.Page[models.AggregateView]{PageIndex: pageIndex, PageSize: pageSize}
	where, args := filterClause(filter)

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM (SELECT 1 FROM entries`+where+` GROUP BY document, language)`,
		args...,
	).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("failed to count groups: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document, language, COUNT(*), MIN(page), MAX(page), SUM(size_bytes), MAX(last_accessed_at)
		 FROM entries`+where+`
		 GROUP BY document, language
		 ORDER BY document, language
		 LIMIT ? OFFSET ?`,
		append(args, pageSize, pageIndex*pageSize)...,
	)
	if err != nil {
		return page, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var view models.AggregateView
		var lastAccess int64

		err := rows.Scan(&view.Document, &view.Language, &view.PageCount,
			&view.FirstPage, &view.LastPage, &view.SizeBytes, &lastAccess)
		if err != nil {
			return page, fmt.Errorf("failed to scan group: %w", err)
		}

		view.LastAccessedAt = time.Unix(lastAccess, 0).UTC()
		page.Items = append(page.Items, view)
	}
	if err := rows.Err(); err != nil {
		return page, fmt.Errorf("error iterating groups: %w", err)
	}

	return page, nil
}

// DeleteGroup removes every metadata record in a (document, language)
// group atomically and returns the removed keys
func (s *Store) DeleteGroup(ctx context.Context, document, language string) ([]models.CacheKey, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT key FROM entries WHERE document = ? AND language = ? ORDER BY key`,
		document, language)
	if err != nil {
		return nil, fmt.Errorf("failed to query group keys: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM entries WHERE document = ? AND language = ?`,
		document, language)
	if err != nil {
		return nil, fmt.Errorf("failed to delete group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return keys, nil
}

// DeleteDocument removes every metadata record for a document across all
// languages atomically and returns the removed keys
func (s *Store) DeleteDocument(ctx context.Context, document string) ([]models.CacheKey, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT key FROM entries WHERE document = ? ORDER BY key`, document)
	if err != nil {
		return nil, fmt.Errorf("failed to query document keys: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE document = ?`, document); err != nil {
		return nil, fmt.Errorf("failed to delete document entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return keys, nil
}

// DeleteAllEntries removes every metadata record and returns the removed keys
func (s *Store) DeleteAllEntries(ctx context.Context) ([]models.CacheKey, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT key FROM entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	keys, err := collectKeys(rows)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return nil, fmt.Errorf("failed to delete entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return keys, nil
}

// ListDocuments returns the distinct document ids present in the index
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT document FROM entries ORDER BY document`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// OldestKeys returns up to limit Ready keys ordered by least recent access
func (s *Store) OldestKeys(ctx context.Context, limit int) ([]models.CacheKey, error) {
	return s.queryKeys(ctx,
		`SELECT key FROM entries WHERE status = ? ORDER BY last_accessed_at, key LIMIT ?`,
		string(models.StatusReady), limit)
}

// StaleKeys returns keys whose records are flagged as stale
func (s *Store) StaleKeys(ctx context.Context) ([]models.CacheKey, error) {
	return s.queryKeys(ctx,
		`SELECT key FROM entries WHERE status = ? ORDER BY key`,
		string(models.StatusError))
}

// PutSubstitution inserts or replaces a text substitution
func (s *Store) PutSubstitution(ctx context.Context, sub models.SubstitutionMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO substitutions (original, replacement, updated_at) VALUES (?, ?, ?)`,
		sub.Original, sub.Replacement, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert substitution: %w", err)
	}
	return nil
}

// GetSubstitution retrieves a substitution by original text
func (s *Store) GetSubstitution(ctx context.Context, original string) (*models.SubstitutionMapping, error) {
	var sub models.SubstitutionMapping
	var updatedAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT original, replacement, updated_at FROM substitutions WHERE original = ?`,
		original,
	).Scan(&sub.Original, &sub.Replacement, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query substitution: %w", err)
	}

	sub.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &sub, nil
}

// DeleteSubstitution removes a substitution by original text. Returns
// models.ErrNotFound when no such substitution exists.
func (s *Store) DeleteSubstitution(ctx context.Context, original string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM substitutions WHERE original = ?`, original)
	if err != nil {
		return fmt.Errorf("failed to delete substitution: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: substitution %q", models.ErrNotFound, original)
	}
	return nil
}

// ListSubstitutions returns all substitutions ordered by original text
func (s *Store) ListSubstitutions(ctx context.Context) ([]models.SubstitutionMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT original, replacement, updated_at FROM substitutions ORDER BY original`)
	if err != nil {
		return nil, fmt.Errorf("failed to query substitutions: %w", err)
	}
	defer rows.Close()

	var subs []models.SubstitutionMapping
	for rows.Next() {
		var sub models.SubstitutionMapping
		var updatedAt int64

		if err := rows.Scan(&sub.Original, &sub.Replacement, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan substitution: %w", err)
		}

		sub.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating substitutions: %w", err)
	}

	return subs, nil
}

// Stats summarizes the index
func (s *Store) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	var totalBytes, totalAccess sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(size_bytes), SUM(access_count) FROM entries`,
	).Scan(&stats.Entries, &totalBytes, &totalAccess)
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}

	stats.TotalBytes = totalBytes.Int64
	stats.TotalAccess = totalAccess.Int64

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE status = ?`,
		string(models.StatusError),
	).Scan(&stats.StaleEntries)
	if err != nil {
		return stats, fmt.Errorf("failed to query stale count: %w", err)
	}

	return stats, nil
}

// Close releases all database resources
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// queryKeys runs a single-column key query and decodes the results
func (s *Store) queryKeys(ctx context.Context, query string, args ...any) ([]models.CacheKey, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	return collectKeys(rows)
}

func collectKeys(rows *sql.Rows) ([]models.CacheKey, error) {
	defer rows.Close()

	var keys []models.CacheKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		key, err := models.DecodeKey(raw)
		if err != nil {
			// An unparseable row must not poison the whole listing; it is
			// unreachable by key-addressed cleanup anyway. Group and
			// document deletes remove such rows through their SQL
			// predicates.
			continue
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}

	return keys, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	var status string
	var createdAt, lastAccessedAt int64

	err := row.Scan(&entry.Key.Document, &entry.Key.Page, &entry.Key.Language, &entry.Key.Fingerprint,
		&status, &entry.SizeBytes, &createdAt, &lastAccessedAt, &entry.AccessCount)
	if err != nil {
		return nil, err
	}

	entry.Tier = models.TierPersistent
	entry.Status = models.EntryStatus(status)
	entry.CreatedAt = time.Unix(createdAt, 0).UTC()
	entry.LastAccessedAt = time.Unix(lastAccessedAt, 0).UTC()
	return &entry, nil
}
