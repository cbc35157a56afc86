package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	blobmemory "github.com/kawayiYokami/HentaiReader-sub000/blobstore/memory"
	"github.com/kawayiYokami/HentaiReader-sub000/metadata/sqlite"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMeta(t *testing.T) *sqlite.Store {
	t.Helper()

	meta, err := sqlite.New(&sqlite.Config{DBPath: filepath.Join(t.TempDir(), "metadata.db")})
	if err != nil {
		t.Fatalf("Failed to create metadata store: %v", err)
	}
	return meta
}

func key(page int) models.CacheKey {
	return models.CacheKey{Document: "vol1", Page: page, Language: "zh", Fingerprint: "1e20aa"}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := New(blobmemory.New(), newMeta(t), quietLogger())
	defer store.Close()
	ctx := context.Background()

	artifact := []byte{0x89, 0x50, 0x4e, 0x47, 9, 8, 7}
	if err := store.Put(ctx, models.NewEntry(key(1), artifact, models.TierPersistent)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, key(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if !bytes.Equal(got.Artifact, artifact) {
		t.Errorf("Round trip not byte-identical: %v != %v", got.Artifact, artifact)
	}
	if got.Tier != models.TierPersistent {
		t.Errorf("Expected persistent tier, got %s", got.Tier)
	}
}

func TestGetUnknownKey(t *testing.T) {
	store := New(blobmemory.New(), newMeta(t), quietLogger())
	defer store.Close()

	got, err := store.Get(context.Background(), key(99))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for unknown key, got %+v", got)
	}
}

func TestStaleMetadataSurfaced(t *testing.T) {
	store := New(blobmemory.New(), newMeta(t), quietLogger())
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, models.NewEntry(key(1), []byte{1}, models.TierPersistent)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Simulate external deletion of the backing artifact.
	if err := store.Blobs().Delete(ctx, key(1).Encode()); err != nil {
		t.Fatalf("Blob delete failed: %v", err)
	}

	_, err := store.Get(ctx, key(1))
	if !errors.Is(err, models.ErrStaleMetadata) {
		t.Fatalf("Expected ErrStaleMetadata, got %v", err)
	}

	// The condition is flagged for bulk cleanup.
	stale, err := store.StaleKeys(ctx)
	if err != nil {
		t.Fatalf("StaleKeys failed: %v", err)
	}
	if len(stale) != 1 || stale[0] != key(1) {
		t.Errorf("Expected flagged key, got %v", stale)
	}
}

func TestQuotaEvictionAndRetry(t *testing.T) {
	// Four 25-byte artifacts fill the 100-byte budget exactly.
	store := New(blobmemory.NewBounded(100), newMeta(t), quietLogger())
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		entry := models.NewEntry(key(i), make([]byte, 25), models.TierPersistent)
		entry.LastAccessedAt = time.Now().Add(-time.Duration(4-i) * time.Hour)
		if err := store.Put(ctx, entry); err != nil {
			t.Fatalf("Put %d failed: %v", i, err)
		}
	}

	// Over budget: one eviction pass drops the oldest half, then the
	// retried write succeeds.
	if err := store.Put(ctx, models.NewEntry(key(9), make([]byte, 25), models.TierPersistent)); err != nil {
		t.Fatalf("Put after eviction failed: %v", err)
	}

	if got, err := store.Get(ctx, key(9)); err != nil || got == nil {
		t.Fatalf("New entry missing after quota recovery: %v %v", got, err)
	}
	if got, err := store.Get(ctx, key(0)); err == nil && got != nil {
		t.Error("Oldest entry survived the quota eviction pass")
	}
	if got, err := store.Get(ctx, key(3)); err != nil || got == nil {
		t.Errorf("Recently accessed entry was evicted: %v %v", got, err)
	}
}

func TestQuotaSurfacedWhenRetryFails(t *testing.T) {
	store := New(blobmemory.NewBounded(10), newMeta(t), quietLogger())
	defer store.Close()

	err := store.Put(context.Background(), models.NewEntry(key(1), make([]byte, 100), models.TierPersistent))
	if !errors.Is(err, models.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}
}

type failingMeta struct {
	*sqlite.Store
}

func (f failingMeta) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	return errors.New("index offline")
}

func TestFailedIndexRollsBackBlob(t *testing.T) {
	blobs := blobmemory.New()
	store := New(blobs, failingMeta{newMeta(t)}, quietLogger())
	defer store.Close()
	ctx := context.Background()

	err := store.Put(ctx, models.NewEntry(key(1), []byte{1, 2}, models.TierPersistent))
	if err == nil {
		t.Fatal("Expected indexing failure to surface")
	}

	orphan, err := blobs.Get(ctx, key(1).Encode())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if orphan != nil {
		t.Error("Unindexed artifact left behind")
	}
}

func TestEvictOldestFraction(t *testing.T) {
	store := New(blobmemory.New(), newMeta(t), quietLogger())
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		entry := models.NewEntry(key(i), []byte{byte(i)}, models.TierPersistent)
		entry.LastAccessedAt = time.Now().Add(-time.Duration(10-i) * time.Minute)
		if err := store.Put(ctx, entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	removed, err := store.EvictOldest(ctx, 0.5)
	if err != nil {
		t.Fatalf("EvictOldest failed: %v", err)
	}
	if removed != 5 {
		t.Errorf("Expected 5 removed, got %d", removed)
	}

	page, err := store.List(ctx, models.Filter{}, 0, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 5 {
		t.Errorf("Expected 5 remaining, got %d", page.Total)
	}
}
