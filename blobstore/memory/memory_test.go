package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

func TestPutGetRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	artifact := []byte{0x89, 0x50, 0x4e, 0x47, 1, 2, 3}
	if err := store.Put(ctx, "key1", artifact); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, artifact) {
		t.Errorf("Round trip not byte-identical: %v != %v", got, artifact)
	}
}

func TestGetMissing(t *testing.T) {
	store := New()

	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing key, got %v", got)
	}
}

func TestDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.Put(ctx, "key1", []byte{1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := store.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("Entry still present after Delete")
	}
}

func TestBoundedQuota(t *testing.T) {
	store := NewBounded(10)
	ctx := context.Background()

	if err := store.Put(ctx, "a", make([]byte, 6)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	err := store.Put(ctx, "b", make([]byte, 6))
	if !errors.Is(err, models.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// Freed space accepts the write again.
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Put(ctx, "b", make([]byte, 6)); err != nil {
		t.Fatalf("Put after delete failed: %v", err)
	}
}
