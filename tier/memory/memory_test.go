package memory

import (
	"testing"

	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

func key(page int) models.CacheKey {
	return models.CacheKey{Document: "doc", Page: page, Language: "zh", Fingerprint: "fp"}
}

func TestPutGet(t *testing.T) {
	cache, err := New(8)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	entry := models.NewEntry(key(1), []byte{1, 2}, models.TierMemory)
	if err := cache.Put(entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok := cache.Get(key(1))
	if !ok {
		t.Fatal("Get missed a stored entry")
	}
	if got.Tier != models.TierMemory {
		t.Errorf("Expected memory tier, got %s", got.Tier)
	}
}

func TestLRUDiscard(t *testing.T) {
	cache, _ := New(2)

	for i := 0; i < 3; i++ {
		cache.Put(models.NewEntry(key(i), []byte{byte(i)}, models.TierMemory))
	}

	if _, ok := cache.Get(key(0)); ok {
		t.Error("Oldest entry survived past LRU capacity")
	}
	if _, ok := cache.Get(key(2)); !ok {
		t.Error("Newest entry was discarded")
	}
	if cache.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", cache.Len())
	}
}

func TestEntriesDoesNotDisturbRecency(t *testing.T) {
	cache, _ := New(2)
	cache.Put(models.NewEntry(key(0), nil, models.TierMemory))
	cache.Put(models.NewEntry(key(1), nil, models.TierMemory))

	cache.Entries() // snapshot scan must not refresh key(0)

	cache.Put(models.NewEntry(key(2), nil, models.TierMemory))
	if _, ok := cache.Get(key(0)); ok {
		t.Error("Snapshot scan refreshed recency of the oldest entry")
	}
}

func TestDeleteAndClear(t *testing.T) {
	cache, _ := New(8)
	cache.Put(models.NewEntry(key(1), nil, models.TierMemory))
	cache.Put(models.NewEntry(key(2), nil, models.TierMemory))

	cache.Delete(key(1))
	if _, ok := cache.Get(key(1)); ok {
		t.Error("Entry still present after Delete")
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", cache.Len())
	}
}
