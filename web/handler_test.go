package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kawayiYokami/HentaiReader-sub000/admin"
	blobmemory "github.com/kawayiYokami/HentaiReader-sub000/blobstore/memory"
	"github.com/kawayiYokami/HentaiReader-sub000/metadata/sqlite"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
	"github.com/kawayiYokami/HentaiReader-sub000/store"
	"github.com/kawayiYokami/HentaiReader-sub000/tier"
	tierephemeral "github.com/kawayiYokami/HentaiReader-sub000/tier/ephemeral"
)

func newHandler(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()

	meta, err := sqlite.New(&sqlite.Config{DBPath: filepath.Join(t.TempDir(), "metadata.db")})
	if err != nil {
		t.Fatalf("Failed to create metadata store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(blobmemory.New(), meta, logger)
	t.Cleanup(func() { st.Close() })

	eph, err := tierephemeral.New(16)
	if err != nil {
		t.Fatalf("Failed to create ephemeral tier: %v", err)
	}
	svc, err := admin.New(admin.Config{
		Store:  st,
		Tiers:  []tier.Tier{eph},
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("Failed to create admin service: %v", err)
	}

	h := &handler{svc: svc, log: logger}
	return h.routes(), st
}

func seed(t *testing.T, st *store.Store, doc, lang string, pages int) {
	t.Helper()

	for page := 0; page < pages; page++ {
		entry := models.NewEntry(models.CacheKey{
			Document:    doc,
			Page:        page,
			Language:    lang,
			Fingerprint: "1e20aa",
		}, []byte{1, 2}, models.TierPersistent)
		if err := st.Put(context.Background(), entry); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListGroups(t *testing.T) {
	h, st := newHandler(t)
	seed(t, st, "vol1", "zh", 3)
	seed(t, st, "vol2", "en", 1)

	w := do(t, h, http.MethodGet, "/v1/groups", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp struct {
		Data models.Page[models.AggregateView] `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.Total != 2 {
		t.Errorf("Expected 2 groups, got %d", resp.Data.Total)
	}
}

func TestListGroupsFiltered(t *testing.T) {
	h, st := newHandler(t)
	seed(t, st, "vol1", "zh", 2)
	seed(t, st, "vol2", "en", 1)

	w := do(t, h, http.MethodGet, "/v1/groups?document=vol1", "")
	var resp struct {
		Data models.Page[models.AggregateView] `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.Total != 1 || resp.Data.Items[0].Document != "vol1" {
		t.Errorf("Unexpected filter result: %+v", resp.Data.Items)
	}
}

func TestDeleteGroup(t *testing.T) {
	h, st := newHandler(t)
	seed(t, st, "vol1", "zh", 3)

	w := do(t, h, http.MethodDelete, "/v1/groups?document=vol1&language=zh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp struct {
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data["removed"] != 3 {
		t.Errorf("Expected 3 removed, got %d", resp.Data["removed"])
	}
}

func TestDeleteGroupRequiresDocument(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodDelete, "/v1/groups", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSubstitutionRoundTrip(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodPut, "/v1/substitutions", `{"original":"foo","replacement":"bar"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	w = do(t, h, http.MethodGet, "/v1/substitutions", "")
	var resp struct {
		Data []models.SubstitutionMapping `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Replacement != "bar" {
		t.Fatalf("Unexpected substitutions: %+v", resp.Data)
	}

	w = do(t, h, http.MethodDelete, "/v1/substitutions?original=foo", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
}

func TestDeleteUnknownSubstitution(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodDelete, "/v1/substitutions?original=missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestPutSubstitutionRejectsBadJSON(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodPut, "/v1/substitutions", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestClearTier(t *testing.T) {
	h, st := newHandler(t)
	seed(t, st, "vol1", "zh", 2)

	w := do(t, h, http.MethodDelete, "/v1/tiers/persistent", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
	}

	page, err := st.List(context.Background(), models.Filter{}, 0, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected empty store, got %d entries", page.Total)
	}
}

func TestClearUnknownTier(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodDelete, "/v1/tiers/bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	h, st := newHandler(t)
	seed(t, st, "vol1", "zh", 2)

	w := do(t, h, http.MethodGet, "/v1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Data models.Stats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Data.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", resp.Data.Entries)
	}
}

func TestCleanupOrphanedWithoutChecker(t *testing.T) {
	h, _ := newHandler(t)

	w := do(t, h, http.MethodPost, "/v1/cleanup/orphaned", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 without a document checker, got %d", w.Code)
	}
}
