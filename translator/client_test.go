package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kawayiYokami/HentaiReader-sub000/coordinator"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

func TestTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Language != "zh" {
			t.Errorf("Expected language zh, got %q", req.Language)
		}
		if len(req.Text) != 1 || req.Text[0] != "hello" {
			t.Errorf("Unexpected text payload: %v", req.Text)
		}

		json.NewEncoder(w).Encode(translateResponse{Artifact: []byte("done")})
	}))
	defer server.Close()

	client, err := New(&Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	artifact, err := client.Translate(context.Background(), coordinator.TranslateRequest{
		Source:   []byte("page"),
		Text:     []string{"hello"},
		Language: "zh",
	})
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if !bytes.Equal(artifact, []byte("done")) {
		t.Errorf("Unexpected artifact: %q", artifact)
	}
}

func TestTranslateBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, _ := New(&Config{BaseURL: server.URL})
	if _, err := client.Translate(context.Background(), coordinator.TranslateRequest{Language: "zh"}); err == nil {
		t.Fatal("Expected error for 503 response")
	}
}

func TestTranslateEmptyArtifact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{})
	}))
	defer server.Close()

	client, _ := New(&Config{BaseURL: server.URL})
	if _, err := client.Translate(context.Background(), coordinator.TranslateRequest{Language: "zh"}); err == nil {
		t.Fatal("Expected error for empty artifact")
	}
}

func TestSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/source" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}

		var req sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Document != "vol1" || req.Page != 3 {
			t.Errorf("Unexpected request: %+v", req)
		}

		json.NewEncoder(w).Encode(sourceResponse{
			Artifact: []byte("raw"),
			Text:     []string{"line"},
		})
	}))
	defer server.Close()

	client, _ := New(&Config{BaseURL: server.URL})
	page, err := client.Source(context.Background(), models.CacheKey{Document: "vol1", Page: 3, Language: "zh"})
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if !bytes.Equal(page.Artifact, []byte("raw")) || len(page.Text) != 1 {
		t.Errorf("Unexpected source page: %+v", page)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(&Config{}); err == nil {
		t.Error("Expected error for missing base URL")
	}
}
