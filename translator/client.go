package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kawayiYokami/HentaiReader-sub000/coordinator"
	"github.com/kawayiYokami/HentaiReader-sub000/models"
)

// Client talks to the external translation backend over HTTP. The
// contract is deliberately narrow: one POST per page, JSON in and out.
// Model inference and OCR live entirely on the other side.
type Client struct {
	baseURL string
	hc      *http.Client
}

// Config holds configuration for the Client
type Config struct {
	BaseURL    string
	HTTPClient *http.Client // defaults to http.DefaultClient
}

// New creates a translation backend client
func New(config *Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}

	hc := config.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		hc:      hc,
	}, nil
}

type translateRequest struct {
	Source   []byte   `json:"source"`
	Text     []string `json:"text,omitempty"`
	Language string   `json:"language"`
}

type translateResponse struct {
	Artifact []byte `json:"artifact"`
}

// Translate sends one page to the backend and returns the translated
// artifact. The context deadline set by the coordinator bounds the call.
func (c *Client) Translate(ctx context.Context, req coordinator.TranslateRequest) ([]byte, error) {
	body, err := json.Marshal(translateRequest{
		Source:   req.Source,
		Text:     req.Text,
		Language: req.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("translator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Artifact) == 0 {
		return nil, fmt.Errorf("translator returned empty artifact")
	}

	return out.Artifact, nil
}

type sourceRequest struct {
	Document string `json:"document"`
	Page     int    `json:"page"`
}

type sourceResponse struct {
	Artifact []byte   `json:"artifact"`
	Text     []string `json:"text"`
}

// Source loads the source page artifact and its extracted text from the
// backend, satisfying coordinator.SourceProvider.
func (c *Client) Source(ctx context.Context, key models.CacheKey) (coordinator.SourcePage, error) {
	body, err := json.Marshal(sourceRequest{Document: key.Document, Page: key.Page})
	if err != nil {
		return coordinator.SourcePage{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/source", bytes.NewReader(body))
	if err != nil {
		return coordinator.SourcePage{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return coordinator.SourcePage{}, fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return coordinator.SourcePage{}, fmt.Errorf("source endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out sourceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return coordinator.SourcePage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return coordinator.SourcePage{Artifact: out.Artifact, Text: out.Text}, nil
}
