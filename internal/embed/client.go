// Package embed provides the HTTP client for the embedding collaborator and
// an LRU-cached wrapper around it.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Default client tuning.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultPoolSize = 4
)

// ClientConfig configures the embedding collaborator client.
type ClientConfig struct {
	BaseURL  string
	Timeout  time.Duration
	PoolSize int
}

// Client calls the embedding collaborator over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

var _ Embedder = (*Client)(nil)

// NewClient creates an embedding client with pooled connections.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}
	// No client-level timeout: the per-request context carries the deadline.
	return &Client{
		http:    &http.Client{Transport: transport},
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	// Some model backends also return per-token sub-vectors. Vector search
	// takes a single query vector, so only the base embedding is used.
	SubVectors [][]float32 `json:"sub_vectors,omitempty"`
}

// Embed requests an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "encode embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "build embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, docerr.CollaboratorUnavailable("embedding", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, docerr.CollaboratorUnavailable("embedding",
			fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, docerr.CollaboratorUnavailable("embedding", err)
	}
	if len(out.Embedding) == 0 {
		return nil, docerr.CollaboratorUnavailable("embedding",
			fmt.Errorf("empty embedding in response"))
	}
	return out.Embedding, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if t, ok := c.http.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
