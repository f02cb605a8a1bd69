// Package semantic provides the HTTP client for the vector-search
// collaborator that serves nearest-neighbor retrieval.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/search"
)

// DefaultTimeout bounds one vector-search round trip.
const DefaultTimeout = 10 * time.Second

// ClientConfig configures the vector-search client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the vector-search collaborator over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

var _ search.VectorSearcher = (*Client)(nil)

// NewClient creates a vector-search client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		baseURL: cfg.BaseURL,
		timeout: cfg.Timeout,
	}
}

type searchRequest struct {
	Vector []float32 `json:"vector"`
	Limit  int       `json:"limit"`
}

type searchResponse struct {
	Hits []search.VectorHit `json:"hits"`
}

// Search retrieves the nearest documents for the query vector, best first.
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]search.VectorHit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(searchRequest{Vector: vector, Limit: limit})
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "encode semantic search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/semantic-search", bytes.NewReader(body))
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "build semantic search request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, docerr.CollaboratorUnavailable("semantic_search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, docerr.CollaboratorUnavailable("semantic_search",
			fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, docerr.CollaboratorUnavailable("semantic_search", err)
	}
	return out.Hits, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if t, ok := c.http.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}
