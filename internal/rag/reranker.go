// Package rag provides HTTP clients for the reranking and answer-generation
// collaborators. Both are optional pipeline stages: callers treat any error
// from this package as a signal to degrade, not to fail the request.
package rag

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

// Default collaborator timeouts. Generation is slow by nature and gets a
// much wider budget than reranking.
const (
	DefaultRerankTimeout   = 15 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
)

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

func decodeOrStatus(resp *http.Response, collaborator string, out any) error {
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return docerr.CollaboratorUnavailable(collaborator,
			fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return docerr.CollaboratorUnavailable(collaborator, err)
	}
	return nil
}

// RerankerConfig configures the reranker client.
type RerankerConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Reranker calls the reranking collaborator over HTTP.
type Reranker struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

var _ search.Reranker = (*Reranker)(nil)

// NewReranker creates a reranker client.
func NewReranker(cfg RerankerConfig) *Reranker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankTimeout
	}
	return &Reranker{http: newHTTPClient(), baseURL: cfg.BaseURL, timeout: cfg.Timeout}
}

type rerankDocument struct {
	DocID   int64  `json:"doc_id"`
	Snippet string `json:"snippet"`
}

type rerankRequest struct {
	Query     string           `json:"query"`
	Documents []rerankDocument `json:"documents"`
}

type rerankResponse struct {
	Order []int64 `json:"order"`
}

// Rerank asks the collaborator for a relevance order over the results and
// applies it. The response must be a permutation of the input ids; anything
// else is an error so the caller keeps the fusion order.
func (r *Reranker) Rerank(ctx context.Context, query string, results []search.SearchResult) ([]search.SearchResult, error) {
	if len(results) <= 1 {
		return results, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reqBody := rerankRequest{Query: query}
	for _, res := range results {
		reqBody.Documents = append(reqBody.Documents, rerankDocument{
			DocID:   res.DocID,
			Snippet: res.Snippet,
		})
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "encode rerank request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeInternal, "build rerank request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, docerr.CollaboratorUnavailable("reranker", err)
	}
	defer resp.Body.Close()

	var out rerankResponse
	if err := decodeOrStatus(resp, "reranker", &out); err != nil {
		return nil, err
	}
	if len(out.Order) != len(results) {
		return nil, docerr.CollaboratorUnavailable("reranker",
			fmt.Errorf("order has %d ids, want %d", len(out.Order), len(results)))
	}

	byID := make(map[int64]search.SearchResult, len(results))
	for _, res := range results {
		byID[res.DocID] = res
	}
	reranked := make([]search.SearchResult, 0, len(results))
	for _, id := range out.Order {
		res, ok := byID[id]
		if !ok {
			return nil, docerr.CollaboratorUnavailable("reranker",
				fmt.Errorf("order references unknown document %d", id))
		}
		delete(byID, id)
		reranked = append(reranked, res)
	}
	return reranked, nil
}
