package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/search"
)

// GeneratorConfig configures the answer-generation client.
type GeneratorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Generator calls the answer-generation collaborator over HTTP.
type Generator struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

var _ search.Generator = (*Generator)(nil)

// NewGenerator creates a generator client.
func NewGenerator(cfg GeneratorConfig) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerateTimeout
	}
	return &Generator{http: newHTTPClient(), baseURL: cfg.BaseURL, timeout: cfg.Timeout}
}

type generateSource struct {
	DocID    int64  `json:"doc_id"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

type generateRequest struct {
	Query   string           `json:"query"`
	Sources []generateSource `json:"sources"`
}

type generateResponse struct {
	Answer string `json:"answer"`
}

// Generate asks the collaborator for an answer grounded on the given
// results. The raw answer comes back untrimmed; the caller decides how to
// handle a blank one.
func (g *Generator) Generate(ctx context.Context, query string, results []search.SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reqBody := generateRequest{Query: query}
	for _, res := range results {
		reqBody.Sources = append(reqBody.Sources, generateSource{
			DocID:    res.DocID,
			Filename: res.Filename,
			Snippet:  res.Snippet,
		})
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", docerr.Wrap(err, docerr.ErrCodeInternal, "encode generate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", docerr.Wrap(err, docerr.ErrCodeInternal, "build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", docerr.CollaboratorUnavailable("generator", err)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := decodeOrStatus(resp, "generator", &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}
