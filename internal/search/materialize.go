package search

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/docstore"
)

// DocumentStore is the slice of the relational store the materializer needs.
type DocumentStore interface {
	FindAllByID(ctx context.Context, ids []int64) ([]*docstore.Document, error)
}

// Materializer resolves fused candidates into presentable results. Documents
// that also appeared in the lexical stream already carry their stored fields
// and highlight fragments; semantic-only documents are fetched from the
// relational store in a single batched lookup.
type Materializer struct {
	store      DocumentStore
	snippetLen int
}

// NewMaterializer builds a materializer. snippetLen bounds the fallback
// snippet taken from the start of the content when no highlight exists.
func NewMaterializer(store DocumentStore, snippetLen int) *Materializer {
	if snippetLen <= 0 {
		snippetLen = 200
	}
	return &Materializer{store: store, snippetLen: snippetLen}
}

// Materialize turns candidates into results, preserving candidate order.
// Candidates whose id does not parse or whose backing document has vanished
// between retrieval and lookup are dropped with a warning rather than
// failing the whole result page.
func (m *Materializer) Materialize(ctx context.Context, candidates []FusedCandidate, lexHits []LexicalHit) ([]SearchResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	hitsByID := make(map[string]LexicalHit, len(lexHits))
	for _, h := range lexHits {
		hitsByID[h.DocID] = h
	}

	// Collect ids that need a store round trip before building anything,
	// so the lookup happens exactly once per page.
	var missing []int64
	for _, c := range candidates {
		if _, ok := hitsByID[c.DocID]; ok {
			continue
		}
		id, err := strconv.ParseInt(c.DocID, 10, 64)
		if err != nil {
			slog.Warn("dropping candidate with malformed document id",
				slog.String("doc_id", c.DocID))
			continue
		}
		missing = append(missing, id)
	}

	fetched := make(map[int64]*docstore.Document, len(missing))
	if len(missing) > 0 {
		docs, err := m.store.FindAllByID(ctx, missing)
		if err != nil {
			return nil, docerr.Wrap(err, docerr.ErrCodeDocumentStore,
				"batched document lookup failed")
		}
		for _, d := range docs {
			fetched[d.ID] = d
		}
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		id, err := strconv.ParseInt(c.DocID, 10, 64)
		if err != nil {
			continue
		}

		res := SearchResult{
			DocID:        id,
			HybridScore:  c.HybridScore,
			Match:        c.Match,
			LexicalRank:  c.LexicalRank,
			SemanticRank: c.SemanticRank,
		}

		if hit, ok := hitsByID[c.DocID]; ok {
			res.Filename = hit.Filename
			res.Snippet = m.snippet(hit.Fragment, hit.Content)
		} else if doc, ok := fetched[id]; ok {
			res.Filename = doc.FileName
			res.Snippet = m.snippet("", doc.Content)
		} else {
			slog.Warn("document missing during materialization, dropping",
				slog.Int64("doc_id", id),
				slog.String("match", string(c.Match)))
			continue
		}

		results = append(results, res)
	}

	return results, nil
}

// snippet prefers the highlighter's fragment and otherwise truncates the
// content prefix, counting runes so multi-byte text is never split.
func (m *Materializer) snippet(fragment, content string) string {
	if frag := strings.TrimSpace(fragment); frag != "" {
		return frag
	}
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= m.snippetLen {
		return content
	}
	return string(runes[:m.snippetLen]) + "..."
}
