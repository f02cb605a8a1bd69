package search

import (
	"context"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
	"github.com/smartdocfinder/smartdoc/internal/index"
	"github.com/smartdocfinder/smartdoc/internal/query"
)

// LexicalHit is one keyword-index match with its stored fields and, when the
// highlighter produced one, a content fragment around the matched terms.
type LexicalHit struct {
	DocID    string
	Filename string
	Content  string
	Fragment string
}

// LexicalSearcher runs constructed queries against the inverted index.
type LexicalSearcher struct {
	store   *index.Store
	builder *query.Builder
}

// NewLexicalSearcher builds a searcher over the given index store.
func NewLexicalSearcher(store *index.Store, builder *query.Builder) *LexicalSearcher {
	return &LexicalSearcher{store: store, builder: builder}
}

// Search retrieves up to limit documents for the raw query text. Hits come
// back in index score order; the returned slice position plus one is the
// document's lexical rank.
func (s *LexicalSearcher) Search(ctx context.Context, raw string, limit int) ([]LexicalHit, error) {
	q := s.builder.Build(raw)
	if _, isNone := q.(*bquery.MatchNoneQuery); isNone {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{index.FieldFilename, index.FieldContent}

	req.Highlight = bleve.NewHighlight()
	req.Highlight.Fields = []string{index.FieldContent}

	reader, err := s.store.Reader()
	if err != nil {
		return nil, err
	}
	res, err := reader.Search(ctx, req)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeIndexUnavailable, "lexical search failed")
	}

	hits := make([]LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		lh := LexicalHit{DocID: hit.ID}
		if v, ok := hit.Fields[index.FieldFilename].(string); ok {
			lh.Filename = v
		}
		if v, ok := hit.Fields[index.FieldContent].(string); ok {
			lh.Content = v
		}
		if frags, ok := hit.Fragments[index.FieldContent]; ok && len(frags) > 0 {
			lh.Fragment = frags[0]
		}
		hits = append(hits, lh)
	}

	slog.Debug("lexical retrieval complete",
		slog.String("query", raw),
		slog.Int("hits", len(hits)),
		slog.Uint64("total", res.Total))
	return hits, nil
}

// Ranks converts hit order into dense 1-based rank entries.
func Ranks(hits []LexicalHit) []RankEntry {
	entries := make([]RankEntry, len(hits))
	for i, h := range hits {
		entries[i] = RankEntry{DocID: h.DocID, Rank: i + 1}
	}
	return entries
}
