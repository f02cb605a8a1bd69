package search

import (
	"context"
	"log/slog"

	"github.com/smartdocfinder/smartdoc/internal/telemetry"
)

// SemanticAdapter turns a text query into semantic rank entries by embedding
// the query and running a nearest-neighbor search against the vector
// collaborator. Hits below the similarity threshold are dropped.
//
// The adapter never fails the pipeline: any collaborator error degrades to an
// empty rank list so lexical retrieval can still serve the request alone.
type SemanticAdapter struct {
	embedder  Embedder
	searcher  VectorSearcher
	threshold float64
	metrics   *telemetry.Metrics
}

// NewSemanticAdapter wires the embedding and vector-search collaborators.
// Either may be nil, in which case semantic retrieval is disabled and every
// query degrades to lexical-only.
func NewSemanticAdapter(embedder Embedder, searcher VectorSearcher, threshold float64, metrics *telemetry.Metrics) *SemanticAdapter {
	return &SemanticAdapter{
		embedder:  embedder,
		searcher:  searcher,
		threshold: threshold,
		metrics:   metrics,
	}
}

// Retrieve returns dense 1-based semantic ranks for the query, or nil when
// the semantic side is unavailable or produced nothing above the threshold.
// queryText is expected in normalized form so the embedding and its cache key
// do not vary with case, punctuation, or surrounding whitespace.
func (a *SemanticAdapter) Retrieve(ctx context.Context, queryText string, limit int) []RankEntry {
	if a.embedder == nil || a.searcher == nil {
		return nil
	}

	vector, err := a.embedder.Embed(ctx, queryText)
	if err != nil {
		slog.Warn("embedding failed, degrading to lexical-only",
			slog.String("query", queryText),
			slog.String("error", err.Error()))
		a.metrics.RecordDegradation("embedding")
		return nil
	}

	hits, err := a.searcher.Search(ctx, vector, limit)
	if err != nil {
		slog.Warn("semantic search failed, degrading to lexical-only",
			slog.String("query", queryText),
			slog.String("error", err.Error()))
		a.metrics.RecordDegradation("semantic_search")
		return nil
	}

	entries := make([]RankEntry, 0, len(hits))
	rank := 1
	for _, hit := range hits {
		if hit.Score < a.threshold {
			continue
		}
		entries = append(entries, RankEntry{DocID: hit.DocID, Rank: rank})
		rank++
	}

	slog.Debug("semantic retrieval complete",
		slog.String("query", queryText),
		slog.Int("hits", len(hits)),
		slog.Int("above_threshold", len(entries)))
	return entries
}
