// Package search implements the hybrid retrieval pipeline: parallel lexical
// and semantic retrieval, reciprocal rank fusion, result materialization, and
// optional reranking and answer generation over the fused top results.
package search

import "context"

// MatchType records which retrieval streams surfaced a document.
type MatchType string

const (
	MatchLexical  MatchType = "lexical"
	MatchSemantic MatchType = "semantic"
	MatchHybrid   MatchType = "hybrid"
)

// Stage identifies where in the pipeline a response was produced.
type Stage string

const (
	StageRetrieving Stage = "retrieving"
	StageFusing     Stage = "fusing"
	StageReranking  Stage = "reranking"
	StageGenerating Stage = "generating"
	StageDone       Stage = "done"
	StageEmpty      Stage = "empty"
)

// RankEntry is one document's position in a single retrieval stream.
// Ranks are dense and 1-based: the best hit has rank 1.
type RankEntry struct {
	DocID string
	Rank  int
}

// FusedCandidate is a document after rank fusion, before materialization.
// A zero rank means the document was absent from that stream.
type FusedCandidate struct {
	DocID        string
	LexicalRank  int
	SemanticRank int
	HybridScore  float64
	Match        MatchType
}

// SearchResult is a fully materialized result ready for presentation.
type SearchResult struct {
	DocID        int64     `json:"docId"`
	Filename     string    `json:"filename"`
	Snippet      string    `json:"snippet"`
	HybridScore  float64   `json:"hybridScore"`
	Match        MatchType `json:"matchType"`
	LexicalRank  int       `json:"lexicalRank,omitempty"`
	SemanticRank int       `json:"semanticRank,omitempty"`
}

// Response is the pipeline's final product: the generated answer plus the
// ranked source documents it was grounded on.
type Response struct {
	Answer  string         `json:"answer"`
	Results []SearchResult `json:"results"`
	Stage   Stage          `json:"stage"`
}

// VectorHit is one semantic retrieval match with its similarity score.
type VectorHit struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Embedder turns query text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher retrieves nearest-neighbor documents for a query vector.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]VectorHit, error)
}

// Reranker reorders materialized results by relevance to the query.
// Implementations must return the same documents they were given.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []SearchResult) ([]SearchResult, error)
}

// Generator produces a grounded answer from the query and source documents.
type Generator interface {
	Generate(ctx context.Context, query string, results []SearchResult) (string, error)
}

// Fallback messages returned when a pipeline stage cannot produce output.
const (
	msgNoDocuments     = "I could not find any relevant documents to answer your question."
	msgGenerationError = "An error occurred while generating the answer."
	msgBlankAnswer     = "The model did not provide an answer based on the provided documents."
)
