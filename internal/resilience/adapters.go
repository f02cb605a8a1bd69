package resilience

import (
	"context"

	"github.com/smartdocfinder/smartdoc/internal/search"
)

// WrapEmbedder runs the embedder under retry and breaker policy.
func WrapEmbedder(inner search.Embedder, exec *Executor) search.Embedder {
	return &resilientEmbedder{inner: inner, exec: exec}
}

// WrapVectorSearcher runs the vector searcher under retry and breaker policy.
func WrapVectorSearcher(inner search.VectorSearcher, exec *Executor) search.VectorSearcher {
	return &resilientVectorSearcher{inner: inner, exec: exec}
}

// WrapReranker runs the reranker under retry and breaker policy.
func WrapReranker(inner search.Reranker, exec *Executor) search.Reranker {
	return &resilientReranker{inner: inner, exec: exec}
}

// WrapGenerator runs the generator under breaker policy only. Generation is
// too expensive to retry blindly; a failed call surfaces immediately so the
// pipeline can degrade.
func WrapGenerator(inner search.Generator, exec *Executor) search.Generator {
	return &resilientGenerator{inner: inner, exec: exec}
}

type resilientEmbedder struct {
	inner search.Embedder
	exec  *Executor
}

func (r *resilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := r.exec.Execute(ctx, "embed", func(ctx context.Context) error {
		var err error
		vec, err = r.inner.Embed(ctx, text)
		return err
	})
	return vec, err
}

type resilientVectorSearcher struct {
	inner search.VectorSearcher
	exec  *Executor
}

func (r *resilientVectorSearcher) Search(ctx context.Context, vector []float32, limit int) ([]search.VectorHit, error) {
	var hits []search.VectorHit
	err := r.exec.Execute(ctx, "semantic_search", func(ctx context.Context) error {
		var err error
		hits, err = r.inner.Search(ctx, vector, limit)
		return err
	})
	return hits, err
}

type resilientReranker struct {
	inner search.Reranker
	exec  *Executor
}

func (r *resilientReranker) Rerank(ctx context.Context, query string, results []search.SearchResult) ([]search.SearchResult, error) {
	var reranked []search.SearchResult
	err := r.exec.Execute(ctx, "rerank", func(ctx context.Context) error {
		var err error
		reranked, err = r.inner.Rerank(ctx, query, results)
		return err
	})
	return reranked, err
}

type resilientGenerator struct {
	inner search.Generator
	exec  *Executor
}

func (r *resilientGenerator) Generate(ctx context.Context, query string, results []search.SearchResult) (string, error) {
	var answer string
	err := r.exec.executeOnce(ctx, "generate", func(ctx context.Context) error {
		var err error
		answer, err = r.inner.Generate(ctx, query, results)
		return err
	})
	return answer, err
}
