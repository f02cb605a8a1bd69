package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smartdocfinder/smartdoc/internal/query"
	"github.com/smartdocfinder/smartdoc/internal/telemetry"
)

// PipelineConfig bounds the pipeline's retrieval and presentation widths.
type PipelineConfig struct {
	// RetrievalWidth is how many documents each stream retrieves before
	// fusion. Wider retrieval gives fusion more overlap to work with.
	RetrievalWidth int
	// TopK is how many fused results survive into reranking, generation,
	// and the final response.
	TopK int
}

// Pipeline coordinates one search request end to end: parallel retrieval,
// fusion, materialization, reranking, and answer generation. The reranker
// and generator are optional collaborators; their failure degrades the
// response rather than failing it.
type Pipeline struct {
	cfg PipelineConfig

	lexical     *LexicalSearcher
	semantic    *SemanticAdapter
	fuser       *Fuser
	materialize *Materializer
	reranker    Reranker
	generator   Generator
	metrics     *telemetry.Metrics
}

// NewPipeline assembles the pipeline. reranker and generator may be nil.
func NewPipeline(cfg PipelineConfig, lexical *LexicalSearcher, semantic *SemanticAdapter, fuser *Fuser, materializer *Materializer, reranker Reranker, generator Generator, metrics *telemetry.Metrics) *Pipeline {
	if cfg.RetrievalWidth <= 0 {
		cfg.RetrievalWidth = 50
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	// TopK never exceeds the retrieval width, even for hand-built configs.
	if cfg.TopK > cfg.RetrievalWidth {
		cfg.TopK = cfg.RetrievalWidth
	}
	return &Pipeline{
		cfg:         cfg,
		lexical:     lexical,
		semantic:    semantic,
		fuser:       fuser,
		materialize: materializer,
		reranker:    reranker,
		generator:   generator,
		metrics:     metrics,
	}
}

// Search runs the full pipeline for one query. An empty retrieval union
// short-circuits with the no-documents response and never touches the
// reranker or generator.
func (p *Pipeline) Search(ctx context.Context, rawQuery string) (Response, error) {
	p.metrics.RecordSearch()

	// Normalized once here: the semantic side embeds this form, and the
	// lexical builder re-derives it from the raw query.
	normalized := query.Normalize(rawQuery)
	if normalized == "" {
		p.metrics.RecordEmpty()
		return Response{Answer: msgNoDocuments, Stage: StageEmpty}, nil
	}

	// Retrieving: both streams run in parallel. The semantic side never
	// errors; a lexical error is only fatal when semantic retrieval found
	// nothing to carry the request.
	retrieveStart := time.Now()
	var (
		lexHits  []LexicalHit
		lexErr   error
		semRanks []RankEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexHits, lexErr = p.lexical.Search(gctx, rawQuery, p.cfg.RetrievalWidth)
		return nil
	})
	g.Go(func() error {
		semRanks = p.semantic.Retrieve(gctx, normalized, p.cfg.RetrievalWidth)
		return nil
	})
	_ = g.Wait()
	p.metrics.ObserveStage(string(StageRetrieving), time.Since(retrieveStart))

	if lexErr != nil {
		if len(semRanks) == 0 {
			return Response{}, lexErr
		}
		slog.Warn("lexical retrieval failed, serving semantic results only",
			slog.String("query", rawQuery),
			slog.String("error", lexErr.Error()))
		p.metrics.RecordDegradation("lexical")
		lexHits = nil
	}

	// Fusing.
	fuseStart := time.Now()
	fused := p.fuser.Fuse(Ranks(lexHits), semRanks)
	p.metrics.ObserveStage(string(StageFusing), time.Since(fuseStart))

	if len(fused) == 0 {
		slog.Info("no documents retrieved", slog.String("query", rawQuery))
		p.metrics.RecordEmpty()
		return Response{Answer: msgNoDocuments, Stage: StageEmpty}, nil
	}

	if len(fused) > p.cfg.TopK {
		fused = fused[:p.cfg.TopK]
	}

	results, err := p.materialize.Materialize(ctx, fused, lexHits)
	if err != nil {
		return Response{}, err
	}
	if len(results) == 0 {
		p.metrics.RecordEmpty()
		return Response{Answer: msgNoDocuments, Stage: StageEmpty}, nil
	}

	results = p.rerank(ctx, rawQuery, results)
	answer := p.generate(ctx, rawQuery, results)

	return Response{Answer: answer, Results: results, Stage: StageDone}, nil
}

// rerank applies the reranker, keeping fusion order when the collaborator is
// absent, fails, or returns a result set of a different size.
func (p *Pipeline) rerank(ctx context.Context, rawQuery string, results []SearchResult) []SearchResult {
	if p.reranker == nil {
		return results
	}
	start := time.Now()
	defer func() { p.metrics.ObserveStage(string(StageReranking), time.Since(start)) }()

	reranked, err := p.reranker.Rerank(ctx, rawQuery, results)
	if err != nil {
		slog.Warn("reranker failed, keeping fusion order",
			slog.String("query", rawQuery),
			slog.String("error", err.Error()))
		p.metrics.RecordDegradation("reranker")
		return results
	}
	if len(reranked) != len(results) {
		slog.Warn("reranker changed result count, keeping fusion order",
			slog.Int("want", len(results)),
			slog.Int("got", len(reranked)))
		p.metrics.RecordDegradation("reranker")
		return results
	}
	return reranked
}

// generate produces the answer, degrading to a fixed message on any failure
// so the caller always receives the source documents.
func (p *Pipeline) generate(ctx context.Context, rawQuery string, results []SearchResult) string {
	if p.generator == nil {
		p.metrics.RecordDegradation("generator")
		return msgGenerationError
	}
	start := time.Now()
	defer func() { p.metrics.ObserveStage(string(StageGenerating), time.Since(start)) }()

	answer, err := p.generator.Generate(ctx, rawQuery, results)
	if err != nil {
		slog.Warn("answer generation failed",
			slog.String("query", rawQuery),
			slog.String("error", err.Error()))
		p.metrics.RecordDegradation("generator")
		return msgGenerationError
	}
	if strings.TrimSpace(answer) == "" {
		return msgBlankAnswer
	}
	return answer
}
