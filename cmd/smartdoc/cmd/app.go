package cmd

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smartdocfinder/smartdoc/internal/config"
	"github.com/smartdocfinder/smartdoc/internal/docstore"
	"github.com/smartdocfinder/smartdoc/internal/embed"
	"github.com/smartdocfinder/smartdoc/internal/extract"
	"github.com/smartdocfinder/smartdoc/internal/index"
	"github.com/smartdocfinder/smartdoc/internal/ingest"
	"github.com/smartdocfinder/smartdoc/internal/query"
	"github.com/smartdocfinder/smartdoc/internal/queue"
	"github.com/smartdocfinder/smartdoc/internal/rag"
	"github.com/smartdocfinder/smartdoc/internal/resilience"
	"github.com/smartdocfinder/smartdoc/internal/search"
	"github.com/smartdocfinder/smartdoc/internal/semantic"
	"github.com/smartdocfinder/smartdoc/internal/telemetry"
)

// app holds the assembled components and their teardown order.
type app struct {
	cfg      *config.Config
	store    *index.Store
	docs     *docstore.Store
	queue    *queue.Publisher
	pipeline *search.Pipeline
	ingester *ingest.Service
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	embedder *embed.Client
	vectors  *semantic.Client
}

// buildApp assembles every component from configuration. The embedding
// queue is optional; everything else must come up or the build fails.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	a.registry = prometheus.NewRegistry()
	a.metrics = telemetry.New(a.registry)

	store, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, err
	}
	a.store = store

	docs, err := docstore.Open(cfg.Database.DSN)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.docs = docs
	if err := docs.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Queue.URL != "" {
		pub, err := queue.Connect(cfg.Queue.URL, cfg.Queue.Subject)
		if err != nil {
			slog.Warn("embedding queue unavailable, new documents will lack vectors until reindexed",
				slog.String("error", err.Error()))
		} else {
			a.queue = pub
		}
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())

	a.embedder = embed.NewClient(embed.ClientConfig{
		BaseURL: cfg.Collaborators.Embedding.URL,
		Timeout: cfg.Collaborators.Embedding.Timeout,
	})
	cached := embed.NewCachedEmbedder(a.embedder, cfg.Collaborators.EmbedCacheSize)

	a.vectors = semantic.NewClient(semantic.ClientConfig{
		BaseURL: cfg.Collaborators.SemanticSearch.URL,
		Timeout: cfg.Collaborators.SemanticSearch.Timeout,
	})

	reranker := rag.NewReranker(rag.RerankerConfig{
		BaseURL: cfg.Collaborators.Reranker.URL,
		Timeout: cfg.Collaborators.Reranker.Timeout,
	})
	generator := rag.NewGenerator(rag.GeneratorConfig{
		BaseURL: cfg.Collaborators.Generator.URL,
		Timeout: cfg.Collaborators.Generator.Timeout,
	})

	builder := query.NewBuilder(cfg.Search.FuzzyMaxTokens)
	lexical := search.NewLexicalSearcher(store, builder)
	semanticSide := search.NewSemanticAdapter(
		resilience.WrapEmbedder(cached, exec),
		resilience.WrapVectorSearcher(a.vectors, exec),
		cfg.Search.SimilarityThreshold,
		a.metrics,
	)
	fuser := search.NewFuser(cfg.Search.RRFConstant)
	materializer := search.NewMaterializer(docs, cfg.Search.SnippetLength)

	a.pipeline = search.NewPipeline(
		search.PipelineConfig{
			RetrievalWidth: cfg.Search.RetrievalWidth,
			TopK:           cfg.Search.TopK,
		},
		lexical,
		semanticSide,
		fuser,
		materializer,
		resilience.WrapReranker(reranker, exec),
		resilience.WrapGenerator(generator, exec),
		a.metrics,
	)

	var publisher ingest.JobPublisher
	if a.queue != nil {
		publisher = a.queue
	}
	ingester, err := ingest.NewService(
		ingest.Config{
			Workers:     cfg.Ingest.Workers,
			MaxFileSize: int64(cfg.Ingest.MaxFileSizeMB) << 20,
		},
		extract.NewRegistry(),
		docs,
		store,
		publisher,
		a.metrics,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ingester = ingester

	return a, nil
}

// Close tears the app down in reverse dependency order. Safe on a partially
// built app.
func (a *app) Close() {
	if a.ingester != nil {
		a.ingester.Close()
	}
	if a.embedder != nil {
		a.embedder.Close()
	}
	if a.vectors != nil {
		a.vectors.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	if a.docs != nil {
		if err := a.docs.Close(); err != nil {
			slog.Warn("document store close failed", slog.String("error", err.Error()))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("index close failed", slog.String("error", err.Error()))
		}
	}
}
