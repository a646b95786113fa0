package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/config"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/generation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval/vector"
	"go.opentelemetry.io/otel/trace"
)

var ErrEmbedderRequired = errors.New("vector retrieval needs the openai provider for embeddings")

// PipelineConfig selects the generator and searcher backends.
type PipelineConfig struct {
	// Provider is "openai" or "blueprint". Empty selects blueprint.
	Provider    string
	OpenAI      llm.OpenAIConfig
	WeaviateURL string
	Generation  config.Generation
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
}

// NewPipeline assembles the generation orchestrator with its retrieval engine.
func NewPipeline(
	ctx context.Context,
	logger *slog.Logger,
	reg *registry.Registry,
	lib *patterns.Library,
	cfg PipelineConfig,
	opts ...generation.Option,
) (*generation.Orchestrator, error) {
	if cfg.Tracer == nil {
		cfg.Tracer = otelhelper.Noop()
	}

	generator, embedder, err := NewGenerator(cfg.Provider, cfg.OpenAI, cfg.Generation.LLM, reg, logger)
	if err != nil {
		return nil, err
	}

	searcher, err := NewSearcher(ctx, logger, cfg.WeaviateURL, embedder, retrieval.Corpus(lib, reg))
	if err != nil {
		return nil, err
	}

	retriever := retrieval.NewEngine(searcher, logger,
		retrieval.WithStages(cfg.Generation.Retrieval.Stages),
		retrieval.WithTimeout(cfg.Generation.Retrieval.Timeout),
		retrieval.WithMetrics(cfg.Metrics),
		retrieval.WithTracer(cfg.Tracer),
	)

	opts = append([]generation.Option{
		generation.WithConfig(cfg.Generation.Orchestrator),
		generation.WithRetriever(retriever),
		generation.WithMetrics(cfg.Metrics),
		generation.WithTracer(cfg.Tracer),
	}, opts...)

	return generation.NewOrchestrator(generator, reg, logger, opts...), nil
}

// NewGenerator returns the text generator and, for providers that have one, an
// embedder for vector retrieval.
func NewGenerator(
	provider string,
	openAI llm.OpenAIConfig,
	tuning config.LLM,
	reg *registry.Registry,
	logger *slog.Logger,
) (llm.Generator, vector.Embedder, error) {
	switch provider {
	case "", "blueprint":
		return llm.NewBlueprint(reg), nil, nil
	case "openai":
		openAI.Temperature = tuning.Temperature
		openAI.MaxTokens = tuning.MaxTokens
		openAI.RequestsPerSecond = tuning.RequestsPerSecond

		client, err := llm.NewOpenAI(openAI, logger)
		if err != nil {
			return nil, nil, err
		}

		return client, client, nil
	default:
		return nil, nil, fmt.Errorf("%w: llm %q", ErrUnsupportedProvider, provider)
	}
}

// NewSearcher returns the Weaviate searcher when a url is set, indexing the
// corpus first, and the in-memory searcher otherwise.
func NewSearcher(
	ctx context.Context,
	logger *slog.Logger,
	weaviateURL string,
	embedder vector.Embedder,
	corpus []*models.Fragment,
) (retrieval.Searcher, error) {
	if weaviateURL == "" {
		return retrieval.NewMemorySearcher(corpus), nil
	}

	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	client, err := vector.NewClient(weaviateURL)
	if err != nil {
		return nil, err
	}

	searcher := vector.NewSearcher(client, embedder, corpus, logger)

	if err := searcher.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	indexed, err := searcher.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to index fragments: %w", err)
	}

	logger.InfoContext(ctx, "Fragments indexed", "count", indexed, "corpus", len(corpus))

	return searcher, nil
}
