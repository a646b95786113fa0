// Package retrieval ranks fragments for a requirement set across four weighted
// search stages.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeout = 10 * time.Second

// Query is one similarity search request.
type Query struct {
	Text     string
	Tier     models.FragmentTier
	K        int
	MinNodes int
}

// Hit is a fragment returned by a Searcher with its similarity in [0,1].
type Hit struct {
	Fragment   *models.Fragment
	Similarity float64
}

// Searcher is the similarity search primitive the engine ranks over.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Hit, error)
}

// Stage is one weighted pass over a fragment tier.
type Stage struct {
	Name     string              `yaml:"name"      validate:"required"`
	Tier     models.FragmentTier `yaml:"tier"      validate:"required,oneof=expert complex pattern snippet"`
	Weight   float64             `yaml:"weight"    validate:"gt=0"`
	K        int                 `yaml:"k"         validate:"gt=0"`
	MinNodes int                 `yaml:"min_nodes" validate:"gte=0"`
}

// DefaultStages are the expert, complex, pattern and snippet passes.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "expert", Tier: models.FragmentExpert, Weight: 2.0, K: 3},
		{Name: "complex", Tier: models.FragmentComplex, Weight: 1.5, K: 2, MinNodes: 20},
		{Name: "pattern", Tier: models.FragmentPattern, Weight: 1.0, K: 5},
		{Name: "snippet", Tier: models.FragmentSnippet, Weight: 1.0, K: 10},
	}
}

// RetrievalError is a failed stage. It is never fatal: the stage contributes no
// candidates.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval stage %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// Result is the merged ranking plus the stages that failed.
type Result struct {
	Candidates []models.Candidate
	Failures   []*RetrievalError
}

// IDs lists the candidate fragment ids in rank order.
func (r Result) IDs() []string {
	out := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		out = append(out, c.Fragment.ID)
	}

	return out
}

type Engine struct {
	searcher Searcher
	stages   []Stage
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

type Option func(*Engine)

func WithStages(stages []Stage) Option {
	return func(e *Engine) {
		if len(stages) > 0 {
			e.stages = stages
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(searcher Searcher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		searcher: searcher,
		stages:   DefaultStages(),
		timeout:  DefaultTimeout,
		logger:   logger.With("module", "retrieval"),
		tracer:   otelhelper.Noop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Retrieve runs every stage concurrently under the engine timeout and merges
// the hits. k caps the merged list; k <= 0 keeps everything. Only cancellation
// of ctx by the caller is returned as an error.
func (e *Engine) Retrieve(ctx context.Context, reqs *models.RequirementSet, k int) (Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "retrieval.retrieve")
	defer span.End()

	text := reqs.Query()

	stageCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		merged   []models.Candidate
		failures []*RetrievalError
	)

	g, gCtx := errgroup.WithContext(stageCtx)

	for _, stage := range e.stages {
		g.Go(func() error {
			candidates, err := e.runStage(gCtx, stage, text)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failures = append(failures, &RetrievalError{Stage: stage.Name, Err: err})

				return nil
			}

			merged = append(merged, candidates...)

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Stage < failures[j].Stage })

	for _, f := range failures {
		e.logger.WarnContext(ctx, "retrieval stage failed, continuing without it", "stage", f.Stage, "error", f.Err)
		e.metrics.RetrievalFailure(f.Stage)
	}

	ranked := Rank(merged)
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	span.SetAttributes(attribute.Int(otelhelper.HitCountKey, len(ranked)))

	return Result{Candidates: ranked, Failures: failures}, nil
}

func (e *Engine) runStage(ctx context.Context, stage Stage, text string) ([]models.Candidate, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "retrieval.stage",
		attribute.String(otelhelper.RetrievalStageKey, stage.Name))
	defer span.End()

	hits, err := e.searcher.Search(ctx, Query{Text: text, Tier: stage.Tier, K: stage.K, MinNodes: stage.MinNodes})
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out: %w", err)
		}

		otelhelper.SetError(span, err, attribute.String(otelhelper.RetrievalStageKey, stage.Name))

		return nil, err
	}

	out := make([]models.Candidate, 0, len(hits))

	for _, h := range hits {
		if h.Fragment == nil || h.Fragment.NodeCount() < stage.MinNodes {
			continue
		}

		out = append(out, models.Candidate{
			Fragment:   h.Fragment,
			Stage:      stage.Name,
			Similarity: h.Similarity,
			Weight:     stage.Weight,
		})

		if len(out) == stage.K {
			break
		}
	}

	span.SetAttributes(attribute.Int(otelhelper.HitCountKey, len(out)))

	return out, nil
}

// Rank orders candidates by weighted score, then raw similarity, then id. A
// fragment found by several stages keeps its best entry.
func Rank(candidates []models.Candidate) []models.Candidate {
	best := make(map[string]models.Candidate, len(candidates))

	for _, c := range candidates {
		prev, seen := best[c.Fragment.ID]
		if !seen || less(c, prev) {
			best[c.Fragment.ID] = c
		}
	}

	out := make([]models.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })

	return out
}

// less reports whether a ranks before b.
func less(a, b models.Candidate) bool {
	if a.Rank() != b.Rank() {
		return a.Rank() > b.Rank()
	}

	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}

	if a.Fragment.ID != b.Fragment.ID {
		return a.Fragment.ID < b.Fragment.ID
	}

	return a.Stage < b.Stage
}
