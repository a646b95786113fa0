// Package generation turns a finalized requirement set into a scored n8n
// workflow draft: draft synthesis, six repair stages and a quality gate, run in
// a bounded best-of loop.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/eventbus"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/quality"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stage names, used for spans and the stage duration metric.
const (
	StageRetrieval     = "retrieval"
	StageSynthesis     = "synthesis"
	StageStructure     = "structure"
	StageParameters    = "parameters"
	StageCredentials   = "credentials"
	StageErrorHandling = "error_handling"
	StageDocumentation = "documentation"
	StageConnectivity  = "connectivity"
	StageQuality       = "quality"
)

// Config tunes the attempt loop.
type Config struct {
	MaxAttempts    int           `yaml:"max_attempts"    validate:"gte=1,lte=10"`
	PassThreshold  int           `yaml:"pass_threshold"  validate:"gte=0,lte=100"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gte=0"`
	TopK           int           `yaml:"top_k"           validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		PassThreshold:  quality.PassThreshold,
		AttemptTimeout: 90 * time.Second,
		TopK:           12,
	}
}

// Input is one generation request.
type Input struct {
	SessionID    string
	Name         string
	Request      string
	Context      string
	Requirements *models.RequirementSet
	Tier         models.Tier
	Forced       bool
}

// Retriever supplies ranked fragments for a requirement set.
type Retriever interface {
	Retrieve(ctx context.Context, reqs *models.RequirementSet, k int) (retrieval.Result, error)
}

type Orchestrator struct {
	generator llm.Generator
	retriever Retriever
	registry  *registry.Registry
	refiner   *Refiner
	validator *quality.Validator
	config    Config
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	publisher eventbus.EventPublisher
}

type Option func(*Orchestrator)

func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.config = cfg
	}
}

func WithRetriever(r Retriever) Option {
	return func(o *Orchestrator) {
		o.retriever = r
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithPublisher(p eventbus.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func NewOrchestrator(generator llm.Generator, reg *registry.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator: generator,
		registry:  reg,
		refiner:   NewRefiner(reg),
		validator: quality.NewValidator(reg),
		config:    DefaultConfig(),
		logger:    logger.With("module", "generation"),
		tracer:    otelhelper.Noop(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.config.MaxAttempts < 1 {
		o.config.MaxAttempts = 1
	}

	return o
}

// candidate is one scored attempt.
type candidate struct {
	attempt int
	draft   *models.Draft
	report  models.QualityReport
}

// Run generates a workflow for the input. Generation failures never surface as
// errors: when no attempt yields a draft the result carries a placeholder. The
// only error returned is the caller's context being cancelled or expiring.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*models.GenerationResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "generation.run",
		attribute.String(otelhelper.SessionIDKey, in.SessionID),
		attribute.String(otelhelper.TierKey, string(in.Tier)),
	)
	defer span.End()

	if in.Tier == "" {
		in.Tier = models.TierSimple
	}

	if in.Requirements == nil {
		in.Requirements = models.NewRequirementSet().Freeze()
	}

	started := time.Now()
	logger := o.logger.With("session_id", in.SessionID, "tier", in.Tier)

	logger.InfoContext(ctx, "Starting workflow generation", "max_attempts", o.config.MaxAttempts, "forced", in.Forced)
	o.publish(ctx, in.SessionID, events.GenerationStarted{
		BaseEvent:   events.NewBaseEvent(events.GenerationStartedEvent, in.SessionID),
		Tier:        string(in.Tier),
		MaxAttempts: o.config.MaxAttempts,
		Forced:      in.Forced,
	})

	fragments, err := o.retrieve(ctx, in)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	var (
		best     *candidate
		feedback []string
		attempts []models.Attempt
		lastErr  error
		accepted bool
	)

	for number := 1; number <= o.config.MaxAttempts; number++ {
		attemptStart := time.Now()

		c, err := o.attempt(ctx, in, number, fragments, feedback)
		if ctxErr := ctx.Err(); ctxErr != nil {
			otelhelper.SetError(span, ctxErr)

			return nil, ctxErr
		}

		record := models.Attempt{Number: number, Duration: time.Since(attemptStart)}
		completed := events.GenerationAttemptCompleted{
			BaseEvent: events.NewBaseEvent(events.GenerationAttemptCompletedEvent, in.SessionID),
			Attempt:   number,
			Duration:  record.Duration,
		}

		if err != nil {
			lastErr = err
			record.Error = err.Error()
			completed.Error = err.Error()

			logger.WarnContext(ctx, "Generation attempt failed", "attempt", number, "error", err)
			o.metrics.Attempt("failed")

			feedback = []string{"CRITICAL: The previous response was not a usable workflow (" + err.Error() + "). Return a single valid n8n workflow JSON object."}
		} else {
			record.Score = c.report.Total
			completed.Score = c.report.Total
			completed.NodeCount = len(c.draft.Nodes)

			o.metrics.Quality(c.report.Total)

			accepted = o.passes(c)

			// strictly greater: the earliest attempt wins ties
			if accepted || best == nil || c.report.Total > best.report.Total {
				best = c
			}

			switch {
			case accepted:
				logger.InfoContext(ctx, "Generation attempt accepted", "attempt", number, "score", c.report.Total)
				o.metrics.Attempt("accepted")
			case c.report.Total >= o.config.PassThreshold:
				logger.InfoContext(ctx, "Generation attempt below tier minimum",
					"attempt", number, "score", c.report.Total, "min_nodes", in.Tier.MinNodes())
				o.metrics.Attempt("rejected")

				feedback = append([]string{fmt.Sprintf(
					"CRITICAL: The workflow must contain at least %d functional nodes for the %s tier.",
					in.Tier.MinNodes(), in.Tier)}, Feedback(c.report)...)
			default:
				logger.InfoContext(ctx, "Generation attempt below threshold",
					"attempt", number, "score", c.report.Total, "threshold", o.config.PassThreshold)
				o.metrics.Attempt("rejected")

				feedback = Feedback(c.report)
			}
		}

		attempts = append(attempts, record)
		o.publish(ctx, in.SessionID, completed)

		if accepted {
			break
		}
	}

	result := &models.GenerationResult{Attempts: attempts}
	for _, f := range fragments {
		result.Fragments = append(result.Fragments, f.ID)
	}

	if best == nil {
		result.Draft = o.placeholder(in)
		result.Placeholder = true
		result.Report = o.validator.Score(result.Draft, in.Tier).WithFailure(
			fmt.Sprintf("All %d generation attempts failed: %v", len(attempts), lastErr))
	} else {
		result.Draft = best.draft
		result.Report = best.report
		result.Accepted = accepted
	}

	explanation, err := Explain(o.registry, in.Request, result)
	if err != nil {
		logger.WarnContext(ctx, "Failed to render explanation", "error", err)
	}

	result.Explanation = explanation

	span.SetAttributes(attribute.Int(otelhelper.ScoreKey, result.Report.Total))
	logger.InfoContext(ctx, "Workflow generation finished",
		"score", result.Report.Total,
		"grade", result.Report.Grade,
		"accepted", result.Accepted,
		"placeholder", result.Placeholder,
		"attempts", len(attempts))

	o.publish(ctx, in.SessionID, events.GenerationCompleted{
		BaseEvent:   events.NewBaseEvent(events.GenerationCompletedEvent, in.SessionID),
		Score:       result.Report.Total,
		Grade:       result.Report.Grade,
		Accepted:    result.Accepted,
		Placeholder: result.Placeholder,
		Attempts:    len(attempts),
		Duration:    time.Since(started),
	})

	return result, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, in Input) ([]*models.Fragment, error) {
	if o.retriever == nil {
		return nil, nil
	}

	var fragments []*models.Fragment

	err := o.stage(ctx, StageRetrieval, func(ctx context.Context) error {
		res, err := o.retriever.Retrieve(ctx, in.Requirements, o.config.TopK)
		if err != nil {
			return err
		}

		for _, c := range res.Candidates {
			fragments = append(fragments, c.Fragment)
		}

		return nil
	})

	return fragments, err
}

// attempt runs one pass: synthesis under the attempt timeout, the repair
// stages and scoring.
func (o *Orchestrator) attempt(ctx context.Context, in Input, number int, fragments []*models.Fragment, feedback []string) (*candidate, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "generation.attempt", attribute.Int(otelhelper.AttemptKey, number))
	defer span.End()

	if o.generator == nil {
		return nil, &GenerationError{Attempt: number, Err: ErrNoGenerator}
	}

	var draft *models.Draft

	err := o.stage(ctx, StageSynthesis, func(ctx context.Context) error {
		prompt, err := RenderPrompt(NewPromptData(in, o.registry.Summary(), fragments, feedback))
		if err != nil {
			return err
		}

		callCtx := ctx
		if o.config.AttemptTimeout > 0 {
			var cancel context.CancelFunc

			callCtx, cancel = context.WithTimeout(ctx, o.config.AttemptTimeout)
			defer cancel()
		}

		text, err := o.generator.Generate(callCtx, llm.Request{
			System: SystemPrompt,
			Prompt: prompt,
			Brief: &llm.Brief{
				Name:         in.Name,
				Requirements: in.Requirements,
				Tier:         in.Tier,
				Fragments:    fragments,
				Feedback:     feedback,
				Attempt:      number,
			},
		})
		if err != nil {
			return err
		}

		draft, err = n8n.DecodeDraft(text)

		return err
	})
	if err != nil {
		genErr := &GenerationError{Attempt: number, Err: err}
		otelhelper.SetError(span, genErr)

		return nil, genErr
	}

	if draft.Name == "" {
		draft.Name = in.Name
	}

	var problems int

	o.run(ctx, StageStructure, func() { o.refiner.Structure(draft) })
	o.run(ctx, StageParameters, func() { problems = len(o.refiner.Parameters(draft)) })
	o.run(ctx, StageCredentials, func() { o.refiner.Credentials(draft) })
	o.run(ctx, StageErrorHandling, func() {
		o.refiner.ErrorHandling(draft, in.Requirements.Bool(models.ReqNeedsErrorHandling))
	})
	o.run(ctx, StageDocumentation, func() { o.refiner.Documentation(draft, in.Tier) })
	o.run(ctx, StageConnectivity, func() { o.refiner.Connectivity(draft) })

	var report models.QualityReport

	o.run(ctx, StageQuality, func() { report = o.validator.Score(draft, in.Tier) })

	span.SetAttributes(
		attribute.Int(otelhelper.ScoreKey, report.Total),
		attribute.Int(otelhelper.NodeCountKey, len(draft.Nodes)),
	)
	o.logger.DebugContext(ctx, "Attempt scored",
		"attempt", number, "score", report.Total, "nodes", len(draft.Nodes), "parameter_problems", problems)

	return &candidate{attempt: number, draft: draft, report: report}, nil
}

// stage runs a fallible stage inside its own span and records its duration.
// passes is the quality gate. Standard and complex drafts must also reach
// their tier minimum; simple ones only need the score.
func (o *Orchestrator) passes(c *candidate) bool {
	return c.report.Total >= o.config.PassThreshold && quality.MeetsTierMinimum(c.report)
}

func (o *Orchestrator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "generation."+name, attribute.String(otelhelper.StageKey, name))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	o.metrics.Stage(name, time.Since(start))

	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (o *Orchestrator) run(ctx context.Context, name string, fn func()) {
	_ = o.stage(ctx, name, func(context.Context) error {
		fn()

		return nil
	})
}

// placeholder is the draft returned when every attempt failed: the requested
// trigger, a no-op and a note explaining what happened.
func (o *Orchestrator) placeholder(in Input) *models.Draft {
	name := in.Name
	if name == "" {
		name = "Generated Workflow"
	}

	triggerKind := registry.KindManualTrigger
	switch in.Requirements.String(models.ReqTriggerType) {
	case "webhook":
		triggerKind = registry.KindWebhook
	case "schedule":
		triggerKind = registry.KindSchedule
	}

	d := &models.Draft{Name: name, Settings: n8n.DefaultSettings()}

	trigger := o.registry.NewNode(triggerKind, "node-001", o.refiner.displayName(triggerKind))
	trigger.Position = &models.Position{X: 0, Y: rowY}

	noop := o.registry.NewNode(registry.KindNoOp, "node-002", "Replace With Workflow Steps")
	noop.Position = &models.Position{X: columnWidth, Y: rowY}

	note := o.registry.NewNode(registry.KindStickyNote, "node-003", "Note: Generation Failed")
	note.Position = &models.Position{X: -noteOffsetX, Y: rowY - noteOffsetY}
	note.Parameters["content"] = "## Generation Failed\n\nNo attempt produced a usable workflow. Add the steps for this request manually or try generating again."
	note.Parameters["height"] = noteHeight
	note.Parameters["width"] = noteWidth

	d.Nodes = []*models.Node{trigger, noop, note}
	d.Connect(trigger.ID, 0, noop.ID)

	o.refiner.Structure(d)

	return d
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, key, event); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
