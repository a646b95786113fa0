package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/eventbus"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *recorder) Publish(_ context.Context, _ string, event eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.types = append(r.types, event.GetType())

	return nil
}

// chain renders a manual trigger followed by steps Set nodes.
func chain(t *testing.T, name string, steps int) string {
	t.Helper()

	d := &models.Draft{Name: name}
	d.Nodes = append(d.Nodes, &models.Node{ID: "t", Name: "Start", Kind: registry.KindManualTrigger, Parameters: map[string]any{}})

	prev := "t"
	for i := 1; i <= steps; i++ {
		id := fmt.Sprintf("s%d", i)
		d.Nodes = append(d.Nodes, &models.Node{ID: id, Name: fmt.Sprintf("Step %d", i), Kind: registry.KindSet, Parameters: map[string]any{}})
		d.Connect(prev, 0, id)
		prev = id
	}

	data, err := n8n.Marshal(d)
	require.NoError(t, err)

	return string(data)
}

// branched renders webhook -> if -> merge (both outputs) followed by steps Set nodes.
func branched(t *testing.T, name string, steps int) string {
	t.Helper()

	d := &models.Draft{Name: name}
	d.Nodes = append(d.Nodes,
		&models.Node{ID: "hook", Name: "Incoming", Kind: registry.KindWebhook, Parameters: map[string]any{}},
		&models.Node{ID: "check", Name: "Check", Kind: registry.KindIf, Parameters: map[string]any{"conditions": map[string]any{}}},
		&models.Node{ID: "join", Name: "Join", Kind: registry.KindMerge, Parameters: map[string]any{}},
	)
	d.Connect("hook", 0, "check")
	d.Connect("check", 0, "join")
	d.Connections = append(d.Connections, &models.Connection{
		Source: "check", SourceOutput: 1, Target: "join", TargetType: models.ConnectionTypeMain, TargetInput: 1,
	})

	prev := "join"
	for i := 1; i <= steps; i++ {
		id := fmt.Sprintf("s%d", i)
		d.Nodes = append(d.Nodes, &models.Node{ID: id, Name: fmt.Sprintf("Step %d", i), Kind: registry.KindSet, Parameters: map[string]any{}})
		d.Connect(prev, 0, id)
		prev = id
	}

	data, err := n8n.Marshal(d)
	require.NoError(t, err)

	return string(data)
}

func leadInput() Input {
	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "webhook")
	reqs.SetBool(models.ReqNeedsValidation, true)
	reqs.SetBool(models.ReqNeedsDedup, true)
	reqs.SetBool(models.ReqNeedsErrorHandling, true)
	reqs.SetList(models.ReqOutputs, []string{"slack", "crm"})
	reqs.SetList(models.ReqIntegrations, []string{"hubspot", "slack"})

	return Input{
		SessionID:    "session-1",
		Name:         "Lead Management",
		Request:      "Capture leads from a webhook, validate them, prevent duplicates, score them and sync to HubSpot with Slack alerts",
		Requirements: reqs.Freeze(),
		Tier:         models.TierComplex,
	}
}

func TestOrchestrator_AcceptsFirstPassingAttempt(t *testing.T) {
	reg := registry.Default()
	engine := retrieval.NewEngine(retrieval.NewMemorySearcher(retrieval.Corpus(patterns.Default(), reg)), log.Discard())
	rec := &recorder{}

	o := NewOrchestrator(llm.NewBlueprint(reg), reg, log.Discard(),
		WithRetriever(engine),
		WithMetrics(metrics.New()),
		WithPublisher(rec),
	)

	result, err := o.Run(t.Context(), leadInput())
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.False(t, result.Placeholder)
	require.Len(t, result.Attempts, 1)
	assert.GreaterOrEqual(t, result.Report.Total, 80)
	assert.Equal(t, result.Report.Total, result.Attempts[0].Score)
	assert.NotEmpty(t, result.Fragments)

	d := result.Draft
	require.NoError(t, d.Validate())
	assert.GreaterOrEqual(t, len(d.Nodes)-len(notes(d)), models.TierComplex.MinNodes())
	assert.GreaterOrEqual(t, len(notes(d)), models.TierComplex.DocumentationTarget())

	// needs_error_handling asks for every critical node to be covered
	for _, n := range d.Nodes {
		if reg.IsCritical(n.Kind) {
			assert.True(t, n.HasErrorPolicy(), n.Name)
		}
	}

	assert.Contains(t, result.Explanation, "# Lead Management")
	assert.Contains(t, result.Explanation, "## Workflow Trigger")

	assert.Equal(t, []events.EventType{
		events.GenerationStartedEvent,
		events.GenerationAttemptCompletedEvent,
		events.GenerationCompletedEvent,
	}, rec.types)
}

func TestOrchestrator_RetriesWithFeedback(t *testing.T) {
	reg := registry.Default()
	blueprint := llm.NewBlueprint(reg)

	var prompts []string

	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		prompts = append(prompts, req.Prompt)

		if req.Brief.Attempt == 1 {
			return chain(t, "too small", 1), nil
		}

		return blueprint.Generate(ctx, req)
	})

	o := NewOrchestrator(gen, reg, log.Discard())

	result, err := o.Run(t.Context(), Input{
		Name:         "Standard Flow",
		Requirements: models.NewRequirementSet().Freeze(),
		Tier:         models.TierStandard,
	})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 2)
	assert.Less(t, result.Attempts[0].Score, 80)
	assert.True(t, result.Accepted)
	assert.Equal(t, "Standard Flow", result.Draft.Name)

	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], FeedbackHeading)
	assert.Contains(t, prompts[1], FeedbackHeading)
	assert.Contains(t, prompts[1], "  - CRITICAL: Node count 2 is below the standard tier minimum of 25")
}

func TestOrchestrator_HighScoreBelowTierMinimumIsRetried(t *testing.T) {
	var prompts []string

	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		prompts = append(prompts, req.Prompt)

		if req.Brief.Attempt == 1 {
			// 20 functional nodes against a standard minimum of 25
			return branched(t, "short", 17), nil
		}

		return branched(t, "full", 22), nil
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard())

	result, err := o.Run(t.Context(), Input{Requirements: models.NewRequirementSet().Freeze(), Tier: models.TierStandard})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 2)
	assert.GreaterOrEqual(t, result.Attempts[0].Score, 80)
	assert.Greater(t, result.Attempts[1].Score, result.Attempts[0].Score)

	assert.True(t, result.Accepted)
	assert.True(t, result.Report.Passed)
	assert.Equal(t, "full", result.Draft.Name)
	assert.GreaterOrEqual(t, len(result.Draft.Nodes)-len(notes(result.Draft)), models.TierStandard.MinNodes())

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "CRITICAL: The workflow must contain at least 25 functional nodes for the standard tier.")
}

func TestOrchestrator_AcceptedAttemptBeatsHigherScoringShortOne(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.Brief.Attempt == 1 {
			return branched(t, "short", 17), nil
		}

		// long enough, but without branching or merging
		return chain(t, "plain", 30), nil
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard())

	result, err := o.Run(t.Context(), Input{Requirements: models.NewRequirementSet().Freeze(), Tier: models.TierStandard})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 2)
	assert.Greater(t, result.Attempts[0].Score, result.Attempts[1].Score)

	assert.True(t, result.Accepted)
	assert.Equal(t, "plain", result.Draft.Name)
	assert.Equal(t, result.Attempts[1].Score, result.Report.Total)
}

func TestOrchestrator_KeepsEarliestBestAttempt(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		name := fmt.Sprintf("attempt-%d", req.Brief.Attempt)
		if req.Brief.Attempt == 2 {
			return chain(t, name, 1), nil
		}

		return chain(t, name, 3), nil
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard())

	result, err := o.Run(t.Context(), Input{Tier: models.TierSimple})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 3)
	assert.False(t, result.Accepted)
	assert.False(t, result.Placeholder)

	assert.Equal(t, result.Attempts[0].Score, result.Attempts[2].Score)
	assert.Greater(t, result.Attempts[0].Score, result.Attempts[1].Score)
	assert.Equal(t, "attempt-1", result.Draft.Name)
	assert.Equal(t, result.Attempts[0].Score, result.Report.Total)

	assert.Contains(t, result.Explanation, "Issues to review")
}

func TestOrchestrator_AllAttemptsFail(t *testing.T) {
	calls := 0
	gen := llm.GeneratorFunc(func(context.Context, llm.Request) (string, error) {
		calls++

		return "", errors.New("model offline")
	})

	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "webhook")

	o := NewOrchestrator(gen, registry.Default(), log.Discard())

	result, err := o.Run(t.Context(), Input{Name: "Broken", Requirements: reqs.Freeze(), Tier: models.TierStandard})
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.True(t, result.Placeholder)
	assert.False(t, result.Accepted)
	require.Len(t, result.Attempts, 3)

	for _, a := range result.Attempts {
		assert.Contains(t, a.Error, "model offline")
	}

	d := result.Draft
	require.NoError(t, d.Validate())
	require.Len(t, d.Nodes, 3)
	assert.Equal(t, registry.KindWebhook, d.Nodes[0].Kind)
	assert.Equal(t, registry.KindNoOp, d.Nodes[1].Kind)
	assert.Equal(t, registry.KindStickyNote, d.Nodes[2].Kind)
	assert.Len(t, d.Connections, 1)

	require.NotEmpty(t, result.Report.Deficiencies)
	first := result.Report.Deficiencies[0]
	assert.Equal(t, models.ScoreGeneration, first.Category)
	assert.Equal(t, models.SeverityCritical, first.Severity)
	assert.Contains(t, first.Message, "All 3 generation attempts failed")

	assert.Contains(t, result.Explanation, "Generation failed")
}

func TestOrchestrator_UnusableOutputConsumesAttempt(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (string, error) {
		if req.Brief.Attempt == 1 {
			return "Sorry, I can only describe the workflow in prose.", nil
		}

		return "```json\n" + chain(t, "fenced", 3) + "\n```", nil
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard(), WithConfig(Config{MaxAttempts: 2, PassThreshold: 80}))

	result, err := o.Run(t.Context(), Input{Tier: models.TierSimple})
	require.NoError(t, err)

	require.Len(t, result.Attempts, 2)
	assert.Contains(t, result.Attempts[0].Error, n8n.ErrNoJSON.Error())
	assert.Empty(t, result.Attempts[1].Error)
	assert.Equal(t, "fenced", result.Draft.Name)
}

func TestOrchestrator_AttemptTimeout(t *testing.T) {
	gen := llm.GeneratorFunc(func(ctx context.Context, _ llm.Request) (string, error) {
		<-ctx.Done()

		return "", ctx.Err()
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard(), WithConfig(Config{
		MaxAttempts:    2,
		PassThreshold:  80,
		AttemptTimeout: 10 * time.Millisecond,
	}))

	result, err := o.Run(t.Context(), Input{Tier: models.TierSimple})
	require.NoError(t, err)

	assert.True(t, result.Placeholder)
	require.Len(t, result.Attempts, 2)
	assert.Contains(t, result.Attempts[0].Error, context.DeadlineExceeded.Error())
}

func TestOrchestrator_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	gen := llm.GeneratorFunc(func(ctx context.Context, _ llm.Request) (string, error) {
		cancel()

		return "", ctx.Err()
	})

	o := NewOrchestrator(gen, registry.Default(), log.Discard())

	result, err := o.Run(ctx, Input{Tier: models.TierSimple})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestOrchestrator_NoGenerator(t *testing.T) {
	o := NewOrchestrator(nil, registry.Default(), log.Discard(), WithConfig(Config{MaxAttempts: 1, PassThreshold: 80}))

	result, err := o.Run(t.Context(), Input{Tier: models.TierSimple})
	require.NoError(t, err)

	assert.True(t, result.Placeholder)
	assert.Contains(t, result.Attempts[0].Error, ErrNoGenerator.Error())
}

func TestGenerationError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &GenerationError{Attempt: 2, Err: context.DeadlineExceeded})

	assert.True(t, IsGenerationError(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "wrapped: generation attempt 2: context deadline exceeded", err.Error())
	assert.False(t, IsGenerationError(errors.New("plain")))
}

func TestExplain_Sections(t *testing.T) {
	reg := registry.Default()

	result, err := NewOrchestrator(llm.NewBlueprint(reg), reg, log.Discard()).Run(t.Context(), Input{
		Name:    "Daily Digest",
		Request: "send a digest",
		Tier:    models.TierSimple,
	})
	require.NoError(t, err)

	text, err := Explain(reg, "send a digest", result)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "# Daily Digest\n\nsend a digest"))
	assert.Contains(t, text, "## Workflow Trigger\n\n- **Manual Trigger**")
	assert.Contains(t, text, "## Merge Results")
	assert.NotContains(t, text, "Issues to review")
}
