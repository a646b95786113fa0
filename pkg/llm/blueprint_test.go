package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countKind(d *models.Draft, kind string) int {
	count := 0

	for _, n := range d.Nodes {
		if n.Kind == kind {
			count++
		}
	}

	return count
}

func n8nJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	return string(data)
}

func assertWellFormed(t *testing.T, d *models.Draft) {
	t.Helper()

	require.NoError(t, d.Validate())

	names := map[string]bool{}
	for _, n := range d.Nodes {
		assert.False(t, names[n.Name], "duplicate name %q", n.Name)
		names[n.Name] = true

		assert.NotNil(t, n.Position)
	}
}

func TestBlueprint_DailyEmail(t *testing.T) {
	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "schedule")
	reqs.SetString(models.ReqScheduleCron, "0 8 * * *")
	reqs.SetList(models.ReqOutputs, []string{"email"})

	bp := NewBlueprint(registry.Default())

	out, err := bp.Generate(t.Context(), Request{Brief: &Brief{
		Name:         "Daily Email",
		Requirements: reqs.Freeze(),
		Tier:         models.TierSimple,
	}})
	require.NoError(t, err)

	d, err := n8n.DecodeDraft(out)
	require.NoError(t, err)
	assertWellFormed(t, d)

	assert.Equal(t, "Daily Email", d.Name)
	assert.Equal(t, 1, countKind(d, registry.KindSchedule))
	assert.Equal(t, 1, countKind(d, "n8n-nodes-base.gmail"))
	assert.GreaterOrEqual(t, len(d.Nodes), models.TierSimple.MinNodes())

	trigger := d.Nodes[0]
	assert.Equal(t, registry.KindSchedule, trigger.Kind)
	assert.Contains(t, n8nJSON(t, trigger.Parameters), "0 8 * * *")

	assert.Empty(t, registry.Default().ValidateDraft(d))
}

func TestBlueprint_UsesCompositeOnce(t *testing.T) {
	lib := patterns.Default()

	expert, ok := lib.Get("expert_lead_management")
	require.True(t, ok)

	dedup, _ := lib.Get("duplicate_check")
	scoring, _ := lib.Get("email_template_selection")
	pipeline, _ := lib.Get("complex_lead_pipeline")

	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "webhook")
	reqs.SetList(models.ReqOutputs, []string{"slack", "crm"})

	d := NewBlueprint(registry.Default()).Build(&Brief{
		Requirements: reqs.Freeze(),
		Tier:         models.TierComplex,
		Fragments:    []*models.Fragment{expert, pipeline, dedup, scoring},
	})

	assertWellFormed(t, d)

	assert.GreaterOrEqual(t, len(d.Nodes), models.TierComplex.MinNodes())
	// fragment webhooks are replaced by the draft's own trigger
	assert.Equal(t, 1, countKind(d, registry.KindWebhook))
	// slack and hubspot come from the composite, no extra output nodes
	assert.Equal(t, 1, countKind(d, "n8n-nodes-base.hubspot"))
	// the second composite is skipped, its error island never appears
	assert.Zero(t, countKind(d, registry.KindErrorTrigger))
	// duplicate_check is part of the composite, email_template_selection is not
	assert.NotNil(t, d.NodeByName("Select Template"))

	inbound, outbound := d.Degree()
	for _, n := range d.Nodes[1:] {
		assert.Positive(t, inbound[n.ID]+outbound[n.ID], "node %s is disconnected", n.Name)
	}
}

func TestBlueprint_KeepsErrorIslandApart(t *testing.T) {
	pipeline, ok := patterns.Default().Get("complex_lead_pipeline")
	require.True(t, ok)

	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "webhook")

	d := NewBlueprint(registry.Default()).Build(&Brief{
		Requirements: reqs.Freeze(),
		Tier:         models.TierComplex,
		Fragments:    []*models.Fragment{pipeline},
	})

	assertWellFormed(t, d)
	require.Equal(t, 1, countKind(d, registry.KindErrorTrigger))

	var errorTrigger string

	for _, n := range d.Nodes {
		if n.Kind == registry.KindErrorTrigger {
			errorTrigger = n.ID
		}
	}

	for _, c := range d.Connections {
		assert.NotEqual(t, errorTrigger, c.Target)
	}

	// padding continues from the main path, never from the alert node
	last := d.Nodes[len(d.Nodes)-1]
	for _, c := range d.Connections {
		if c.Target == last.ID {
			source := d.Node(c.Source)
			require.NotNil(t, source)
			assert.NotContains(t, source.Name, "Alert")
		}
	}
}

func TestBlueprint_FlowShape(t *testing.T) {
	d := NewBlueprint(registry.Default()).Build(&Brief{
		Requirements: models.NewRequirementSet().Freeze(),
		Tier:         models.TierStandard,
	})

	assertWellFormed(t, d)
	assert.Equal(t, registry.KindManualTrigger, d.Nodes[0].Kind)
	assert.Equal(t, 1, countKind(d, registry.KindIf))
	assert.Equal(t, 1, countKind(d, registry.KindMerge))
	assert.Len(t, d.Nodes, models.TierStandard.MinNodes())
}

func TestBlueprint_Deterministic(t *testing.T) {
	brief := &Brief{
		Requirements: models.NewRequirementSet().Freeze(),
		Tier:         models.TierStandard,
		Fragments:    patterns.Default().ByTier(models.FragmentPattern)[:3],
	}

	bp := NewBlueprint(registry.Default())

	first, err := bp.Generate(t.Context(), Request{Brief: brief})
	require.NoError(t, err)

	second, err := bp.Generate(t.Context(), Request{Brief: brief})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBlueprint_Errors(t *testing.T) {
	bp := NewBlueprint(registry.Default())

	_, err := bp.Generate(t.Context(), Request{Prompt: "no brief"})
	require.ErrorIs(t, err, ErrMissingBrief)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err = bp.Generate(ctx, Request{Brief: &Brief{Tier: models.TierSimple}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGeneratorFunc(t *testing.T) {
	var g Generator = GeneratorFunc(func(_ context.Context, req Request) (string, error) {
		return req.Prompt, nil
	})

	out, err := g.Generate(t.Context(), Request{Prompt: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "echo", out)
}
