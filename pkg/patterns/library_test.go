package patterns

import (
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_ContainsReusablePatterns(t *testing.T) {
	lib := Default()

	for _, id := range []string{
		"data_validation", "duplicate_check", "lead_scoring", "priority_routing", "error_retry",
		"batch_processing", "api_pagination", "email_template_selection", "webhook_auth", "audit_logging",
	} {
		frag, ok := lib.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, models.FragmentPattern, frag.Tier, id)
		assert.NotEmpty(t, frag.Nodes, id)
	}

	assert.NotEmpty(t, lib.ByTier(models.FragmentExpert))
}

func TestDefault_EveryNodeIsValid(t *testing.T) {
	reg := registry.Default()

	for _, frag := range Default().All() {
		draft := &models.Draft{Nodes: frag.Nodes, Connections: frag.Connections}
		require.NoError(t, draft.Validate(), frag.ID)

		for _, n := range frag.Nodes {
			assert.Empty(t, reg.ValidateNode(n), "%s/%s", frag.ID, n.ID)
		}
	}
}

func TestDefault_ComplexTierIsLarge(t *testing.T) {
	large := Default().ByTier(models.FragmentComplex)
	require.NotEmpty(t, large)

	for _, frag := range large {
		assert.GreaterOrEqual(t, frag.NodeCount(), 20, frag.ID)
	}
}

func TestCompose_ChainsPartsAndSkipsTriggers(t *testing.T) {
	frag, ok := Default().Get("complex_lead_pipeline")
	require.True(t, ok)

	var chained, intoTrigger bool

	for _, c := range frag.Connections {
		if c.Source == "webhook_intake.webhook" && c.Target == "webhook_auth.check_key" {
			chained = true
		}

		if c.Target == "error_retry.on_error" {
			intoTrigger = true
		}
	}

	assert.True(t, chained)
	assert.False(t, intoTrigger)

	require.Len(t, frag.Outputs, 1)
	assert.Equal(t, "error_retry.alert", frag.Outputs[0].NodeID)
	assert.Equal(t, "complex_lead_pipeline:final_status", frag.Outputs[0].ID)
}

func TestCompose_ClonesPartNodes(t *testing.T) {
	lib := Default()

	part, _ := lib.Get("webhook_intake")
	whole, _ := lib.Get("expert_lead_management")

	assert.Equal(t, "webhook", part.Nodes[0].ID)
	assert.Equal(t, "webhook_intake.webhook", whole.Nodes[0].ID)
	assert.NotSame(t, part.Nodes[0], whole.Nodes[0])
}

func TestLoad_Errors(t *testing.T) {
	reg := registry.Default()

	tests := []struct {
		name string
		doc  string
		err  error
	}{
		{
			name: "duplicate",
			doc: `
fragments:
  - {id: a, tier: pattern}
  - {id: a, tier: pattern}
`,
			err: ErrDuplicateFragment,
		},
		{
			name: "unknown tier",
			doc: `
fragments:
  - {id: a, tier: legendary}
`,
			err: ErrUnknownTier,
		},
		{
			name: "unknown kind",
			doc: `
fragments:
  - id: a
    tier: pattern
    nodes: [{id: x, name: X, kind: n8n-nodes-base.teleport}]
`,
			err: ErrUnknownKind,
		},
		{
			name: "dangling connection",
			doc: `
fragments:
  - id: a
    tier: pattern
    nodes: [{id: x, name: X, kind: n8n-nodes-base.noOp}]
    connections: [{source: x, target: y}]
`,
			err: ErrBadReference,
		},
		{
			name: "forward compose reference",
			doc: `
fragments:
  - {id: a, tier: expert, compose: [b]}
  - {id: b, tier: pattern}
`,
			err: ErrUnknownFragment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc), reg)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLibrary_FindByTags(t *testing.T) {
	hits := Default().FindByTags("dedup", "lead")

	require.NotEmpty(t, hits)
	assert.Equal(t, "duplicate_check", hits[0].ID)

	assert.Empty(t, Default().FindByTags("nothing-matches"))
}

func TestLibrary_ForRequest(t *testing.T) {
	hits := Default().ForRequest("prevent duplicate leads in my database", 3)

	require.NotEmpty(t, hits)
	assert.LessOrEqual(t, len(hits), 3)
	assert.Equal(t, "duplicate_check", hits[0].ID)

	for _, h := range hits {
		assert.Equal(t, models.FragmentPattern, h.Tier)
	}
}
