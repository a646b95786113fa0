package generation

import (
	"strings"
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPrompt(t *testing.T) {
	slack, ok := patterns.Default().Get("slack_notify")
	require.True(t, ok)

	in := leadInput()
	in.Context = "Q: How should errors be handled?\nA: Retry and alert"

	prompt, err := RenderPrompt(NewPromptData(in, registry.Default().Summary(), []*models.Fragment{slack}, nil))
	require.NoError(t, err)

	assert.Contains(t, prompt, "TASK: Generate a complete n8n workflow for: Capture leads")
	assert.Contains(t, prompt, "COMPLEXITY LEVEL: complex")
	assert.Contains(t, prompt, "REQUIRED NODE COUNT: 35")
	assert.Contains(t, prompt, "REQUIRED INTEGRATIONS: hubspot, slack")
	assert.Contains(t, prompt, "  - needs_dedup: true\n")
	assert.Contains(t, prompt, "  Q: How should errors be handled?\n  A: Retry and alert")
	assert.Contains(t, prompt, `"id": "{{CREDENTIAL_ID}}"`)
	assert.Contains(t, prompt, "3. ERROR HANDLING: ALL of the API")
	assert.Contains(t, prompt, "at least 12 sticky notes")
	assert.Contains(t, prompt, "- n8n-nodes-base.slack (action)")
	assert.Contains(t, prompt, "1. Slack Notification (pattern, 1 nodes)")
	assert.Contains(t, prompt, "QUALITY REQUIREMENTS FOR COMPLEX:")
	assert.NotContains(t, prompt, FeedbackHeading)
	assert.NotContains(t, prompt, "<no value>")
}

func TestRenderPrompt_Feedback(t *testing.T) {
	report := models.QualityReport{Deficiencies: []models.Deficiency{
		{Severity: models.SeverityCritical, Category: models.ScoreNodeCount, Message: "Node count 4 is below the simple tier minimum of 15"},
		{Severity: models.SeverityWarning, Category: models.ScoreDocumentation, Message: "Documentation has 3 sticky notes, the simple tier target is 5"},
	}}

	in := Input{Name: "Fallback Name", Tier: models.TierSimple}

	prompt, err := RenderPrompt(NewPromptData(in, "", nil, Feedback(report)))
	require.NoError(t, err)

	assert.Contains(t, prompt, "for: Fallback Name")
	assert.Contains(t, prompt, "REQUIRED INTEGRATIONS: appropriate services")
	assert.Contains(t, prompt, "3. ERROR HANDLING: at least 50% of the API")
	assert.NotContains(t, prompt, "REFERENCE WORKFLOWS")
	assert.NotContains(t, prompt, "CONVERSATION CONTEXT")

	idx := strings.Index(prompt, FeedbackHeading)
	require.Positive(t, idx)
	assert.Contains(t, prompt[idx:], "\n  - CRITICAL: Node count 4 is below the simple tier minimum of 15\n  - WARNING: Documentation has 3 sticky notes")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "CRITICAL: Address ALL feedback points above in this generation."))
}

func TestFeedback_Empty(t *testing.T) {
	assert.Empty(t, Feedback(models.QualityReport{}))
}
