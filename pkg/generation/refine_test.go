package generation

import (
	"strings"
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, name, kind string) *models.Node {
	return &models.Node{ID: id, Name: name, Kind: kind, Parameters: map[string]any{}}
}

func notes(d *models.Draft) []*models.Node {
	var out []*models.Node

	for _, n := range d.Nodes {
		if n.Kind == registry.KindStickyNote {
			out = append(out, n)
		}
	}

	return out
}

func TestRefiner_Structure(t *testing.T) {
	r := NewRefiner(registry.Default())

	d := &models.Draft{Nodes: []*models.Node{
		node("a", "Start", registry.KindManualTrigger),
		node("", "Step", registry.KindSet),
		node("a", "Step", registry.KindSet),
		node("node-001", "", registry.KindIf),
	}}
	d.Nodes[0].Position = &models.Position{X: 10, Y: 20}
	d.Nodes[0].TypeVersion = 2

	fixed := r.Structure(d)
	assert.Equal(t, 3, fixed)

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Generated Workflow", d.Name)
	assert.Equal(t, "v1", d.Settings["executionOrder"])

	assert.Equal(t, "a", d.Nodes[0].ID)
	assert.Equal(t, "node-002", d.Nodes[1].ID)
	assert.Equal(t, "node-003", d.Nodes[2].ID)
	assert.Equal(t, "node-001", d.Nodes[3].ID)

	assert.Equal(t, "Step", d.Nodes[1].Name)
	assert.Equal(t, "Step 2", d.Nodes[2].Name)
	assert.Equal(t, "IF", d.Nodes[3].Name)

	// existing positions and versions are kept
	assert.Equal(t, models.Position{X: 10, Y: 20}, *d.Nodes[0].Position)
	assert.InDelta(t, 2.0, d.Nodes[0].TypeVersion, 0)

	assert.Equal(t, models.Position{X: 500, Y: 300}, *d.Nodes[2].Position)
	assert.InDelta(t, 1.0, d.Nodes[2].TypeVersion, 0)

	require.NoError(t, d.Validate())
}

const branchingWithoutIDs = `{
  "name": "Lead intake",
  "nodes": [
    {"name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "lead"}},
    {"name": "Check", "type": "n8n-nodes-base.if", "parameters": {}},
    {"name": "Yes", "type": "n8n-nodes-base.set", "parameters": {}},
    {"name": "No", "type": "n8n-nodes-base.set", "parameters": {}}
  ],
  "connections": {
    "Webhook": {"main": [[{"node": "Check", "type": "main", "index": 0}]]},
    "Check": {"main": [
      [{"node": "Yes", "type": "main", "index": 0}],
      [{"node": "No", "type": "main", "index": 0}]
    ]}
  }
}`

func TestRefiner_StructureKeepsBranchesOfNodesWithoutIDs(t *testing.T) {
	r := NewRefiner(registry.Default())

	d, err := n8n.DecodeDraft(branchingWithoutIDs)
	require.NoError(t, err)

	r.Structure(d)

	dropped, reconnected, removed := r.Connectivity(d)
	assert.Zero(t, dropped)
	assert.Zero(t, reconnected)
	assert.Zero(t, removed)
	require.NoError(t, d.Validate())

	id := func(name string) string {
		for _, n := range d.Nodes {
			if n.Name == name {
				return n.ID
			}
		}

		t.Fatalf("no node named %q", name)

		return ""
	}

	require.Len(t, d.Connections, 3)
	assert.Contains(t, d.Connections, &models.Connection{Source: id("Webhook"), Target: id("Check"), TargetType: models.ConnectionTypeMain})
	assert.Contains(t, d.Connections, &models.Connection{Source: id("Check"), Target: id("Yes"), TargetType: models.ConnectionTypeMain})
	assert.Contains(t, d.Connections, &models.Connection{
		Source: id("Check"), SourceOutput: 1, Target: id("No"), TargetType: models.ConnectionTypeMain,
	})
}

func TestRefiner_StructureFollowsDuplicateIDsByName(t *testing.T) {
	r := NewRefiner(registry.Default())

	d, err := n8n.DecodeDraft(`{
  "name": "Duplicates",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger", "parameters": {}},
    {"id": "1", "name": "Shape", "type": "n8n-nodes-base.set", "parameters": {}},
    {"id": "2", "name": "Finish", "type": "n8n-nodes-base.set", "parameters": {}}
  ],
  "connections": {
    "Start": {"main": [[{"node": "Shape", "type": "main", "index": 0}]]},
    "Shape": {"main": [[{"node": "Finish", "type": "main", "index": 0}]]}
  }
}`)
	require.NoError(t, err)

	r.Structure(d)
	require.NoError(t, d.Validate())

	shape := d.Nodes[1]
	assert.NotEqual(t, "1", shape.ID)
	assert.Contains(t, d.Connections, &models.Connection{Source: "1", Target: shape.ID, TargetType: models.ConnectionTypeMain})
	assert.Contains(t, d.Connections, &models.Connection{Source: shape.ID, Target: "2", TargetType: models.ConnectionTypeMain})
}

func TestRefiner_Parameters(t *testing.T) {
	r := NewRefiner(registry.Default())

	d := &models.Draft{Nodes: []*models.Node{
		node("1", "Start", registry.KindManualTrigger),
		node("2", "Notify", "n8n-nodes-base.slack"),
	}}

	problems := r.Parameters(d)
	require.NotEmpty(t, problems)

	for _, p := range problems {
		assert.Equal(t, "2", p.NodeID)
	}

	// gaps are only reported
	assert.Empty(t, d.Nodes[1].Parameters)
}

func TestRefiner_Credentials(t *testing.T) {
	r := NewRefiner(registry.Default())

	existing := node("3", "Mail", "n8n-nodes-base.gmail")
	existing.Credentials = map[string]models.CredentialRef{"gmailOAuth2": {ID: "42", Name: "Work Gmail"}}

	d := &models.Draft{Nodes: []*models.Node{
		node("1", "Start", registry.KindManualTrigger),
		node("2", "Notify", "n8n-nodes-base.slack"),
		existing,
		node("4", "Shape", registry.KindSet),
	}}

	assert.Equal(t, 1, r.Credentials(d))

	assert.Equal(t, models.CredentialRef{ID: CredentialPlaceholder, Name: "Slack account"}, d.Nodes[1].Credentials["slackApi"])
	assert.Equal(t, "42", d.Nodes[2].Credentials["gmailOAuth2"].ID)
	assert.Empty(t, d.Nodes[3].Credentials)

	assert.Zero(t, r.Credentials(d))
}

func TestRefiner_ErrorHandling(t *testing.T) {
	build := func() *models.Draft {
		return &models.Draft{Nodes: []*models.Node{
			node("1", "Start", registry.KindWebhook),
			node("2", "Fetch", "n8n-nodes-base.httpRequest"),
			node("3", "Shape", registry.KindSet),
			node("4", "Notify", "n8n-nodes-base.slack"),
			node("5", "Mail", "n8n-nodes-base.gmail"),
			node("6", "Store", "n8n-nodes-base.postgres"),
		}}
	}

	r := NewRefiner(registry.Default())

	t.Run("half coverage in node order", func(t *testing.T) {
		d := build()

		assert.Equal(t, 2, r.ErrorHandling(d, false))
		assert.True(t, d.Nodes[1].HasErrorPolicy())
		assert.True(t, d.Nodes[3].HasErrorPolicy())
		assert.False(t, d.Nodes[4].HasErrorPolicy())
		assert.False(t, d.Nodes[5].HasErrorPolicy())
		assert.Nil(t, d.Nodes[2].ErrorPolicy)

		policy := d.Nodes[1].ErrorPolicy
		assert.True(t, policy.RetryOnFail)
		assert.Equal(t, 3, policy.MaxTries)
		assert.Equal(t, models.OnErrorContinue, policy.OnError)
	})

	t.Run("existing coverage counts", func(t *testing.T) {
		d := build()
		d.Nodes[5].ErrorPolicy = models.DefaultErrorPolicy()

		assert.Equal(t, 1, r.ErrorHandling(d, false))
		assert.True(t, d.Nodes[1].HasErrorPolicy())
		assert.False(t, d.Nodes[3].HasErrorPolicy())
	})

	t.Run("full coverage when required", func(t *testing.T) {
		d := build()

		assert.Equal(t, 4, r.ErrorHandling(d, true))

		for _, n := range d.Nodes {
			if registry.Default().IsCritical(n.Kind) {
				assert.True(t, n.HasErrorPolicy(), n.Name)
			}
		}
	})
}

func TestRefiner_Documentation(t *testing.T) {
	r := NewRefiner(registry.Default())

	d := &models.Draft{Nodes: []*models.Node{
		node("1", "Start", registry.KindWebhook),
		node("2", "Validate Input", registry.KindCode),
		node("3", "Route", registry.KindIf),
		node("4", "Shape", registry.KindSet),
		node("5", "Notify", "n8n-nodes-base.slack"),
	}}
	for i, n := range d.Nodes {
		n.Position = &models.Position{X: 250 * i, Y: 300}
	}

	added := r.Documentation(d, models.TierStandard)

	created := notes(d)
	require.Len(t, created, models.TierStandard.DocumentationTarget())
	assert.Equal(t, len(created), added)

	first := created[0]
	assert.Equal(t, "## Workflow Trigger\n\nInitiates the workflow execution", first.Parameters["content"])
	assert.Equal(t, models.Position{X: -200, Y: 150}, *first.Position)
	assert.Equal(t, 160, first.Parameters["height"])
	assert.Equal(t, 240, first.Parameters["width"])

	var titles []string
	for _, n := range created {
		content, _ := n.Parameters["content"].(string)
		titles = append(titles, strings.SplitN(strings.TrimPrefix(content, "## "), "\n", 2)[0])
	}

	assert.Equal(t, []string{
		"Workflow Trigger", "Validation", "Conditional Logic", "Data Processing", "Output Actions",
		"Step 1", "Step 2", "Steps 3-4",
	}, titles)

	require.NoError(t, d.Validate())
	assert.Zero(t, r.Documentation(d, models.TierStandard), "target already met")
}

func TestRefiner_DocumentationKeepsExistingNotes(t *testing.T) {
	r := NewRefiner(registry.Default())

	d := &models.Draft{Nodes: []*models.Node{node("1", "Start", registry.KindManualTrigger)}}
	for i := range 5 {
		d.Nodes = append(d.Nodes, node(string(rune('a'+i)), "Note "+string(rune('A'+i)), registry.KindStickyNote))
	}

	assert.Zero(t, r.Documentation(d, models.TierSimple))
}

func TestRefiner_Connectivity(t *testing.T) {
	r := NewRefiner(registry.Default())

	d := &models.Draft{Nodes: []*models.Node{
		node("orphan-first", "Lonely", registry.KindSet),
		node("t", "Start", registry.KindWebhook),
		node("a", "Shape", registry.KindSet),
		node("note", "Note", registry.KindStickyNote),
		node("b", "Fetch", "n8n-nodes-base.httpRequest"),
		node("c", "Notify", "n8n-nodes-base.slack"),
	}}
	d.Connect("t", 0, "a")
	d.Connect("a", 0, "missing:Ghost")
	d.Connect("ghost", 0, "a")

	dropped, reconnected, removed := r.Connectivity(d)

	assert.Equal(t, 2, dropped)
	assert.Equal(t, 2, reconnected)
	assert.Equal(t, 1, removed)

	assert.Nil(t, d.Node("orphan-first"))
	require.NoError(t, d.Validate())

	// b attaches to a, then c to b
	assert.Contains(t, d.Connections, &models.Connection{Source: "a", Target: "b", TargetType: models.ConnectionTypeMain})
	assert.Contains(t, d.Connections, &models.Connection{Source: "b", Target: "c", TargetType: models.ConnectionTypeMain})

	// the note stays unconnected
	inbound, outbound := d.Degree()
	assert.Zero(t, inbound["note"]+outbound["note"])
}
