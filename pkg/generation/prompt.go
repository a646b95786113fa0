package generation

import (
	"fmt"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/template"
)

// SystemPrompt frames every synthesis call.
const SystemPrompt = `ROLE: You are an expert n8n workflow architect with years of experience building production-ready automation workflows.

CONTEXT: You are generating a workflow for n8n that MUST be production-ready. Users should be able to import it and use it immediately after adding their credentials.

Return ONLY valid JSON matching the n8n workflow schema. No explanations, no markdown.`

// FeedbackHeading introduces the deficiencies of the previous attempt.
const FeedbackHeading = "PREVIOUS ATTEMPT FEEDBACK (MUST FIX):"

var promptTemplate = template.Must("generation-prompt", `TASK: Generate a complete n8n workflow for: {{.Request}}

COMPLEXITY LEVEL: {{.Tier}}
REQUIRED NODE COUNT: {{.MinNodes}}
REQUIRED INTEGRATIONS: {{default "appropriate services" (join .Integrations ", ")}}

REQUIREMENTS:
{{bullets .Requirements}}
{{- if .Context}}

CONVERSATION CONTEXT:
{{indent 2 .Context}}
{{- end}}

CRITICAL REQUIREMENTS:

1. NODE COUNT: generate at least {{.MinNodes}} functional nodes. Sticky notes do not count.
2. EVERY NODE MUST HAVE: a unique "id", a unique descriptive "name", a valid "type", "typeVersion", "position" as [x, y] and a non-empty "parameters" object.
3. ERROR HANDLING: {{.ErrorCoverage}} of the API and service nodes MUST set "onError": "continueRegularOutput", "retryOnFail": true and "maxTries": 3.
4. CREDENTIALS: every service node needs {"credentials": {"<credentialType>": {"id": "{{.CredentialID}}", "name": "<Service> account"}}}.
5. FLOW ORCHESTRATION: include IF or Switch nodes for conditional logic, Merge nodes for parallel branches and Set or Code nodes for data transformation.
6. DOCUMENTATION: add at least {{.NoteTarget}} sticky notes (type "n8n-nodes-base.stickyNote") next to the node groups they describe.
7. CONNECTIONS: connect every node through the "connections" object keyed by source node name; no orphaned nodes.
8. PARAMETERS: realistic values, no placeholders like "YOUR_VALUE_HERE".

AVAILABLE NODE TYPES:
{{.Catalog}}
{{- if .Fragments}}

REFERENCE WORKFLOWS TO FOLLOW:
{{range .Fragments}}
{{.Rank}}. {{.Name}} ({{.Tier}}, {{.NodeCount}} nodes): {{.Description}}
   Nodes: {{join .Nodes ", "}}
{{- end}}
{{- end}}

QUALITY REQUIREMENTS FOR {{upper .Tier}}:
  min_nodes: {{.MinNodes}}
  sticky_notes: {{.NoteTarget}}
  requires_branching: true

OUTPUT FORMAT:
{"name": "...", "nodes": [...], "connections": {...}, "active": false, "settings": {"executionOrder": "v1"}}

VALIDATION CHECKLIST (must pass before output):
  - Node count >= {{.MinNodes}}
  - No empty parameters objects
  - Credentials present on service nodes
  - Error handling on {{.ErrorCoverage}} of service nodes
  - At least {{.NoteTarget}} sticky notes
  - All nodes connected
{{- if .Feedback}}

`+FeedbackHeading+`
{{bullets .Feedback}}

CRITICAL: Address ALL feedback points above in this generation.
{{- end}}
`)

// PromptData is everything the synthesis prompt is rendered from.
type PromptData struct {
	Request       string
	Context       string
	Tier          string
	MinNodes      int
	NoteTarget    int
	ErrorCoverage string
	CredentialID  string
	Integrations  []string
	Requirements  []string
	Catalog       string
	Fragments     []FragmentSummary
	Feedback      []string
}

// FragmentSummary is the prompt view of a retrieved fragment.
type FragmentSummary struct {
	Rank        int
	Name        string
	Tier        string
	NodeCount   int
	Description string
	Nodes       []string
}

// NewPromptData collects the prompt inputs of one attempt.
func NewPromptData(in Input, catalog string, fragments []*models.Fragment, feedback []string) PromptData {
	coverage := "at least 50%"
	if in.Requirements.Bool(models.ReqNeedsErrorHandling) {
		coverage = "ALL"
	}

	request := strings.TrimSpace(in.Request)
	if request == "" {
		request = in.Name
	}

	data := PromptData{
		Request:       request,
		Context:       strings.TrimSpace(in.Context),
		Tier:          string(in.Tier),
		MinNodes:      in.Tier.MinNodes(),
		NoteTarget:    in.Tier.DocumentationTarget(),
		ErrorCoverage: coverage,
		CredentialID:  CredentialPlaceholder,
		Integrations:  in.Requirements.List(models.ReqIntegrations),
		Requirements:  requirementLines(in.Requirements),
		Catalog:       strings.TrimRight(catalog, "\n"),
		Feedback:      feedback,
	}

	for i, f := range fragments {
		nodes := make([]string, 0, len(f.Nodes))
		for _, n := range f.Nodes {
			nodes = append(nodes, fmt.Sprintf("%s [%s]", n.Name, n.Kind))
		}

		data.Fragments = append(data.Fragments, FragmentSummary{
			Rank:        i + 1,
			Name:        f.Name,
			Tier:        string(f.Tier),
			NodeCount:   f.NodeCount(),
			Description: f.Description,
			Nodes:       nodes,
		})
	}

	return data
}

func requirementLines(reqs *models.RequirementSet) []string {
	var lines []string

	for _, k := range reqs.Keys() {
		if strings.HasPrefix(k, "answer.") {
			continue
		}

		if v := reqs.String(k); v != "" {
			lines = append(lines, k+": "+v)
		}
	}

	return lines
}

// RenderPrompt renders the user prompt of one attempt.
func RenderPrompt(data PromptData) (string, error) {
	return template.Execute(promptTemplate, data)
}

// Feedback turns a report's deficiencies into prompt lines for the next attempt.
func Feedback(report models.QualityReport) []string {
	lines := make([]string, 0, len(report.Deficiencies))

	for _, d := range report.Deficiencies {
		lines = append(lines, strings.ToUpper(string(d.Severity))+": "+d.Message)
	}

	return lines
}
