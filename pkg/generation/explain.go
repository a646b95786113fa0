package generation

import (
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/quality"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/template"
)

var explanationTemplate = template.Must("explanation", `# {{.Name}}
{{- if .Request}}

{{.Request}}
{{- end}}

**Quality:** {{.Total}}/100 (grade {{.Grade}}, {{.Tier}} tier){{if .Placeholder}}. Generation failed; this is a placeholder to start from.{{else if not .Accepted}}. Below the acceptance threshold; review before use.{{end}}

**Nodes:** {{.NodeCount}} functional, {{.NoteCount}} sticky notes.
{{range .Sections}}
## {{.Title}}
{{range .Nodes}}
- **{{.Name}}** ({{.Kind}})
{{- end}}
{{end}}
{{- if .Credentials}}
## Credentials to configure
{{range .Credentials}}
- {{.}}
{{- end}}
{{end}}
{{- if .Deficiencies}}
## Issues to review
{{range .Deficiencies}}
- {{.Severity}}: {{.Message}}
{{- end}}
{{end}}`)

type explanationData struct {
	Name         string
	Request      string
	Total        int
	Grade        string
	Tier         models.Tier
	Accepted     bool
	Placeholder  bool
	NodeCount    int
	NoteCount    int
	Sections     []explainedSection
	Credentials  []string
	Deficiencies []models.Deficiency
}

type explainedSection struct {
	Title string
	Nodes []*models.Node
}

// Explain renders a markdown overview of a result: the nodes by section, the
// credentials to fill in and, below the pass threshold, the deficiencies.
func Explain(reg *registry.Registry, request string, result *models.GenerationResult) (string, error) {
	d := result.Draft

	data := explanationData{
		Name:        d.Name,
		Request:     request,
		Total:       result.Report.Total,
		Grade:       result.Report.Grade,
		Tier:        result.Report.Tier,
		Accepted:    result.Accepted,
		Placeholder: result.Placeholder,
	}

	grouped := map[string][]*models.Node{}
	seenCreds := map[string]bool{}

	for _, n := range d.Nodes {
		section, ok := SectionOf(reg, n)
		if !ok {
			data.NoteCount++

			continue
		}

		data.NodeCount++
		grouped[section.Key] = append(grouped[section.Key], n)

		for _, c := range n.Credentials {
			if !seenCreds[c.Name] {
				seenCreds[c.Name] = true
				data.Credentials = append(data.Credentials, c.Name)
			}
		}
	}

	for _, s := range sectionOrder {
		if nodes := grouped[s.Key]; len(nodes) > 0 {
			data.Sections = append(data.Sections, explainedSection{Title: s.Title, Nodes: nodes})
		}
	}

	if result.Report.Total < quality.PassThreshold || result.Placeholder {
		data.Deficiencies = result.Report.Deficiencies
	}

	return template.Execute(explanationTemplate, data)
}
