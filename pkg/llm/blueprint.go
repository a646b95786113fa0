package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

// Blueprint is an offline Generator. It assembles the workflow from the
// retrieved fragments and the requirement set instead of calling a model, so
// the same brief always yields the same document.
type Blueprint struct {
	reg *registry.Registry
}

func NewBlueprint(reg *registry.Registry) *Blueprint {
	return &Blueprint{reg: reg}
}

func (b *Blueprint) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if req.Brief == nil {
		return "", ErrMissingBrief
	}

	data, err := n8n.Marshal(b.Build(req.Brief))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

var triggerKinds = map[string]string{
	"webhook":  registry.KindWebhook,
	"schedule": registry.KindSchedule,
	"form":     "n8n-nodes-base.formTrigger",
	"email":    "n8n-nodes-base.emailReadImap",
	"manual":   registry.KindManualTrigger,
}

var outputKinds = map[string]string{
	"slack":    "n8n-nodes-base.slack",
	"teams":    "n8n-nodes-base.microsoftTeams",
	"sheets":   "n8n-nodes-base.googleSheets",
	"airtable": "n8n-nodes-base.airtable",
	"crm":      "n8n-nodes-base.hubspot",
	"sms":      "n8n-nodes-base.httpRequest",
	"api":      "n8n-nodes-base.httpRequest",
}

var emailKinds = map[string]string{
	"gmail": "n8n-nodes-base.gmail",
	"smtp":  "n8n-nodes-base.emailSend",
}

var databaseKinds = map[string]string{
	"postgres": "n8n-nodes-base.postgres",
	"mysql":    "n8n-nodes-base.mySql",
	"mongodb":  "n8n-nodes-base.mongoDb",
}

// paddingSteps are transform steps used to reach the tier size.
var paddingSteps = []string{
	"Normalize Fields",
	"Add Processing Metadata",
	"Map Output Fields",
	"Format Summary",
	"Record Run Statistics",
	"Prepare Response",
}

// Build assembles a draft: trigger, the best composite, the remaining
// patterns, requested outputs, flow shape and padding up to the tier size.
func (b *Blueprint) Build(brief *Brief) *models.Draft {
	name := brief.Name
	if name == "" {
		name = "Generated Workflow"
	}

	w := &assembly{reg: b.reg, draft: &models.Draft{Name: name}, names: map[string]bool{}}
	reqs := brief.Requirements

	w.tail = w.add(b.trigger(reqs))

	included := map[string]bool{}

	var patterns, snippets []*models.Fragment

	for _, f := range brief.Fragments {
		switch f.Tier {
		case models.FragmentExpert, models.FragmentComplex:
			if len(included) > 0 {
				continue
			}

			included[f.ID] = true

			for _, n := range f.Nodes {
				if part, _, ok := strings.Cut(n.ID, "."); ok {
					included[part] = true
				}
			}

			w.fragment(f)
		case models.FragmentPattern:
			patterns = append(patterns, f)
		case models.FragmentSnippet:
			snippets = append(snippets, f)
		}
	}

	for _, f := range patterns {
		if included[f.ID] {
			continue
		}

		included[f.ID] = true
		w.fragment(f)
	}

	b.outputs(w, reqs)
	w.shape()

	for _, f := range snippets {
		if w.functional() >= brief.Tier.MinNodes() {
			break
		}

		if len(f.Nodes) != 1 || w.hasKind(f.Nodes[0].Kind) || b.reg.IsTrigger(f.Nodes[0].Kind) || b.reg.IsAnnotation(f.Nodes[0].Kind) {
			continue
		}

		w.chain(f.Nodes[0].Clone())
	}

	for i := 0; w.functional() < brief.Tier.MinNodes(); i++ {
		step := paddingSteps[i%len(paddingSteps)]
		if i >= len(paddingSteps) {
			step = fmt.Sprintf("%s %d", step, i/len(paddingSteps)+1)
		}

		w.chain(b.reg.NewNode(registry.KindSet, "", step))
	}

	return w.draft
}

func (b *Blueprint) trigger(reqs *models.RequirementSet) *models.Node {
	kind, ok := triggerKinds[reqs.String(models.ReqTriggerType)]
	if !ok {
		kind = registry.KindManualTrigger
	}

	name := "Start"
	if spec, ok := b.reg.Get(kind); ok {
		name = spec.DisplayName
	}

	node := b.reg.NewNode(kind, "", name)

	if kind == registry.KindSchedule && reqs.String(models.ReqScheduleCron) != "" {
		node.Parameters["rule"] = map[string]any{
			"interval": []any{map[string]any{
				"field":      "cronExpression",
				"expression": reqs.String(models.ReqScheduleCron),
			}},
		}
	}

	return node
}

// outputs fans out from the current tail to one node per requested
// destination the draft does not already write to.
func (b *Blueprint) outputs(w *assembly, reqs *models.RequirementSet) {
	for _, out := range reqs.List(models.ReqOutputs) {
		kind := b.outputKind(out, reqs)
		if kind == "" || w.hasKind(kind) {
			continue
		}

		spec, ok := b.reg.Get(kind)
		if !ok {
			continue
		}

		id := w.add(b.reg.NewNode(kind, "", "Send to "+spec.DisplayName))
		w.draft.Connect(w.tail, 0, id)
	}
}

func (b *Blueprint) outputKind(output string, reqs *models.RequirementSet) string {
	switch output {
	case "email":
		if kind, ok := emailKinds[reqs.String(models.ReqEmailService)]; ok {
			return kind
		}

		if reqs.String(models.ReqEmailService) != "" {
			return "n8n-nodes-base.emailSend"
		}

		return "n8n-nodes-base.gmail"
	case "database":
		if kind, ok := databaseKinds[strings.ToLower(reqs.String(models.ReqDatabase))]; ok {
			return kind
		}

		return "n8n-nodes-base.postgres"
	default:
		return outputKinds[output]
	}
}

// assembly is the draft under construction.
type assembly struct {
	reg   *registry.Registry
	draft *models.Draft
	tail  string
	seq   int
	names map[string]bool
}

// add appends a node with a fresh id and a unique name, returning the id.
func (w *assembly) add(n *models.Node) string {
	w.seq++
	n.ID = fmt.Sprintf("node-%03d", w.seq)

	base := n.Name
	if base == "" {
		base = "Step"
	}

	n.Name = base
	for i := 2; w.names[n.Name]; i++ {
		n.Name = fmt.Sprintf("%s %d", base, i)
	}

	w.names[n.Name] = true

	n.Position = &models.Position{X: 250 * (w.seq - 1), Y: 300}

	if n.TypeVersion == 0 {
		n.TypeVersion = 1
	}

	w.draft.Nodes = append(w.draft.Nodes, n)

	return n.ID
}

// chain appends a node after the tail and makes it the new tail.
func (w *assembly) chain(n *models.Node) {
	id := w.add(n)
	w.draft.Connect(w.tail, 0, id)
	w.tail = id
}

// fragment copies a fragment into the draft after the tail. Its start
// triggers are replaced by the tail; error-trigger islands are kept apart.
func (w *assembly) fragment(f *models.Fragment) {
	ids := make(map[string]string, len(f.Nodes))
	dropped := map[string]bool{}

	var islands []string

	for _, n := range f.Nodes {
		if w.reg.IsTrigger(n.Kind) {
			if n.Kind != registry.KindErrorTrigger {
				dropped[n.ID] = true

				continue
			}

			islands = append(islands, n.ID)
		}

		ids[n.ID] = w.add(n.Clone())
	}

	for _, c := range f.Connections {
		if dropped[c.Target] {
			continue
		}

		source := ids[c.Source]
		if dropped[c.Source] {
			source = w.tail
		}

		w.draft.Connections = append(w.draft.Connections, &models.Connection{
			Source:       source,
			SourceOutput: c.SourceOutput,
			Target:       ids[c.Target],
			TargetType:   models.ConnectionTypeMain,
			TargetInput:  c.TargetInput,
		})
	}

	isolated := reachable(f, islands)

	if entry := f.Entry(); entry != "" && !dropped[entry] && !isolated[entry] {
		w.draft.Connect(w.tail, 0, ids[entry])
	}

	if exit := f.Exit(); exit != "" && !dropped[exit] && !isolated[exit] {
		w.tail = ids[exit]

		return
	}

	// the declared exit sits on an error island; continue from the last node
	// of the main path instead
	for i := len(f.Nodes) - 1; i >= 0; i-- {
		id := f.Nodes[i].ID
		if !dropped[id] && !isolated[id] {
			w.tail = ids[id]

			return
		}
	}
}

// reachable returns the fragment-local ids reachable from the start ids.
func reachable(f *models.Fragment, start []string) map[string]bool {
	seen := map[string]bool{}
	queue := append([]string(nil), start...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if seen[id] {
			continue
		}

		seen[id] = true

		for _, c := range f.Connections {
			if c.Source == id {
				queue = append(queue, c.Target)
			}
		}
	}

	return seen
}

// shape guarantees a branch, a merge and a transform step.
func (w *assembly) shape() {
	hasBranch := w.hasCategory(registry.CategoryBranch)

	if !hasBranch {
		check := w.add(w.reg.NewNode(registry.KindIf, "", "Check Result"))
		w.draft.Connect(w.tail, 0, check)

		accepted := w.add(w.reg.NewNode(registry.KindSet, "", "Mark Accepted"))
		rejected := w.add(w.reg.NewNode(registry.KindSet, "", "Mark Rejected"))
		merge := w.add(w.reg.NewNode(registry.KindMerge, "", "Combine Paths"))

		w.draft.Connect(check, 0, accepted)
		w.draft.Connect(check, 1, rejected)
		w.draft.Connect(accepted, 0, merge)
		w.draft.Connections = append(w.draft.Connections, &models.Connection{
			Source:     rejected,
			Target:     merge,
			TargetType: models.ConnectionTypeMain,
			// second merge input
			TargetInput: 1,
		})

		w.tail = merge
	}

	if !w.hasCategory(registry.CategoryMerge) {
		w.chain(w.reg.NewNode(registry.KindMerge, "", "Collect Results"))
	}

	if !w.hasCategory(registry.CategoryTransform) {
		w.chain(w.reg.NewNode(registry.KindSet, "", "Prepare Output"))
	}
}

func (w *assembly) hasKind(kind string) bool {
	for _, n := range w.draft.Nodes {
		if n.Kind == kind {
			return true
		}
	}

	return false
}

func (w *assembly) hasCategory(category registry.Category) bool {
	for _, n := range w.draft.Nodes {
		if w.reg.CategoryOf(n.Kind) == category {
			return true
		}
	}

	return false
}

func (w *assembly) functional() int {
	count := 0

	for _, n := range w.draft.Nodes {
		if !w.reg.IsAnnotation(n.Kind) {
			count++
		}
	}

	return count
}
