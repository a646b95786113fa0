package generation

import (
	"fmt"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/google/uuid"
)

const (
	CredentialPlaceholder = "{{CREDENTIAL_ID}}"

	columnWidth = 250
	rowY        = 300

	noteOffsetX = 200
	noteOffsetY = 150
	noteHeight  = 160
	noteWidth   = 240
)

// Refiner holds the repair stages applied to every synthesized draft. Each
// stage mutates the draft in place and reports what it changed.
type Refiner struct {
	reg *registry.Registry
}

func NewRefiner(reg *registry.Registry) *Refiner {
	return &Refiner{reg: reg}
}

// ids hands out node-%03d ids not yet used by the draft.
type ids struct {
	used map[string]bool
	seq  int
}

func newIDs(d *models.Draft) *ids {
	used := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		used[n.ID] = true
	}

	return &ids{used: used}
}

func (a *ids) next() string {
	for {
		a.seq++

		id := fmt.Sprintf("node-%03d", a.seq)
		if !a.used[id] {
			a.used[id] = true

			return id
		}
	}
}

// names hands out display names not yet used by the draft.
type names map[string]bool

func newNames(d *models.Draft) names {
	out := make(names, len(d.Nodes))
	for _, n := range d.Nodes {
		out[n.Name] = true
	}

	return out
}

func (u names) claim(base string) string {
	name := base
	for i := 2; u[name]; i++ {
		name = fmt.Sprintf("%s %d", base, i)
	}

	u[name] = true

	return name
}

// Structure fixes ids, names, positions and type versions, then points
// name-addressed connections at the ids it assigned. Nodes without a position
// are laid out in 250px columns by their index. It returns the number of nodes
// it touched.
func (r *Refiner) Structure(d *models.Draft) int {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	if strings.TrimSpace(d.Name) == "" {
		d.Name = "Generated Workflow"
	}

	if d.Settings == nil {
		d.Settings = n8n.DefaultSettings()
	}

	seenIDs := map[string]bool{}
	for _, n := range d.Nodes {
		if n.ID != "" {
			seenIDs[n.ID] = true
		}
	}

	byName := make(map[string]*models.Node, len(d.Nodes))
	for _, n := range d.Nodes {
		if _, ok := byName[n.Name]; !ok {
			byName[n.Name] = n
		}
	}

	alloc := &ids{used: seenIDs}
	kept := map[string]bool{}
	taken := names{}
	fixed := 0

	for i, n := range d.Nodes {
		touched := false

		if n.ID == "" || kept[n.ID] {
			n.ID = alloc.next()
			touched = true
		}

		kept[n.ID] = true

		name := strings.TrimSpace(n.Name)
		if name == "" {
			name = r.displayName(n.Kind)
		}

		if unique := taken.claim(name); unique != n.Name {
			n.Name = unique
			touched = true
		}

		if n.Position == nil {
			n.Position = &models.Position{X: columnWidth * i, Y: rowY}
			touched = true
		}

		if n.TypeVersion <= 0 {
			n.TypeVersion = 1
			touched = true
		}

		if n.Parameters == nil {
			n.Parameters = map[string]any{}
		}

		if touched {
			fixed++
		}
	}

	resolve := func(ref string) string {
		if name, ok := n8n.RefName(ref); ok {
			if n := byName[name]; n != nil {
				return n.ID
			}
		}

		return ref
	}

	for _, c := range d.Connections {
		c.Source = resolve(c.Source)
		c.Target = resolve(c.Target)
	}

	return fixed
}

func (r *Refiner) displayName(kind string) string {
	if spec, ok := r.reg.Get(kind); ok {
		return spec.DisplayName
	}

	if i := strings.LastIndex(kind, "."); i >= 0 && i < len(kind)-1 {
		return kind[i+1:]
	}

	return "Node"
}

// Parameters lists the parameter gaps of every node. Gaps are recorded, not
// fixed; the quality score reflects them.
func (r *Refiner) Parameters(d *models.Draft) []registry.Problem {
	return r.reg.ValidateDraft(d)
}

// Credentials attaches a placeholder credential to every node whose kind needs
// one and lacks it. It returns the number of nodes changed.
func (r *Refiner) Credentials(d *models.Draft) int {
	injected := 0

	for _, n := range d.Nodes {
		spec, ok := r.reg.Get(n.Kind)
		if !ok || spec.Credential == "" {
			continue
		}

		if _, ok := n.Credentials[spec.Credential]; ok {
			continue
		}

		if n.Credentials == nil {
			n.Credentials = map[string]models.CredentialRef{}
		}

		n.Credentials[spec.Credential] = models.CredentialRef{
			ID:   CredentialPlaceholder,
			Name: spec.CredentialName(),
		}
		injected++
	}

	return injected
}

// ErrorHandling adds the default retry policy to critical nodes in node order
// until half of them are covered, or all of them when full is set. It returns
// the number of nodes changed.
func (r *Refiner) ErrorHandling(d *models.Draft, full bool) int {
	var eligible []*models.Node

	covered := 0

	for _, n := range d.Nodes {
		if !r.reg.IsCritical(n.Kind) || r.reg.IsAnnotation(n.Kind) {
			continue
		}

		eligible = append(eligible, n)

		if n.HasErrorPolicy() {
			covered++
		}
	}

	enough := func() bool {
		if full {
			return covered == len(eligible)
		}

		return covered*2 >= len(eligible)
	}

	added := 0

	for _, n := range eligible {
		if enough() {
			break
		}

		if n.HasErrorPolicy() {
			continue
		}

		n.ErrorPolicy = models.DefaultErrorPolicy()
		covered++
		added++
	}

	return added
}

// Documentation adds sticky notes until the tier target is met: first one per
// section present in the draft, then notes over consecutive groups of steps.
// It returns the number of notes added.
func (r *Refiner) Documentation(d *models.Draft, tier models.Tier) int {
	target := tier.DocumentationTarget()
	notes := 0

	for _, n := range d.Nodes {
		if r.reg.IsAnnotation(n.Kind) {
			notes++
		}
	}

	if notes >= target {
		return 0
	}

	alloc := newIDs(d)
	taken := newNames(d)

	var (
		added []*models.Node
		steps []*models.Node
	)

	first := map[string]*models.Node{}

	for _, n := range d.Nodes {
		section, ok := SectionOf(r.reg, n)
		if !ok {
			continue
		}

		if _, seen := first[section.Key]; !seen {
			first[section.Key] = n
		}

		if section != SectionTrigger {
			steps = append(steps, n)
		}
	}

	for _, section := range sectionOrder {
		if notes+len(added) >= target {
			break
		}

		anchor, ok := first[section.Key]
		if !ok {
			continue
		}

		added = append(added, r.note(alloc, taken, section.Title, section.Description, anchor))
	}

	if needed := target - notes - len(added); needed > 0 && len(steps) > 0 {
		groups := min(needed, len(steps))

		for g := range groups {
			start, end := g*len(steps)/groups, (g+1)*len(steps)/groups
			group := steps[start:end]

			stepNames := make([]string, 0, len(group))
			for _, n := range group {
				stepNames = append(stepNames, n.Name)
			}

			title := fmt.Sprintf("Steps %d-%d", start+1, end)
			if len(group) == 1 {
				title = fmt.Sprintf("Step %d", end)
			}

			added = append(added, r.note(alloc, taken, title, strings.Join(stepNames, " → "), group[0]))
		}
	}

	d.Nodes = append(d.Nodes, added...)

	return len(added)
}

func (r *Refiner) note(alloc *ids, taken names, title, description string, anchor *models.Node) *models.Node {
	node := r.reg.NewNode(registry.KindStickyNote, alloc.next(), taken.claim("Note: "+title))
	node.Parameters["content"] = fmt.Sprintf("## %s\n\n%s", title, description)
	node.Parameters["height"] = noteHeight
	node.Parameters["width"] = noteWidth

	x, y := 0, rowY
	if anchor.Position != nil {
		x, y = anchor.Position.X, anchor.Position.Y
	}

	node.Position = &models.Position{X: x - noteOffsetX, Y: y - noteOffsetY}

	return node
}

// Connectivity drops connections to unknown nodes, then attaches every orphan
// to the nearest preceding node that is already wired in (or is a trigger).
// Orphans with no such node are removed. Triggers and annotations are exempt.
func (r *Refiner) Connectivity(d *models.Draft) (dropped, reconnected, removed int) {
	known := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		known[n.ID] = true
	}

	conns := d.Connections[:0]

	for _, c := range d.Connections {
		if known[c.Source] && known[c.Target] && c.Source != c.Target {
			conns = append(conns, c)

			continue
		}

		dropped++
	}

	d.Connections = conns

	inbound, outbound := d.Degree()
	wired := func(n *models.Node) bool {
		return inbound[n.ID] > 0 || outbound[n.ID] > 0
	}

	kept := make([]*models.Node, 0, len(d.Nodes))

	for i, n := range d.Nodes {
		if r.reg.IsTrigger(n.Kind) || r.reg.IsAnnotation(n.Kind) || wired(n) {
			kept = append(kept, n)

			continue
		}

		var source *models.Node

		for j := i - 1; j >= 0; j-- {
			candidate := d.Nodes[j]
			if r.reg.IsAnnotation(candidate.Kind) {
				continue
			}

			if wired(candidate) || r.reg.IsTrigger(candidate.Kind) {
				source = candidate

				break
			}
		}

		if source == nil {
			removed++

			continue
		}

		d.Connect(source.ID, 0, n.ID)
		outbound[source.ID]++
		inbound[n.ID]++
		reconnected++

		kept = append(kept, n)
	}

	d.Nodes = kept

	return dropped, reconnected, removed
}
