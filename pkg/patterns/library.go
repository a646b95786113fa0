// Package patterns holds the curated fragment corpus: reusable patterns,
// expert examples and complex reference workflows.
package patterns

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateFragment = errors.New("fragment declared twice")
	ErrUnknownFragment   = errors.New("unknown fragment")
	ErrUnknownTier       = errors.New("unknown fragment tier")
	ErrUnknownKind       = errors.New("node kind missing from catalog")
	ErrBadReference      = errors.New("reference to unknown node")
)

//go:embed patterns.yaml
var patternsYAML []byte

var (
	defaultOnce    sync.Once
	defaultLibrary *Library
)

// Default returns the library built from the embedded corpus.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := Load(patternsYAML, registry.Default())
		if err != nil {
			panic(fmt.Errorf("embedded pattern library is invalid: %w", err))
		}

		defaultLibrary = lib
	})

	return defaultLibrary
}

// Embedded returns a copy of the built-in corpus document.
func Embedded() []byte {
	return slices.Clone(patternsYAML)
}

// Library is an immutable, ordered set of fragments. Callers must clone nodes
// before mutating them.
type Library struct {
	byID  map[string]*models.Fragment
	order []*models.Fragment
}

type libraryFile struct {
	Fragments []fragmentDoc `yaml:"fragments"`
}

type fragmentDoc struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Tier        string        `yaml:"tier"`
	Complexity  int           `yaml:"complexity"`
	Tags        []string      `yaml:"tags"`
	UseCases    []string      `yaml:"use_cases"`
	Nodes       []nodeDoc     `yaml:"nodes"`
	Connections []connDoc     `yaml:"connections"`
	Inputs      []models.Port `yaml:"inputs"`
	Outputs     []models.Port `yaml:"outputs"`
	Compose     []string      `yaml:"compose"`
}

type nodeDoc struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	TypeVersion float64        `yaml:"type_version"`
	Parameters  map[string]any `yaml:"parameters"`
}

type connDoc struct {
	Source string `yaml:"source"`
	Output int    `yaml:"output"`
	Target string `yaml:"target"`
	Input  int    `yaml:"input"`
}

// Load parses a fragment corpus. Every node kind must exist in reg. Composite
// fragments may only reference fragments declared before them.
func Load(data []byte, reg *registry.Registry) (*Library, error) {
	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library: %w", err)
	}

	lib := &Library{byID: make(map[string]*models.Fragment, len(file.Fragments))}

	for _, doc := range file.Fragments {
		if _, exists := lib.byID[doc.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFragment, doc.ID)
		}

		var (
			frag *models.Fragment
			err  error
		)

		if len(doc.Compose) > 0 {
			frag, err = lib.compose(doc, reg)
		} else {
			frag, err = build(doc, reg)
		}

		if err != nil {
			return nil, fmt.Errorf("fragment %s: %w", doc.ID, err)
		}

		lib.byID[frag.ID] = frag
		lib.order = append(lib.order, frag)
	}

	return lib, nil
}

func parseTier(tier string) (models.FragmentTier, error) {
	switch t := models.FragmentTier(tier); t {
	case models.FragmentExpert, models.FragmentComplex, models.FragmentPattern, models.FragmentSnippet:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
}

func build(doc fragmentDoc, reg *registry.Registry) (*models.Fragment, error) {
	tier, err := parseTier(doc.Tier)
	if err != nil {
		return nil, err
	}

	frag := &models.Fragment{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Tier:        tier,
		Tags:        doc.Tags,
		UseCases:    doc.UseCases,
		Complexity:  doc.Complexity,
	}

	ids := make(map[string]bool, len(doc.Nodes))

	for _, n := range doc.Nodes {
		if _, ok := reg.Get(n.Kind); !ok {
			return nil, fmt.Errorf("node %s: %w: %s", n.ID, ErrUnknownKind, n.Kind)
		}

		if ids[n.ID] {
			return nil, fmt.Errorf("node %s: %w", n.ID, models.ErrDuplicateNodeID)
		}

		ids[n.ID] = true

		version := n.TypeVersion
		if version == 0 {
			version = 1
		}

		params := n.Parameters
		if params == nil {
			params = map[string]any{}
		}

		frag.Nodes = append(frag.Nodes, &models.Node{
			ID:          n.ID,
			Name:        n.Name,
			Kind:        n.Kind,
			TypeVersion: version,
			Parameters:  params,
		})
	}

	for _, c := range doc.Connections {
		if !ids[c.Source] || !ids[c.Target] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrBadReference, c.Source, c.Target)
		}

		frag.Connections = append(frag.Connections, &models.Connection{
			Source:       c.Source,
			SourceOutput: c.Output,
			Target:       c.Target,
			TargetType:   models.ConnectionTypeMain,
			TargetInput:  c.Input,
		})
	}

	if frag.Inputs, err = ports(doc.ID, doc.Inputs, ids); err != nil {
		return nil, err
	}

	if frag.Outputs, err = ports(doc.ID, doc.Outputs, ids); err != nil {
		return nil, err
	}

	return frag, nil
}

func ports(fragmentID string, in []models.Port, ids map[string]bool) ([]models.Port, error) {
	out := make([]models.Port, 0, len(in))

	for _, p := range in {
		if !ids[p.NodeID] {
			return nil, fmt.Errorf("port %s: %w: %s", p.Name, ErrBadReference, p.NodeID)
		}

		p.ID = models.MakePortID(fragmentID, p.Name)
		out = append(out, p)
	}

	return out, nil
}

// compose chains already-loaded fragments: each part's exit feeds the next
// part's entry unless that entry is a trigger. Node ids are prefixed with the
// part id.
func (l *Library) compose(doc fragmentDoc, reg *registry.Registry) (*models.Fragment, error) {
	tier, err := parseTier(doc.Tier)
	if err != nil {
		return nil, err
	}

	frag := &models.Fragment{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Tier:        tier,
		Tags:        doc.Tags,
		UseCases:    doc.UseCases,
		Complexity:  doc.Complexity,
	}

	var (
		prevExit   string
		complexity int
	)

	for i, partID := range doc.Compose {
		part, ok := l.byID[partID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFragment, partID)
		}

		prefix := partID + "."
		complexity += part.Complexity

		for _, n := range part.Nodes {
			cp := n.Clone()
			cp.ID = prefix + n.ID
			frag.Nodes = append(frag.Nodes, cp)
		}

		for _, c := range part.Connections {
			cp := *c
			cp.Source = prefix + c.Source
			cp.Target = prefix + c.Target
			frag.Connections = append(frag.Connections, &cp)
		}

		entry := part.Entry()
		if prevExit != "" && entry != "" && !reg.IsTrigger(part.Node(entry).Kind) {
			frag.Connections = append(frag.Connections, &models.Connection{
				Source:     prevExit,
				Target:     prefix + entry,
				TargetType: models.ConnectionTypeMain,
			})
		}

		if i == 0 {
			frag.Inputs = prefixPorts(doc.ID, prefix, part.Inputs)
		}

		if i == len(doc.Compose)-1 {
			frag.Outputs = prefixPorts(doc.ID, prefix, part.Outputs)
		}

		// a part that starts with a trigger begins a separate branch; the
		// chain continues from the last main-path exit
		if prevExit == "" || !reg.IsTrigger(part.Node(entry).Kind) {
			prevExit = prefix + part.Exit()
		}
	}

	if frag.Complexity == 0 {
		frag.Complexity = min(complexity, 10)
	}

	return frag, nil
}

func prefixPorts(fragmentID, prefix string, in []models.Port) []models.Port {
	out := make([]models.Port, 0, len(in))

	for _, p := range in {
		p.NodeID = prefix + p.NodeID
		p.ID = models.MakePortID(fragmentID, p.Name)
		out = append(out, p)
	}

	return out
}

// Get returns a fragment by id.
func (l *Library) Get(id string) (*models.Fragment, bool) {
	f, ok := l.byID[id]

	return f, ok
}

// All lists the fragments in corpus order.
func (l *Library) All() []*models.Fragment {
	return slices.Clone(l.order)
}

// ByTier lists the fragments of one tier in corpus order.
func (l *Library) ByTier(tier models.FragmentTier) []*models.Fragment {
	var out []*models.Fragment

	for _, f := range l.order {
		if f.Tier == tier {
			out = append(out, f)
		}
	}

	return out
}

// FindByTags returns fragments sharing at least one tag, most overlap first.
// Ties keep corpus order.
func (l *Library) FindByTags(tags ...string) []*models.Fragment {
	type scored struct {
		frag    *models.Fragment
		overlap int
	}

	var hits []scored

	for _, f := range l.order {
		overlap := 0

		for _, t := range tags {
			if f.HasTag(strings.ToLower(t)) {
				overlap++
			}
		}

		if overlap > 0 {
			hits = append(hits, scored{frag: f, overlap: overlap})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].overlap > hits[j].overlap
	})

	out := make([]*models.Fragment, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.frag)
	}

	return out
}

// ForRequest ranks pattern-tier fragments against free text: description
// words score 2 and use-case words score 3. Fragments scoring zero are dropped.
func (l *Library) ForRequest(text string, limit int) []*models.Fragment {
	words := strings.Fields(strings.ToLower(text))

	type scored struct {
		frag  *models.Fragment
		score int
	}

	var hits []scored

	for _, f := range l.ByTier(models.FragmentPattern) {
		desc := strings.ToLower(f.Description)
		uses := strings.ToLower(strings.Join(f.UseCases, " "))

		score := 0

		for _, w := range words {
			if len(w) < 4 {
				continue
			}

			if strings.Contains(desc, w) {
				score += 2
			}

			if strings.Contains(uses, w) {
				score += 3
			}
		}

		if score > 0 {
			hits = append(hits, scored{frag: f, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]*models.Fragment, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.frag)
	}

	return out
}
