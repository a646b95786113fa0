// Package registry is the node capability catalog: which node kinds exist,
// what parameters they need and which of them talk to the outside world.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyKind       = errors.New("kind is empty")
	ErrDuplicateKind   = errors.New("kind declared twice")
	ErrUnknownCategory = errors.New("unknown category")
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide catalog loaded from the embedded data.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(catalogYAML)
		if err != nil {
			panic(fmt.Errorf("embedded node catalog is invalid: %w", err))
		}

		defaultRegistry = reg
	})

	return defaultRegistry
}

// Registry is an immutable table of kinds. It is safe for concurrent use.
type Registry struct {
	kinds map[string]*KindSpec
	order []string
}

type catalogFile struct {
	Kinds []*KindSpec `yaml:"kinds"`
}

// Load parses a catalog document.
func Load(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	reg := &Registry{kinds: make(map[string]*KindSpec, len(file.Kinds))}

	for _, spec := range file.Kinds {
		if err := spec.compile(); err != nil {
			return nil, err
		}

		if _, exists := reg.kinds[spec.Kind]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, spec.Kind)
		}

		reg.kinds[spec.Kind] = spec
		reg.order = append(reg.order, spec.Kind)
	}

	return reg, nil
}

// Get returns the spec of a kind.
func (r *Registry) Get(kind string) (*KindSpec, bool) {
	spec, ok := r.kinds[kind]

	return spec, ok
}

// Kinds lists every kind in catalog order.
func (r *Registry) Kinds() []*KindSpec {
	out := make([]*KindSpec, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.kinds[k])
	}

	return out
}

func (r *Registry) ByCategory(category Category) []*KindSpec {
	var out []*KindSpec

	for _, k := range r.order {
		if r.kinds[k].Category == category {
			out = append(out, r.kinds[k])
		}
	}

	return out
}

// CategoryOf returns the category of a kind; unknown kinds are classified by
// name as trigger or action.
func (r *Registry) CategoryOf(kind string) Category {
	if spec, ok := r.kinds[kind]; ok {
		return spec.Category
	}

	if looksLikeTrigger(kind) {
		return CategoryTrigger
	}

	return CategoryAction
}

func (r *Registry) IsTrigger(kind string) bool {
	return r.CategoryOf(kind) == CategoryTrigger
}

func (r *Registry) IsAnnotation(kind string) bool {
	return kind == KindStickyNote || r.CategoryOf(kind) == CategoryAnnotation
}

// IsCritical reports whether a kind performs external I/O and should carry
// error handling.
func (r *Registry) IsCritical(kind string) bool {
	spec, ok := r.kinds[kind]

	return ok && spec.Critical
}

func (r *Registry) RequiresCredential(kind string) bool {
	spec, ok := r.kinds[kind]

	return ok && spec.Credential != ""
}

func (r *Registry) CredentialType(kind string) string {
	if spec, ok := r.kinds[kind]; ok {
		return spec.Credential
	}

	return ""
}

// ValidateNode checks a node's parameters. Unknown kinds pass: the catalog
// cannot judge what it does not describe.
func (r *Registry) ValidateNode(node *models.Node) []Problem {
	spec, ok := r.kinds[node.Kind]
	if !ok {
		return nil
	}

	return spec.Validate(node)
}

// ValidateDraft collects the problems of every node in draft order.
func (r *Registry) ValidateDraft(d *models.Draft) []Problem {
	var problems []Problem

	for _, n := range d.Nodes {
		problems = append(problems, r.ValidateNode(n)...)
	}

	return problems
}

// Summary renders the catalog as prompt text, one kind per line.
func (r *Registry) Summary() string {
	var b strings.Builder

	for _, k := range r.order {
		spec := r.kinds[k]
		if spec.Category == CategoryAnnotation {
			continue
		}

		fmt.Fprintf(&b, "- %s (%s)", spec.Kind, spec.Category)

		if len(spec.Required) > 0 {
			names := make([]string, 0, len(spec.Required))
			for _, f := range spec.Required {
				names = append(names, f.Name)
			}

			fmt.Fprintf(&b, " required: %s", strings.Join(names, ", "))
		}

		if spec.Credential != "" {
			fmt.Fprintf(&b, " credential: %s", spec.Credential)
		}

		b.WriteString("\n")
	}

	return b.String()
}

// NewNode builds a node of a kind carrying a copy of the kind's typical
// configuration. Unknown kinds get empty parameters.
func (r *Registry) NewNode(kind, id, name string) *models.Node {
	node := &models.Node{ID: id, Name: name, Kind: kind, TypeVersion: 1, Parameters: map[string]any{}}

	if spec, ok := r.kinds[kind]; ok && spec.TypicalConfig != nil {
		node.Parameters = models.CloneParameters(spec.TypicalConfig)
	}

	return node
}

// Snippets turns every kind with a typical configuration into a one-node
// fragment for node-configuration retrieval.
func (r *Registry) Snippets() []*models.Fragment {
	var out []*models.Fragment

	for _, k := range r.order {
		spec := r.kinds[k]
		if spec.TypicalConfig == nil {
			continue
		}

		id := "snippet-" + kindSuffix(spec.Kind)
		node := &models.Node{
			ID:          id,
			Name:        spec.DisplayName,
			Kind:        spec.Kind,
			TypeVersion: 1,
			Parameters:  models.CloneParameters(spec.TypicalConfig),
		}

		tags := []string{string(spec.Category), strings.ToLower(kindSuffix(spec.Kind))}
		if spec.Service != "" {
			tags = append(tags, strings.ToLower(spec.Service))
		}

		sort.Strings(tags)

		out = append(out, &models.Fragment{
			ID:          id,
			Name:        spec.DisplayName + " configuration",
			Description: fmt.Sprintf("Typical %s node configuration", spec.DisplayName),
			Tier:        models.FragmentSnippet,
			Tags:        tags,
			Complexity:  1,
			Nodes:       []*models.Node{node},
		})
	}

	return out
}

func kindSuffix(kind string) string {
	if i := strings.LastIndex(kind, "."); i >= 0 {
		return kind[i+1:]
	}

	return kind
}
