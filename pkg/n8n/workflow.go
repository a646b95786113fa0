// Package n8n converts drafts to and from the n8n workflow export format.
package n8n

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// Workflow is the n8n export document.
type Workflow struct {
	ID          string                     `json:"id,omitempty"`
	Name        string                     `json:"name"`
	Active      bool                       `json:"active"`
	Nodes       []Node                     `json:"nodes"`
	Connections map[string]NodeConnections `json:"connections"`
	Settings    map[string]any             `json:"settings,omitempty"`
}

// Node is an n8n node entry.
type Node struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Type             string                `json:"type"`
	TypeVersion      float64               `json:"typeVersion"`
	Position         []float64             `json:"position"`
	Parameters       map[string]any        `json:"parameters"`
	Credentials      map[string]Credential `json:"credentials,omitempty"`
	RetryOnFail      bool                  `json:"retryOnFail,omitempty"`
	MaxTries         int                   `json:"maxTries,omitempty"`
	WaitBetweenTries int                   `json:"waitBetweenTries,omitempty"`
	OnError          string                `json:"onError,omitempty"`
	ContinueOnFail   bool                  `json:"continueOnFail,omitempty"`
}

// Credential is the reference n8n stores per credential type.
type Credential struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NodeConnections holds the fan-outs of one source node, keyed by connection
// type. Each output index holds an ordered list of targets.
type NodeConnections map[string][][]Target

// Target is one edge end.
type Target struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// DefaultSettings are attached to every exported workflow.
func DefaultSettings() map[string]any {
	return map[string]any{"executionOrder": "v1"}
}

// FromDraft renders a draft in export shape. Connections are keyed by node
// name, so names are expected to be unique (structural repair ensures it).
func FromDraft(d *models.Draft) Workflow {
	wf := Workflow{
		ID:          d.ID,
		Name:        d.Name,
		Nodes:       make([]Node, 0, len(d.Nodes)),
		Connections: map[string]NodeConnections{},
		Settings:    d.Settings,
	}

	if wf.Settings == nil {
		wf.Settings = DefaultSettings()
	}

	names := make(map[string]string, len(d.Nodes))

	for _, n := range d.Nodes {
		names[n.ID] = n.Name

		node := Node{
			ID:          n.ID,
			Name:        n.Name,
			Type:        n.Kind,
			TypeVersion: n.TypeVersion,
			Parameters:  n.Parameters,
		}

		if node.Parameters == nil {
			node.Parameters = map[string]any{}
		}

		if n.Position != nil {
			node.Position = []float64{float64(n.Position.X), float64(n.Position.Y)}
		}

		if len(n.Credentials) > 0 {
			node.Credentials = make(map[string]Credential, len(n.Credentials))
			for k, c := range n.Credentials {
				node.Credentials[k] = Credential{ID: c.ID, Name: c.Name}
			}
		}

		if p := n.ErrorPolicy; p != nil {
			node.RetryOnFail = p.RetryOnFail
			node.MaxTries = p.MaxTries
			node.WaitBetweenTries = p.WaitBetweenTries
			node.OnError = p.OnError
		}

		wf.Nodes = append(wf.Nodes, node)
	}

	for _, c := range d.Connections {
		source, ok := names[c.Source]
		if !ok {
			continue
		}

		target, ok := names[c.Target]
		if !ok {
			continue
		}

		kind := c.TargetType
		if kind == "" {
			kind = models.ConnectionTypeMain
		}

		conns := wf.Connections[source]
		if conns == nil {
			conns = NodeConnections{}
			wf.Connections[source] = conns
		}

		outputs := conns[kind]
		for len(outputs) <= c.SourceOutput {
			outputs = append(outputs, []Target{})
		}

		outputs[c.SourceOutput] = append(outputs[c.SourceOutput], Target{Node: target, Type: kind, Index: c.TargetInput})
		conns[kind] = outputs
	}

	return wf
}

// ToDraft converts an export document into a draft. Connections naming an
// unknown node keep the raw name as id so connectivity repair can drop them.
// Connections to a node without a usable id point at its NameRef until
// structural repair assigns one.
func ToDraft(wf Workflow) *models.Draft {
	d := &models.Draft{
		ID:       wf.ID,
		Name:     wf.Name,
		Nodes:    make([]*models.Node, 0, len(wf.Nodes)),
		Settings: wf.Settings,
	}

	ids := make(map[string]string, len(wf.Nodes))
	usedIDs := make(map[string]bool, len(wf.Nodes))

	for _, n := range wf.Nodes {
		node := &models.Node{
			ID:          n.ID,
			Name:        n.Name,
			Kind:        n.Type,
			TypeVersion: n.TypeVersion,
			Parameters:  n.Parameters,
		}

		if len(n.Position) == 2 {
			node.Position = &models.Position{
				X: int(math.Round(n.Position[0])),
				Y: int(math.Round(n.Position[1])),
			}
		}

		if len(n.Credentials) > 0 {
			node.Credentials = make(map[string]models.CredentialRef, len(n.Credentials))
			for k, c := range n.Credentials {
				node.Credentials[k] = models.CredentialRef{ID: c.ID, Name: c.Name}
			}
		}

		if n.RetryOnFail || n.OnError != "" || n.ContinueOnFail {
			node.ErrorPolicy = &models.ErrorPolicy{
				RetryOnFail:      n.RetryOnFail,
				MaxTries:         n.MaxTries,
				WaitBetweenTries: n.WaitBetweenTries,
				OnError:          n.OnError,
			}

			if n.ContinueOnFail && n.OnError == "" {
				node.ErrorPolicy.OnError = models.OnErrorContinue
			}
		}

		if _, seen := ids[n.Name]; !seen {
			ids[n.Name] = n.ID
			if n.ID == "" || usedIDs[n.ID] {
				ids[n.Name] = NameRef(n.Name)
			}
		}

		if n.ID != "" {
			usedIDs[n.ID] = true
		}

		d.Nodes = append(d.Nodes, node)
	}

	resolve := func(name string) string {
		if id, ok := ids[name]; ok {
			return id
		}

		return "missing:" + name
	}

	for _, source := range connectionOrder(wf) {
		conns := wf.Connections[source]

		kinds := make([]string, 0, len(conns))
		for k := range conns {
			kinds = append(kinds, k)
		}

		sort.Strings(kinds)

		for _, kind := range kinds {
			for output, targets := range conns[kind] {
				for _, t := range targets {
					targetType := t.Type
					if targetType == "" {
						targetType = kind
					}

					d.Connections = append(d.Connections, &models.Connection{
						Source:       resolve(source),
						SourceOutput: output,
						Target:       resolve(t.Node),
						TargetType:   targetType,
						TargetInput:  t.Index,
					})
				}
			}
		}
	}

	return d
}

const nameRefPrefix = "name:"

// NameRef is the connection end ToDraft leaves for a node that has no usable
// id of its own: an empty id, or one an earlier node already holds.
func NameRef(name string) string {
	return nameRefPrefix + name
}

// RefName returns the node name behind a NameRef.
func RefName(ref string) (string, bool) {
	return strings.CutPrefix(ref, nameRefPrefix)
}

// connectionOrder lists source names in node order, then unknown sources sorted.
func connectionOrder(wf Workflow) []string {
	order := make([]string, 0, len(wf.Connections))
	seen := map[string]bool{}

	for _, n := range wf.Nodes {
		if _, ok := wf.Connections[n.Name]; ok && !seen[n.Name] {
			order = append(order, n.Name)
			seen[n.Name] = true
		}
	}

	var rest []string

	for name := range wf.Connections {
		if !seen[name] {
			rest = append(rest, name)
		}
	}

	sort.Strings(rest)

	return append(order, rest...)
}

// Marshal renders a draft as indented export JSON.
func Marshal(d *models.Draft) ([]byte, error) {
	data, err := json.MarshalIndent(FromDraft(d), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow %q: %w", d.Name, err)
	}

	return data, nil
}
