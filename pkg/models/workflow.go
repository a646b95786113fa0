// Package models defines the domain types shared by the dialogue and generation pipeline.
package models

import (
	"errors"
	"fmt"
	"maps"
)

var (
	ErrDuplicateNodeID    = errors.New("duplicate node id")
	ErrEmptyNodeID        = errors.New("empty node id")
	ErrDanglingConnection = errors.New("connection references unknown node")
)

const (
	ConnectionTypeMain = "main"

	OnErrorContinue = "continueRegularOutput"
)

// Position is a node's place on the editor canvas.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CredentialRef points at a credential stored in the target platform.
type CredentialRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ErrorPolicy is the retry and continue-on-error metadata of a node.
type ErrorPolicy struct {
	RetryOnFail      bool   `json:"retry_on_fail"`
	MaxTries         int    `json:"max_tries,omitempty"`
	WaitBetweenTries int    `json:"wait_between_tries,omitempty"`
	OnError          string `json:"on_error,omitempty"`
}

// DefaultErrorPolicy retries three times and keeps the run going on failure.
func DefaultErrorPolicy() *ErrorPolicy {
	return &ErrorPolicy{
		RetryOnFail:      true,
		MaxTries:         3,
		WaitBetweenTries: 1000,
		OnError:          OnErrorContinue,
	}
}

// Node is a single step of a draft.
type Node struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Kind        string                   `json:"kind"`
	TypeVersion float64                  `json:"type_version"`
	Position    *Position                `json:"position,omitempty"`
	Parameters  map[string]any           `json:"parameters"`
	Credentials map[string]CredentialRef `json:"credentials,omitempty"`
	ErrorPolicy *ErrorPolicy             `json:"error_policy,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Parameters = cloneParams(n.Parameters)
	cp.Credentials = maps.Clone(n.Credentials)

	if n.Position != nil {
		pos := *n.Position
		cp.Position = &pos
	}

	if n.ErrorPolicy != nil {
		policy := *n.ErrorPolicy
		cp.ErrorPolicy = &policy
	}

	return &cp
}

func (n *Node) HasErrorPolicy() bool {
	return n.ErrorPolicy != nil && (n.ErrorPolicy.RetryOnFail || n.ErrorPolicy.OnError != "")
}

// Connection links an output of one node to an input of another. Within a
// source output the order of the draft's connection list is the fan-out order.
type Connection struct {
	Source       string `json:"source"`
	SourceOutput int    `json:"source_output"`
	Target       string `json:"target"`
	TargetType   string `json:"target_type"`
	TargetInput  int    `json:"target_input"`
}

// Draft is a generated workflow graph.
type Draft struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Nodes       []*Node        `json:"nodes"`
	Connections []*Connection  `json:"connections"`
	Settings    map[string]any `json:"settings,omitempty"`
}

// Node returns the node with the given id, or nil.
func (d *Draft) Node(id string) *Node {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// NodeByName returns the first node with the given display name, or nil.
func (d *Draft) NodeByName(name string) *Node {
	for _, n := range d.Nodes {
		if n.Name == name {
			return n
		}
	}

	return nil
}

// Connect appends a main connection between two node ids.
func (d *Draft) Connect(source string, sourceOutput int, target string) {
	d.Connections = append(d.Connections, &Connection{
		Source:       source,
		SourceOutput: sourceOutput,
		Target:       target,
		TargetType:   ConnectionTypeMain,
	})
}

// Degree counts inbound and outbound connections per node id.
func (d *Draft) Degree() (inbound map[string]int, outbound map[string]int) {
	inbound = make(map[string]int, len(d.Nodes))
	outbound = make(map[string]int, len(d.Nodes))

	for _, c := range d.Connections {
		outbound[c.Source]++
		inbound[c.Target]++
	}

	return inbound, outbound
}

// Orphans returns nodes with neither inbound nor outbound connections, skipping
// those the exempt predicate accepts (triggers, annotations).
func (d *Draft) Orphans(exempt func(*Node) bool) []*Node {
	inbound, outbound := d.Degree()

	var out []*Node

	for _, n := range d.Nodes {
		if exempt != nil && exempt(n) {
			continue
		}

		if inbound[n.ID] == 0 && outbound[n.ID] == 0 {
			out = append(out, n)
		}
	}

	return out
}

// Validate checks the structural invariants: non-empty unique ids and
// connections that only reference nodes of this draft.
func (d *Draft) Validate() error {
	var errs []error

	ids := make(map[string]bool, len(d.Nodes))

	for i, n := range d.Nodes {
		switch {
		case n.ID == "":
			errs = append(errs, fmt.Errorf("node %d (%q): %w", i, n.Name, ErrEmptyNodeID))
		case ids[n.ID]:
			errs = append(errs, fmt.Errorf("node %q: %w", n.ID, ErrDuplicateNodeID))
		}

		ids[n.ID] = true
	}

	for _, c := range d.Connections {
		if !ids[c.Source] {
			errs = append(errs, fmt.Errorf("source %q: %w", c.Source, ErrDanglingConnection))
		}

		if !ids[c.Target] {
			errs = append(errs, fmt.Errorf("target %q: %w", c.Target, ErrDanglingConnection))
		}
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy so stages of one attempt never leak into another.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}

	out := &Draft{
		ID:          d.ID,
		Name:        d.Name,
		Nodes:       make([]*Node, 0, len(d.Nodes)),
		Connections: make([]*Connection, 0, len(d.Connections)),
		Settings:    maps.Clone(d.Settings),
	}

	for _, n := range d.Nodes {
		out.Nodes = append(out.Nodes, n.Clone())
	}

	for _, c := range d.Connections {
		cp := *c
		out.Connections = append(out.Connections, &cp)
	}

	return out
}

// CloneParameters deep-copies a parameter map.
func CloneParameters(in map[string]any) map[string]any {
	return cloneParams(in)
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))

	for k, v := range in {
		switch typed := v.(type) {
		case map[string]any:
			out[k] = cloneParams(typed)
		case []any:
			items := make([]any, len(typed))
			for i, item := range typed {
				if m, ok := item.(map[string]any); ok {
					items[i] = cloneParams(m)
				} else {
					items[i] = item
				}
			}

			out[k] = items
		default:
			out[k] = v
		}
	}

	return out
}
