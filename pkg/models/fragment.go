package models

import (
	"slices"
	"strings"
)

// FragmentTier says which retrieval corpus a fragment belongs to.
type FragmentTier string

const (
	FragmentExpert  FragmentTier = "expert"
	FragmentComplex FragmentTier = "complex"
	FragmentPattern FragmentTier = "pattern"
	FragmentSnippet FragmentTier = "snippet"
)

// Fragment is a reusable partial graph with declared input and output ports.
type Fragment struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Tier        FragmentTier  `json:"tier"`
	Tags        []string      `json:"tags"`
	UseCases    []string      `json:"use_cases,omitempty"`
	Complexity  int           `json:"complexity"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	Inputs      []Port        `json:"inputs"`
	Outputs     []Port        `json:"outputs"`
}

func (f *Fragment) NodeCount() int {
	return len(f.Nodes)
}

func (f *Fragment) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// Node returns the fragment node with the given local id, or nil.
func (f *Fragment) Node(id string) *Node {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// Text is the lowercased searchable text of the fragment.
func (f *Fragment) Text() string {
	parts := make([]string, 0, 2+len(f.Tags)+len(f.UseCases))
	parts = append(parts, f.Name, f.Description)
	parts = append(parts, f.Tags...)
	parts = append(parts, f.UseCases...)

	return strings.ToLower(strings.Join(parts, " "))
}

// Entry returns the node id that receives the fragment's first input, falling
// back to the first node.
func (f *Fragment) Entry() string {
	if len(f.Inputs) > 0 && f.Inputs[0].NodeID != "" {
		return f.Inputs[0].NodeID
	}

	if len(f.Nodes) > 0 {
		return f.Nodes[0].ID
	}

	return ""
}

// Exit returns the node id that emits the fragment's first output, falling back
// to the last node.
func (f *Fragment) Exit() string {
	if len(f.Outputs) > 0 && f.Outputs[0].NodeID != "" {
		return f.Outputs[0].NodeID
	}

	if len(f.Nodes) > 0 {
		return f.Nodes[len(f.Nodes)-1].ID
	}

	return ""
}

// Candidate is a retrieved fragment with its ranking inputs.
type Candidate struct {
	Fragment   *Fragment `json:"fragment"`
	Stage      string    `json:"stage"`
	Similarity float64   `json:"similarity"`
	Weight     float64   `json:"weight"`
}

// Rank is the weighted score candidates are ordered by.
func (c Candidate) Rank() float64 {
	return c.Similarity * c.Weight
}
