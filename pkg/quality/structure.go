package quality

import (
	"fmt"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// IssueLevel grades a structural finding.
type IssueLevel string

const (
	LevelError   IssueLevel = "error"
	LevelWarning IssueLevel = "warning"
)

// Issue is one structural finding about an imported workflow.
type Issue struct {
	Level   IssueLevel `json:"level"`
	NodeID  string     `json:"node_id,omitempty"`
	Message string     `json:"message"`
}

// Inspect checks structure independently of the rubric: unique ids and names,
// connections that resolve, a trigger and no disconnected nodes.
func (v *Validator) Inspect(d *models.Draft) []Issue {
	issues := []Issue{}

	ids := make(map[string]bool, len(d.Nodes))
	names := make(map[string]bool, len(d.Nodes))

	var hasTrigger bool

	for _, n := range d.Nodes {
		if n.ID == "" {
			issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("node %q has no id", n.Name)})
		} else if ids[n.ID] {
			issues = append(issues, Issue{Level: LevelError, NodeID: n.ID, Message: fmt.Sprintf("duplicate node id %q", n.ID)})
		}

		if names[n.Name] {
			issues = append(issues, Issue{Level: LevelError, NodeID: n.ID, Message: fmt.Sprintf("duplicate node name %q", n.Name)})
		}

		ids[n.ID] = true
		names[n.Name] = true

		if v.registry.IsTrigger(n.Kind) {
			hasTrigger = true
		}
	}

	for _, c := range d.Connections {
		if !ids[c.Source] {
			issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("connection from unknown node %q", c.Source)})
		}

		if !ids[c.Target] {
			issues = append(issues, Issue{Level: LevelError, NodeID: c.Source, Message: fmt.Sprintf("connection to unknown node %q", c.Target)})
		}
	}

	if !hasTrigger {
		issues = append(issues, Issue{Level: LevelWarning, Message: "workflow has no trigger node"})
	}

	for _, n := range d.Orphans(v.Exempt) {
		issues = append(issues, Issue{Level: LevelWarning, NodeID: n.ID, Message: fmt.Sprintf("node %q is not connected", n.Name)})
	}

	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == LevelError {
			return true
		}
	}

	return false
}
