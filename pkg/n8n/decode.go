package n8n

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

var (
	ErrNoJSON  = errors.New("no JSON object found in response")
	ErrNoNodes = errors.New("workflow has no nodes")
)

const fenceMarker = "```"

// ExtractJSON finds the workflow object in model output. It accepts a bare
// object, a fenced ```json block, or the span between the first '{' and the
// last '}'.
func ExtractJSON(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	if block, ok := fenced(text, fenceMarker+"json"); ok && json.Valid([]byte(block)) {
		return block, nil
	}

	if block, ok := fenced(text, fenceMarker); ok && json.Valid([]byte(block)) {
		return block, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")

	if start >= 0 && end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", ErrNoJSON
}

func fenced(text, opener string) (string, bool) {
	i := strings.Index(text, opener)
	if i < 0 {
		return "", false
	}

	rest := text[i+len(opener):]

	j := strings.Index(rest, fenceMarker)
	if j < 0 {
		return "", false
	}

	return strings.TrimSpace(rest[:j]), true
}

// Decode parses model output into a workflow document. A top-level
// {"workflow": {...}} envelope is unwrapped.
func Decode(text string) (Workflow, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Workflow{}, err
	}

	var envelope struct {
		Workflow *Workflow `json:"workflow"`
	}

	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Workflow != nil && len(envelope.Workflow.Nodes) > 0 {
		return *envelope.Workflow, nil
	}

	var wf Workflow
	if err := json.Unmarshal([]byte(raw), &wf); err != nil {
		return Workflow{}, fmt.Errorf("failed to decode workflow: %w", err)
	}

	if len(wf.Nodes) == 0 {
		return Workflow{}, ErrNoNodes
	}

	return wf, nil
}

// DecodeDraft parses model output straight into a draft.
func DecodeDraft(text string) (*models.Draft, error) {
	wf, err := Decode(text)
	if err != nil {
		return nil, err
	}

	return ToDraft(wf), nil
}
