// Package llm isolates the text-generation collaborator behind a narrow
// interface: a structured prompt in, candidate n8n workflow JSON out.
package llm

import (
	"context"
	"errors"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

var (
	ErrEmptyResponse = errors.New("generator returned no content")
	ErrMissingBrief  = errors.New("request has no brief")
	ErrMissingAPIKey = errors.New("api key is required")
)

// Request is one generation call.
type Request struct {
	System string
	Prompt string

	// Brief carries the structured inputs the prompt was rendered from. Remote
	// models only read the text; offline generators build from the brief.
	Brief *Brief
}

// Brief is the structured side of a generation request.
type Brief struct {
	Name         string
	Requirements *models.RequirementSet
	Tier         models.Tier
	Fragments    []*models.Fragment
	Feedback     []string
	Attempt      int
}

// Generator produces a workflow document for a request. Implementations must
// honour ctx cancellation; output is not assumed to be deterministic.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
