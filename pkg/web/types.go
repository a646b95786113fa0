// Package web provides HTTP request and response types for the flow maker API.
package web

import (
	"encoding/json"
	"errors"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

var errAnswerShape = errors.New("answer must be a string or an array of strings")

// StartConversationRequest represents the request body for opening a dialogue.
type StartConversationRequest struct {
	Request string `json:"request" validate:"required,max=4000"`
}

// StartConversationResponse is the initial analysis plus the first questions.
type StartConversationResponse struct {
	SessionID        string             `json:"session_id"`
	Complexity       int                `json:"complexity"`
	Route            models.Route       `json:"route"`
	Analysis         models.Analysis    `json:"analysis"`
	InitialQuestions []*models.Question `json:"initial_questions"`
}

// AnswerValue accepts either a single string or a list of strings.
type AnswerValue []string

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = AnswerValue{single}

		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errAnswerShape
	}

	*a = many

	return nil
}

// AnswerRequest represents the request body for answering one question.
type AnswerRequest struct {
	QuestionID string      `json:"question_id" validate:"required"`
	Answer     AnswerValue `json:"answer"      validate:"required,min=1"`
}

// GenerateRequest represents the optional body of a session generation call.
type GenerateRequest struct {
	Force bool `json:"force"`
}

// DirectGenerateRequest represents a one-shot generation without dialogue.
type DirectGenerateRequest struct {
	Request string `json:"request" validate:"required,max=4000"`
}

// GenerateResponse carries the importable workflow and its assessment.
type GenerateResponse struct {
	SessionID     string               `json:"session_id"`
	Workflow      n8n.Workflow         `json:"workflow"`
	QualityReport models.QualityReport `json:"quality_report"`
	Accepted      bool                 `json:"accepted"`
	Placeholder   bool                 `json:"placeholder,omitempty"`
	Attempts      []models.Attempt     `json:"attempts"`
	Explanation   string               `json:"explanation"`
}

// NewGenerateResponse renders a generation result in export shape.
func NewGenerateResponse(sessionID string, result *models.GenerationResult) GenerateResponse {
	return GenerateResponse{
		SessionID:     sessionID,
		Workflow:      n8n.FromDraft(result.Draft),
		QualityReport: result.Report,
		Accepted:      result.Accepted,
		Placeholder:   result.Placeholder,
		Attempts:      result.Attempts,
		Explanation:   result.Explanation,
	}
}

// ValidateRequest represents a workflow submitted for assessment.
type ValidateRequest struct {
	Workflow json.RawMessage `json:"workflow" validate:"required"`
	Tier     models.Tier     `json:"tier"     validate:"omitempty,oneof=simple standard complex"`
}

// AnalyzeRequest represents the request body for a complexity analysis.
type AnalyzeRequest struct {
	Request string `json:"request" validate:"required,max=4000"`
}

// AnalyzeResponse is the complexity analysis with the requirements it seeds.
type AnalyzeResponse struct {
	Analysis     models.Analysis `json:"analysis"`
	Requirements map[string]any  `json:"requirements"`
}

// NodeResponse represents one catalog kind.
type NodeResponse struct {
	Kind        string            `json:"kind"`
	DisplayName string            `json:"display_name"`
	Category    registry.Category `json:"category"`
	Service     string            `json:"service,omitempty"`
	Credential  string            `json:"credential,omitempty"`
	Critical    bool              `json:"critical"`
	Required    []string          `json:"required"`
	Optional    []string          `json:"optional"`
}

// TransformNodeResponse flattens a kind's fields to their names.
func TransformNodeResponse(spec *registry.KindSpec) NodeResponse {
	response := NodeResponse{
		Kind:        spec.Kind,
		DisplayName: spec.DisplayName,
		Category:    spec.Category,
		Service:     spec.Service,
		Credential:  spec.Credential,
		Critical:    spec.Critical,
		Required:    make([]string, 0, len(spec.Required)),
		Optional:    make([]string, 0, len(spec.Optional)),
	}

	for _, f := range spec.Required {
		response.Required = append(response.Required, f.Name)
	}

	for _, f := range spec.Optional {
		response.Optional = append(response.Optional, f.Name)
	}

	return response
}

// PatternResponse represents one pattern library fragment without its graph.
type PatternResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Tier        models.FragmentTier `json:"tier"`
	Tags        []string            `json:"tags"`
	UseCases    []string            `json:"use_cases,omitempty"`
	Complexity  int                 `json:"complexity"`
	NodeCount   int                 `json:"node_count"`
}

func TransformPatternResponse(f *models.Fragment) PatternResponse {
	return PatternResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Tier:        f.Tier,
		Tags:        f.Tags,
		UseCases:    f.UseCases,
		Complexity:  f.Complexity,
		NodeCount:   f.NodeCount(),
	}
}
