package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Category is the structural role of a node kind.
type Category string

const (
	CategoryTrigger    Category = "trigger"
	CategoryAction     Category = "action"
	CategoryAI         Category = "ai"
	CategoryBranch     Category = "branch"
	CategoryMerge      Category = "merge"
	CategoryTransform  Category = "transform"
	CategoryFlow       Category = "flow"
	CategoryAnnotation Category = "annotation"
)

// Well-known kinds the pipeline builds directly.
const (
	KindStickyNote    = "n8n-nodes-base.stickyNote"
	KindManualTrigger = "n8n-nodes-base.manualTrigger"
	KindWebhook       = "n8n-nodes-base.webhook"
	KindSchedule      = "n8n-nodes-base.scheduleTrigger"
	KindNoOp          = "n8n-nodes-base.noOp"
	KindErrorTrigger  = "n8n-nodes-base.errorTrigger"
	KindIf            = "n8n-nodes-base.if"
	KindMerge         = "n8n-nodes-base.merge"
	KindSet           = "n8n-nodes-base.set"
	KindCode          = "n8n-nodes-base.code"
)

// Field is one parameter of a kind.
type Field struct {
	Name        string `yaml:"name"        json:"name"`
	Type        string `yaml:"type"        json:"type"`
	Description string `yaml:"description" json:"description,omitempty"`
	Enum        []any  `yaml:"enum"        json:"enum,omitempty"`
}

// KindSpec is the variant of one node kind: its own required and optional
// fields, credential and error-handling flags.
type KindSpec struct {
	Kind          string         `yaml:"kind"          json:"kind"`
	DisplayName   string         `yaml:"display_name"  json:"display_name"`
	Category      Category       `yaml:"category"      json:"category"`
	Service       string         `yaml:"service"       json:"service,omitempty"`
	Credential    string         `yaml:"credential"    json:"credential,omitempty"`
	Critical      bool           `yaml:"critical"      json:"critical"`
	Outputs       int            `yaml:"outputs"       json:"outputs"`
	Required      []Field        `yaml:"required"      json:"required"`
	Optional      []Field        `yaml:"optional"      json:"optional"`
	TypicalConfig map[string]any `yaml:"typical"       json:"typical_config,omitempty"`

	schema *gojsonschema.Schema
}

// Schema renders the parameter schema of the kind.
func (k *KindSpec) Schema() *models.JSONSchema {
	s := &models.JSONSchema{
		Type:       "object",
		Title:      k.DisplayName,
		Properties: map[string]*models.Property{},
	}

	for _, f := range k.Required {
		s.Required = append(s.Required, f.Name)
		s.Properties[f.Name] = fieldProperty(f)
	}

	for _, f := range k.Optional {
		s.Properties[f.Name] = fieldProperty(f)
	}

	return s
}

func fieldProperty(f Field) *models.Property {
	p := &models.Property{Description: f.Description, Enum: f.Enum}
	if f.Type != "any" {
		p.Type = f.Type
	}

	// non-string fields also accept n8n expressions, so only strings keep a type
	if p.Type != "" && p.Type != "string" {
		p.Type = ""
		p.Enum = nil
	}

	return p
}

func (k *KindSpec) compile() error {
	if k.Kind == "" {
		return ErrEmptyKind
	}

	switch k.Category {
	case CategoryTrigger, CategoryAction, CategoryAI, CategoryBranch, CategoryMerge,
		CategoryTransform, CategoryFlow, CategoryAnnotation:
	default:
		return fmt.Errorf("kind %s: %w: %q", k.Kind, ErrUnknownCategory, k.Category)
	}

	if k.Outputs == 0 {
		k.Outputs = 1
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(k.Schema()))
	if err != nil {
		return fmt.Errorf("kind %s: failed to compile parameter schema: %w", k.Kind, err)
	}

	k.schema = schema

	return nil
}

// Problem is one parameter gap or mismatch of a node.
type Problem struct {
	NodeID   string `json:"node_id"`
	NodeName string `json:"node_name"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.NodeName, p.Message)
}

// Validate checks a node's parameters against the kind. Missing required
// fields come first in declaration order, then type mismatches sorted by field.
func (k *KindSpec) Validate(node *models.Node) []Problem {
	var problems []Problem

	params := node.Parameters
	if params == nil {
		params = map[string]any{}
	}

	for _, f := range k.Required {
		if v, ok := params[f.Name]; !ok || v == nil || v == "" {
			problems = append(problems, Problem{
				NodeID:   node.ID,
				NodeName: node.Name,
				Field:    f.Name,
				Message:  "missing required parameter: " + f.Name,
			})
		}
	}

	if k.schema == nil {
		return problems
	}

	result, err := k.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return append(problems, Problem{NodeID: node.ID, NodeName: node.Name, Message: err.Error()})
	}

	var mismatches []Problem

	for _, e := range result.Errors() {
		if e.Type() == "required" {
			continue
		}

		mismatches = append(mismatches, Problem{
			NodeID:   node.ID,
			NodeName: node.Name,
			Field:    e.Field(),
			Message:  fmt.Sprintf("invalid parameter %s: %s", e.Field(), e.Description()),
		})
	}

	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Field != mismatches[j].Field {
			return mismatches[i].Field < mismatches[j].Field
		}

		return mismatches[i].Message < mismatches[j].Message
	})

	return append(problems, mismatches...)
}

// IsTrigger reports whether the kind starts a workflow.
func (k *KindSpec) IsTrigger() bool {
	return k.Category == CategoryTrigger
}

// CredentialName is the display name used for placeholder credentials.
func (k *KindSpec) CredentialName() string {
	service := k.Service
	if service == "" {
		service = k.DisplayName
	}

	return service + " account"
}

// looksLikeTrigger classifies kinds missing from the catalog by name.
func looksLikeTrigger(kind string) bool {
	return strings.HasSuffix(kind, "Trigger") || strings.HasSuffix(kind, ".webhook")
}
