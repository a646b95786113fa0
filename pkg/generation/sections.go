package generation

import (
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

// Section is a logical part of a workflow, documented with one sticky note.
type Section struct {
	Key         string
	Title       string
	Description string
}

var (
	SectionTrigger    = Section{"trigger", "Workflow Trigger", "Initiates the workflow execution"}
	SectionValidation = Section{"validation", "Validation", "Checks incoming data and stops duplicates before processing"}
	SectionBranching  = Section{"branching", "Conditional Logic", "Routes data based on conditions"}
	SectionProcessing = Section{"processing", "Data Processing", "Transforms and prepares data"}
	SectionAI         = Section{"ai", "AI Processing", "AI-powered content generation and analysis"}
	SectionMerge      = Section{"merge", "Merge Results", "Combines parallel execution paths"}
	SectionOutput     = Section{"output", "Output Actions", "Delivers results to external services"}
)

// sectionOrder is the order notes are added and explanations are grouped in.
var sectionOrder = []Section{
	SectionTrigger,
	SectionValidation,
	SectionBranching,
	SectionProcessing,
	SectionAI,
	SectionMerge,
	SectionOutput,
}

var validationWords = []string{"valid", "verify", "duplicate", "dedup"}

// SectionOf classifies a node. Annotations belong to no section.
func SectionOf(reg *registry.Registry, n *models.Node) (Section, bool) {
	name := strings.ToLower(n.Name)

	switch reg.CategoryOf(n.Kind) {
	case registry.CategoryAnnotation:
		return Section{}, false
	case registry.CategoryTrigger:
		return SectionTrigger, true
	case registry.CategoryAI:
		return SectionAI, true
	case registry.CategoryMerge:
		return SectionMerge, true
	case registry.CategoryBranch:
		if containsAny(name, validationWords) {
			return SectionValidation, true
		}

		return SectionBranching, true
	case registry.CategoryAction:
		return SectionOutput, true
	default:
		if containsAny(name, validationWords) {
			return SectionValidation, true
		}

		return SectionProcessing, true
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}

	return false
}
