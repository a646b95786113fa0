package services

import (
	"fmt"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/n8n"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/quality"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

// ValidationReport is the structural and rubric assessment of an imported workflow.
type ValidationReport struct {
	Valid   bool                 `json:"valid"`
	Issues  []quality.Issue      `json:"issues"`
	Quality models.QualityReport `json:"quality_report"`
}

// Validation checks workflows produced elsewhere.
type Validation struct {
	registry  *registry.Registry
	validator *quality.Validator
}

// NewValidation creates a new validation service.
func NewValidation(reg *registry.Registry) *Validation {
	return &Validation{registry: reg, validator: quality.NewValidator(reg)}
}

// Validate decodes an n8n workflow document and scores it against tier. An
// empty tier is derived from the functional node count.
func (v *Validation) Validate(document string, tier models.Tier) (*ValidationReport, error) {
	const op = "ValidateWorkflow"

	switch tier {
	case "", models.TierSimple, models.TierStandard, models.TierComplex:
	default:
		return nil, NewValidationError(op, "invalid_tier",
			fmt.Sprintf("unknown tier %q", tier), ErrInvalidRequest)
	}

	draft, err := n8n.DecodeDraft(document)
	if err != nil {
		return nil, NewValidationError(op, "invalid_workflow", err.Error(), fmt.Errorf("%w: %w", ErrInvalidWorkflow, err))
	}

	if tier == "" {
		tier = v.tierFor(draft)
	}

	issues := v.validator.Inspect(draft)

	return &ValidationReport{
		Valid:   !quality.HasErrors(issues),
		Issues:  issues,
		Quality: v.validator.Score(draft, tier),
	}, nil
}

// tierFor picks the highest tier whose node target the draft reaches.
func (v *Validation) tierFor(d *models.Draft) models.Tier {
	functional := 0

	for _, n := range d.Nodes {
		if !v.registry.IsAnnotation(n.Kind) {
			functional++
		}
	}

	for _, tier := range []models.Tier{models.TierComplex, models.TierStandard} {
		if functional >= tier.MinNodes() {
			return tier
		}
	}

	return models.TierSimple
}
