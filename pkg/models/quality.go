package models

import (
	"slices"
	"time"
)

// Severity of a quality deficiency.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// ScoreCategory names one line of the quality rubric.
type ScoreCategory string

const (
	ScoreNodeCount      ScoreCategory = "node_count"
	ScoreErrorHandling  ScoreCategory = "error_handling"
	ScoreCredentials    ScoreCategory = "credentials"
	ScoreParameters     ScoreCategory = "parameters"
	ScoreFlowComplexity ScoreCategory = "flow_complexity"
	ScoreDocumentation  ScoreCategory = "documentation"
	ScoreConnectivity   ScoreCategory = "connectivity"
	ScoreGeneration     ScoreCategory = "generation"
)

// Subscore is the points earned on one rubric line.
type Subscore struct {
	Category ScoreCategory `json:"category"`
	Score    int           `json:"score"`
	Max      int           `json:"max"`
}

// Deficiency is one itemized finding of a quality pass.
type Deficiency struct {
	Severity Severity      `json:"severity"`
	Category ScoreCategory `json:"category"`
	Message  string        `json:"message"`
}

// QualityReport is the scored assessment of a draft.
type QualityReport struct {
	Total        int          `json:"total"`
	Passed       bool         `json:"passed"`
	Grade        string       `json:"grade"`
	Tier         Tier         `json:"tier"`
	Subscores    []Subscore   `json:"subscores"`
	Deficiencies []Deficiency `json:"deficiencies"`
}

// Subscore returns the line for a category.
func (r QualityReport) Subscore(category ScoreCategory) (Subscore, bool) {
	for _, s := range r.Subscores {
		if s.Category == category {
			return s, true
		}
	}

	return Subscore{}, false
}

// WithFailure returns a copy of the report led by a critical generation deficiency.
func (r QualityReport) WithFailure(message string) QualityReport {
	out := r
	out.Passed = false
	out.Subscores = slices.Clone(r.Subscores)
	out.Deficiencies = append([]Deficiency{{
		Severity: SeverityCritical,
		Category: ScoreGeneration,
		Message:  message,
	}}, r.Deficiencies...)

	return out
}

// Attempt summarizes one pass of the generation loop.
type Attempt struct {
	Number   int           `json:"number"`
	Score    int           `json:"score"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// GenerationResult is what the pipeline hands back for a requirement set.
type GenerationResult struct {
	Draft       *Draft        `json:"draft"`
	Report      QualityReport `json:"quality_report"`
	Accepted    bool          `json:"accepted"`
	Placeholder bool          `json:"placeholder"`
	Attempts    []Attempt     `json:"attempts"`
	Fragments   []string      `json:"fragments,omitempty"`
	Explanation string        `json:"explanation"`
}
