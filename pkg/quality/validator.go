// Package quality scores workflow drafts against the 100-point rubric.
package quality

import (
	"fmt"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

const (
	PassThreshold = 80

	maxNodeCount      = 20
	maxErrorHandling  = 20
	maxCredentials    = 15
	maxParameters     = 15
	maxFlowComplexity = 15
	maxDocumentation  = 10
	maxConnectivity   = 5

	flowFeaturePoints = 5
	listedNames       = 5
)

// Validator scores drafts against a node catalog. It holds no mutable state.
type Validator struct {
	registry *registry.Registry
}

func NewValidator(reg *registry.Registry) *Validator {
	return &Validator{registry: reg}
}

// Score computes a fresh report. Calling it twice on the same draft yields
// identical reports.
func (v *Validator) Score(d *models.Draft, tier models.Tier) models.QualityReport {
	lines := []line{
		v.nodeCount(d, tier),
		v.errorHandling(d),
		v.credentials(d),
		v.parameters(d),
		v.flowComplexity(d),
		v.documentation(d, tier),
		v.connectivity(d),
	}

	report := models.QualityReport{
		Tier:         tier,
		Subscores:    make([]models.Subscore, 0, len(lines)),
		Deficiencies: []models.Deficiency{},
	}

	for _, l := range lines {
		score := min(max(l.score, 0), l.max)
		report.Total += score
		report.Subscores = append(report.Subscores, models.Subscore{Category: l.category, Score: score, Max: l.max})

		if score == l.max {
			continue
		}

		severity := models.SeverityWarning
		if score*2 < l.max {
			severity = models.SeverityCritical
		}

		report.Deficiencies = append(report.Deficiencies, models.Deficiency{
			Severity: severity,
			Category: l.category,
			Message:  l.message,
		})
	}

	report.Total = min(max(report.Total, 0), 100)
	report.Passed = report.Total >= PassThreshold && MeetsTierMinimum(report)
	report.Grade = Grade(report.Total)

	return report
}

// MeetsTierMinimum reports whether the scored draft reached the node minimum
// of its tier. Simple drafts are not held to it.
func MeetsTierMinimum(report models.QualityReport) bool {
	if report.Tier == models.TierSimple {
		return true
	}

	count, ok := report.Subscore(models.ScoreNodeCount)

	return ok && count.Score >= count.Max
}

// Grade maps a total to a letter.
func Grade(total int) string {
	switch {
	case total >= 90:
		return "A"
	case total >= 80:
		return "B"
	case total >= 70:
		return "C"
	case total >= 60:
		return "D"
	default:
		return "F"
	}
}

type line struct {
	category models.ScoreCategory
	score    int
	max      int
	message  string
}

func (v *Validator) functional(d *models.Draft) []*models.Node {
	out := make([]*models.Node, 0, len(d.Nodes))

	for _, n := range d.Nodes {
		if !v.registry.IsAnnotation(n.Kind) {
			out = append(out, n)
		}
	}

	return out
}

func (v *Validator) nodeCount(d *models.Draft, tier models.Tier) line {
	count := len(v.functional(d))
	target := tier.MinNodes()

	return line{
		category: models.ScoreNodeCount,
		score:    min(maxNodeCount, maxNodeCount*count/target),
		max:      maxNodeCount,
		message:  fmt.Sprintf("Node count %d is below the %s tier minimum of %d", count, tier, target),
	}
}

// errorHandling is normalized so that 50% coverage earns full points.
func (v *Validator) errorHandling(d *models.Draft) line {
	var (
		eligible  int
		uncovered []string
	)

	for _, n := range v.functional(d) {
		if !v.registry.IsCritical(n.Kind) {
			continue
		}

		eligible++

		if !n.HasErrorPolicy() {
			uncovered = append(uncovered, n.Name)
		}
	}

	l := line{category: models.ScoreErrorHandling, score: maxErrorHandling, max: maxErrorHandling}
	if eligible == 0 {
		return l
	}

	covered := eligible - len(uncovered)
	l.score = min(maxErrorHandling, maxErrorHandling*covered*2/eligible)
	l.message = fmt.Sprintf("Error handling covers %d of %d external nodes (%d%%), at least 50%% required; missing on %s",
		covered, eligible, covered*100/eligible, names(uncovered))

	return l
}

func (v *Validator) credentials(d *models.Draft) line {
	var (
		needing int
		missing []string
	)

	for _, n := range v.functional(d) {
		credType := v.registry.CredentialType(n.Kind)
		if credType == "" {
			continue
		}

		needing++

		if _, ok := n.Credentials[credType]; !ok {
			missing = append(missing, n.Name)
		}
	}

	l := line{category: models.ScoreCredentials, score: maxCredentials, max: maxCredentials}
	if needing == 0 {
		return l
	}

	l.score = maxCredentials * (needing - len(missing)) / needing
	l.message = fmt.Sprintf("%d of %d nodes requiring credentials have none: %s", len(missing), needing, names(missing))

	return l
}

func (v *Validator) parameters(d *models.Draft) line {
	nodes := v.functional(d)

	l := line{category: models.ScoreParameters, score: maxParameters, max: maxParameters}
	if len(nodes) == 0 {
		return l
	}

	var (
		complete int
		problems []string
	)

	for _, n := range nodes {
		found := v.registry.ValidateNode(n)
		if len(found) == 0 {
			complete++

			continue
		}

		for _, p := range found {
			problems = append(problems, p.String())
		}
	}

	l.score = maxParameters * complete / len(nodes)
	l.message = fmt.Sprintf("%d of %d nodes have incomplete parameters: %s",
		len(nodes)-complete, len(nodes), strings.Join(truncate(problems), "; "))

	return l
}

func (v *Validator) flowComplexity(d *models.Draft) line {
	var branch, merge, transform bool

	for _, n := range d.Nodes {
		switch v.registry.CategoryOf(n.Kind) {
		case registry.CategoryBranch:
			branch = true
		case registry.CategoryMerge:
			merge = true
		case registry.CategoryTransform:
			transform = true
		}
	}

	var (
		score   int
		lacking []string
	)

	for _, f := range []struct {
		present bool
		name    string
	}{{branch, "branching"}, {merge, "merge"}, {transform, "transform"}} {
		if f.present {
			score += flowFeaturePoints
		} else {
			lacking = append(lacking, f.name)
		}
	}

	return line{
		category: models.ScoreFlowComplexity,
		score:    score,
		max:      maxFlowComplexity,
		message:  "Flow has no " + strings.Join(lacking, ", ") + " nodes",
	}
}

func (v *Validator) documentation(d *models.Draft, tier models.Tier) line {
	notes := len(d.Nodes) - len(v.functional(d))
	target := tier.DocumentationTarget()

	return line{
		category: models.ScoreDocumentation,
		score:    min(maxDocumentation, maxDocumentation*notes/target),
		max:      maxDocumentation,
		message:  fmt.Sprintf("Documentation has %d sticky notes, the %s tier target is %d", notes, tier, target),
	}
}

func (v *Validator) connectivity(d *models.Draft) line {
	orphans := d.Orphans(v.Exempt)

	orphanNames := make([]string, 0, len(orphans))
	for _, n := range orphans {
		orphanNames = append(orphanNames, n.Name)
	}

	return line{
		category: models.ScoreConnectivity,
		score:    maxConnectivity - len(orphans),
		max:      maxConnectivity,
		message:  fmt.Sprintf("%d orphan nodes: %s", len(orphans), names(orphanNames)),
	}
}

// Exempt reports whether a node may legitimately have no connections.
func (v *Validator) Exempt(n *models.Node) bool {
	return v.registry.IsTrigger(n.Kind) || v.registry.IsAnnotation(n.Kind)
}

func truncate(items []string) []string {
	if len(items) <= listedNames {
		return items
	}

	return append(items[:listedNames:listedNames], fmt.Sprintf("and %d more", len(items)-listedNames))
}

func names(items []string) string {
	return strings.Join(truncate(items), ", ")
}
