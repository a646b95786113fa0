// Package complexity scores free-text automation requests and finalized
// requirement sets on a 1-10 scale.
package complexity

import (
	"slices"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

const (
	MinScore = 1
	MaxScore = 10

	targetedThreshold = 4
	fullThreshold     = 7
)

// Analyze scores a request and reports the signals it found. It is pure and
// deterministic.
func Analyze(request string) models.Analysis {
	t := normalize(request)

	a := models.Analysis{
		TriggerType:  t.first(triggerVocabulary),
		Category:     Categorize(request),
		Integrations: []string{},
		Outputs:      []string{},
	}

	hasAction := t.any(actionWords)

	for _, svc := range services {
		if !t.any(svc.keywords) {
			continue
		}

		if svc.destination && hasAction {
			a.Outputs = append(a.Outputs, svc.name)
		} else {
			a.Integrations = append(a.Integrations, svc.name)
		}
	}

	if len(a.Integrations) > 0 && t.any(dataSourceWords) {
		a.DataSource = a.Integrations[0]
	}

	a.Signals = models.Signals{
		HasTrigger:            a.TriggerType != "",
		HasDataSource:         t.any(dataSourceWords),
		HasAction:             hasAction,
		MentionsDatabase:      t.any(serviceKeywords("database")),
		MentionsEmail:         t.any(serviceKeywords("email")),
		MentionsWebhook:       a.TriggerType == TriggerWebhook || t.has("webhook"),
		MentionsSchedule:      a.TriggerType == TriggerSchedule,
		MentionsAPI:           t.any(serviceKeywords("api")),
		MentionsSync:          t.any(syncWords),
		MentionsNotification:  t.any(notificationWords),
		MentionsValidation:    t.any(dimensionKeywords(DimValidation)),
		MentionsDedup:         t.any(dimensionKeywords(DimDedup)),
		MentionsBranching:     t.any(dimensionKeywords(DimBranching)),
		MentionsErrorHandling: t.any(dimensionKeywords(DimErrorHandling)),
	}

	score := 1
	if a.Signals.HasTrigger {
		score = 2
	}

	implied := impliedDimensions(t)

	for _, dim := range dimensionVocabulary {
		switch matches := t.count(dim.keywords); {
		case matches >= 2:
			score += 4
		case matches == 1:
			score += 3
		case slices.Contains(implied, dim.name):
			score += 2
			a.Implied = append(a.Implied, dim.name)
		}
	}

	score += len(a.Integrations) + len(a.Outputs)

	a.Score = clamp(score)
	a.Tier = models.TierForScore(a.Score)
	a.Route = RouteForScore(a.Score)

	return a
}

// Categorize classifies a request into a workflow category.
func Categorize(request string) string {
	if c := normalize(request).first(categoryRules); c != "" {
		return c
	}

	return CategoryGeneric
}

// EmailService names the email provider a request mentions, if any.
func EmailService(request string) string {
	return normalize(request).first(emailServices)
}

// RouteForScore picks the dialogue depth for a score.
func RouteForScore(score int) models.Route {
	switch {
	case score >= fullThreshold:
		return models.RouteFull
	case score >= targetedThreshold:
		return models.RouteTargeted
	default:
		return models.RouteDirect
	}
}

// ScoreRequirements re-derives a score from a finalized requirement set using
// the same additive weights as Analyze. A dimension counts as qualified when
// its detail key is also present.
func ScoreRequirements(reqs *models.RequirementSet) int {
	score := 1
	if reqs.String(models.ReqTriggerType) != "" {
		score = 2
	}

	errorDetail := reqs.Bool(models.ReqNeedsRetry) || reqs.Bool(models.ReqNeedsErrorAlerts) ||
		reqs.Bool(models.ReqNeedsErrorLogging)

	dimensions := []struct {
		enabled   bool
		qualified bool
	}{
		{
			enabled:   reqs.Bool(models.ReqNeedsValidation),
			qualified: reqs.String(models.ReqValidationType) != "",
		},
		{
			enabled:   reqs.Bool(models.ReqNeedsDedup),
			qualified: reqs.String(models.ReqDedupTarget) != "",
		},
		{
			enabled:   reqs.Bool(models.ReqNeedsBranching) || reqs.String(models.ReqRoutingRules) != "",
			qualified: reqs.String(models.ReqRoutingRules) != "",
		},
		{
			enabled:   reqs.Bool(models.ReqNeedsErrorHandling),
			qualified: errorDetail,
		},
	}

	for _, d := range dimensions {
		switch {
		case d.enabled && d.qualified:
			score += 4
		case d.enabled:
			score += 3
		}
	}

	outputs := reqs.List(models.ReqOutputs)
	score += len(outputs)

	for _, integration := range reqs.List(models.ReqIntegrations) {
		if !slices.Contains(outputs, integration) {
			score++
		}
	}

	return clamp(score)
}

// TierFor is the generation tier: the higher of the initial analysis and the
// finalized requirements.
func TierFor(initial int, reqs *models.RequirementSet) models.Tier {
	return models.TierForScore(max(initial, ScoreRequirements(reqs)))
}

// Seed turns an analysis into the starting requirement set. Only explicit
// mentions are recorded; implied dimensions are left for the dialogue.
func Seed(request string, a models.Analysis) *models.RequirementSet {
	reqs := models.NewRequirementSet()

	reqs.SetString(models.ReqWorkflowCategory, a.Category)

	if a.TriggerType != "" {
		reqs.SetString(models.ReqTriggerType, a.TriggerType)
	}

	if a.DataSource != "" {
		reqs.SetString(models.ReqDataSource, a.DataSource)
	}

	if len(a.Outputs) > 0 {
		reqs.SetList(models.ReqOutputs, a.Outputs)
	}

	if len(a.Integrations) > 0 {
		reqs.SetList(models.ReqIntegrations, a.Integrations)
	}

	if a.Signals.MentionsValidation {
		reqs.SetBool(models.ReqNeedsValidation, true)
	}

	if a.Signals.MentionsDedup {
		reqs.SetBool(models.ReqNeedsDedup, true)
	}

	if a.Signals.MentionsBranching {
		reqs.SetBool(models.ReqNeedsBranching, true)
	}

	if a.Signals.MentionsErrorHandling {
		reqs.SetBool(models.ReqNeedsErrorHandling, true)
	}

	if svc := EmailService(request); svc != "" {
		reqs.SetString(models.ReqEmailService, svc)
	}

	return reqs
}

func impliedDimensions(t text) []string {
	var out []string

	for _, d := range domainVocabulary {
		if !t.has(d.word) {
			continue
		}

		for _, dim := range d.dimensions {
			if !slices.Contains(out, dim) {
				out = append(out, dim)
			}
		}
	}

	return out
}

func serviceKeywords(name string) []string {
	for _, s := range services {
		if s.name == name {
			return s.keywords
		}
	}

	return nil
}

func dimensionKeywords(name string) []string {
	for _, d := range dimensionVocabulary {
		if d.name == name {
			return d.keywords
		}
	}

	return nil
}

func clamp(score int) int {
	return min(max(score, MinScore), MaxScore)
}
