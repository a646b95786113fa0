package complexity

import (
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SimpleScheduledEmail(t *testing.T) {
	a := Analyze("send me an email every day")

	assert.Equal(t, 3, a.Score)
	assert.Equal(t, models.RouteDirect, a.Route)
	assert.Equal(t, models.TierSimple, a.Tier)
	assert.Equal(t, TriggerSchedule, a.TriggerType)
	assert.Equal(t, []string{"email"}, a.Outputs)
	assert.Empty(t, a.Integrations)
	assert.Equal(t, "scheduled_task", a.Category)
	assert.True(t, a.Signals.HasTrigger)
	assert.True(t, a.Signals.HasAction)
	assert.True(t, a.Signals.MentionsEmail)
	assert.True(t, a.Signals.MentionsSchedule)
}

func TestAnalyze_DomainVocabularyImpliesDimensions(t *testing.T) {
	a := Analyze("build a lead management system")

	assert.GreaterOrEqual(t, a.Score, 7)
	assert.Equal(t, models.RouteFull, a.Route)
	assert.Equal(t, models.TierComplex, a.Tier)
	assert.False(t, a.Signals.HasTrigger)
	assert.ElementsMatch(t, []string{DimValidation, DimDedup, DimBranching, DimErrorHandling}, a.Implied)
}

func TestAnalyze_ExplicitAndQualifiedDimensions(t *testing.T) {
	a := Analyze("Validate and verify the form data")

	// form trigger 2 + qualified validation 4
	assert.Equal(t, 6, a.Score)
	assert.Equal(t, TriggerForm, a.TriggerType)
	assert.Equal(t, models.RouteTargeted, a.Route)
	assert.True(t, a.Signals.MentionsValidation)
	assert.Empty(t, a.Implied)
}

func TestAnalyze_ClampsToTen(t *testing.T) {
	a := Analyze("When a webhook receives a new lead, validate the email and check for duplicates in Postgres, " +
		"then route high priority leads to Slack and retry on failure")

	assert.Equal(t, MaxScore, a.Score)
	assert.Equal(t, TriggerWebhook, a.TriggerType)
	assert.True(t, a.Signals.MentionsWebhook)
	assert.True(t, a.Signals.MentionsDedup)
	assert.True(t, a.Signals.MentionsBranching)
	assert.True(t, a.Signals.MentionsErrorHandling)
	assert.Contains(t, a.Integrations, "slack")
}

func TestAnalyze_MatchesWholeWords(t *testing.T) {
	a := Analyze("format the quarterly report")

	assert.Empty(t, a.TriggerType)
	assert.Equal(t, MinScore, a.Score)
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	req := "Sync HubSpot contacts into a Google Sheet every hour and alert Slack on errors"

	assert.Equal(t, Analyze(req), Analyze(req))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		request  string
		category string
	}{
		{"send an email to new customers", "email_workflow"},
		{"sync hubspot contacts with google sheets", "data_sync"},
		{"call the rest api for new orders", "api_integration"},
		{"clean up the bucket daily", "scheduled_task"},
		{"filter and transform incoming records", "data_processing"},
		{"alert the team when disk is full", "notification"},
		{"hello there", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			assert.Equal(t, tt.category, Categorize(tt.request))
		})
	}
}

func TestRouteForScore(t *testing.T) {
	assert.Equal(t, models.RouteDirect, RouteForScore(1))
	assert.Equal(t, models.RouteDirect, RouteForScore(3))
	assert.Equal(t, models.RouteTargeted, RouteForScore(4))
	assert.Equal(t, models.RouteTargeted, RouteForScore(6))
	assert.Equal(t, models.RouteFull, RouteForScore(7))
	assert.Equal(t, models.RouteFull, RouteForScore(10))
}

func TestScoreRequirements(t *testing.T) {
	assert.Equal(t, 1, ScoreRequirements(models.NewRequirementSet()))

	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, TriggerWebhook)
	reqs.SetBool(models.ReqNeedsDedup, true)
	assert.Equal(t, 5, ScoreRequirements(reqs))

	reqs.SetString(models.ReqDedupTarget, "database")
	assert.Equal(t, 6, ScoreRequirements(reqs))

	reqs.SetList(models.ReqOutputs, []string{"email"})
	reqs.SetList(models.ReqIntegrations, []string{"email", "api"})
	assert.Equal(t, 8, ScoreRequirements(reqs))

	reqs.SetBool(models.ReqNeedsErrorHandling, true)
	reqs.SetBool(models.ReqNeedsRetry, true)
	assert.Equal(t, MaxScore, ScoreRequirements(reqs))
}

func TestTierFor_TakesTheHigherScore(t *testing.T) {
	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, TriggerWebhook)
	reqs.SetBool(models.ReqNeedsDedup, true)

	assert.Equal(t, models.TierStandard, TierFor(3, reqs))
	assert.Equal(t, models.TierComplex, TierFor(9, reqs))
}

func TestSeed(t *testing.T) {
	req := "When a webhook receives an order, validate it and send a Gmail confirmation"
	reqs := Seed(req, Analyze(req))

	assert.Equal(t, TriggerWebhook, reqs.String(models.ReqTriggerType))
	assert.True(t, reqs.Bool(models.ReqNeedsValidation))
	assert.False(t, reqs.Has(models.ReqNeedsDedup))
	assert.Equal(t, "gmail", reqs.String(models.ReqEmailService))
	require.Equal(t, []string{"email"}, reqs.List(models.ReqOutputs))
}
