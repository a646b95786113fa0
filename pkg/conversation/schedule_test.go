package conversation

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrequencyToCron(t *testing.T) {
	tests := []struct {
		answer  string
		want    string
		wantErr bool
	}{
		{answer: "@daily", want: "0 0 * * *"},
		{answer: "0 9 * * 1-5", want: "0 9 * * 1-5"},
		{answer: "Every 15 minutes", want: "*/15 * * * *"},
		{answer: "every 2 hours", want: "0 */2 * * *"},
		{answer: "Hourly", want: "0 * * * *"},
		{answer: "Daily at 8:30am", want: "30 8 * * *"},
		{answer: "every day at 6pm", want: "0 18 * * *"},
		{answer: "Weekly on Monday at 9am", want: "0 9 * * 1"},
		{answer: "every weekday morning", want: "0 9 * * 1-5"},
		{answer: "monthly", want: "0 9 1 * *"},
		{answer: "nightly", want: "0 0 * * *"},
		{answer: "whenever it makes sense", want: ""},
		{answer: "61 * * * *", wantErr: true},
		{answer: "every 90 minutes", wantErr: true},
		{answer: "daily at 25:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			got, err := FrequencyToCron(tt.answer)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAnswer)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRun(t *testing.T) {
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

	next := NextRun("0 9 * * *", "", now)
	assert.True(t, next.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	// New York is on EDT from March 9th 2025
	next = NextRun("0 9 * * *", "America/New_York", now)
	assert.True(t, next.Equal(time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)), next.String())

	assert.True(t, NextRun("not cron", "", now).IsZero())
}

func TestInterpret_ErrorHandlingFlags(t *testing.T) {
	reqs := models.NewRequirementSet()
	q := &models.Question{Category: models.CategoryErrorHandling}

	require.NoError(t, interpret(reqs, q, []string{"Retry failed operations (3 attempts)"}))
	assert.True(t, reqs.Bool(models.ReqNeedsErrorHandling))
	assert.True(t, reqs.Bool(models.ReqNeedsRetry))
	assert.False(t, reqs.Bool(models.ReqNeedsErrorAlerts))
	assert.Equal(t, 3, reqs.Int(models.ReqMaxRetries, 0))

	require.NoError(t, interpret(reqs, q, []string{"Stop the workflow"}))
	assert.False(t, reqs.Bool(models.ReqNeedsErrorHandling))
	assert.False(t, reqs.Has(models.ReqMaxRetries))
	assert.Equal(t, "Stop the workflow", reqs.String(models.AnswerKey(models.CategoryErrorHandling)))
}

func TestInterpret_OutputsAndDataSource(t *testing.T) {
	reqs := models.NewRequirementSet()

	outputs := &models.Question{Category: models.CategoryOutput, MultiSelect: true}
	require.NoError(t, interpret(reqs, outputs, []string{"Slack notification", "Email (Gmail)", "Slack again"}))
	assert.Equal(t, []string{"slack", "email"}, reqs.List(models.ReqOutputs))
	assert.Equal(t, []string{"Slack notification", "Email (Gmail)", "Slack again"},
		reqs.List(models.AnswerKey(models.CategoryOutput)))

	source := &models.Question{Category: models.CategoryDataSource}
	require.NoError(t, interpret(reqs, source, []string{"Google Sheets"}))
	assert.Equal(t, "google_sheets", reqs.String(models.ReqDataSource))
	assert.Contains(t, reqs.List(models.ReqIntegrations), "sheets")

	require.NoError(t, interpret(reqs, source, []string{"Our legacy ERP"}))
	assert.Equal(t, "Our legacy ERP", reqs.String(models.ReqDataSource))
	assert.NotContains(t, reqs.List(models.ReqIntegrations), "sheets")
}

func TestInterpret_ReansweringReplacesDerivedState(t *testing.T) {
	reqs := models.NewRequirementSet()

	trigger := &models.Question{Category: models.CategoryTrigger}
	require.NoError(t, interpret(reqs, trigger, []string{"Webhook"}))
	assert.Equal(t, "webhook", reqs.String(models.ReqTriggerType))

	require.NoError(t, interpret(reqs, trigger, []string{"Whenever finance asks for it"}))
	assert.False(t, reqs.Has(models.ReqTriggerType))
	assert.Equal(t, "Whenever finance asks for it", reqs.String(models.AnswerKey(models.CategoryTrigger)))

	reqs.Add(models.ReqIntegrations, "slack")

	source := &models.Question{Category: models.CategoryDataSource}
	require.NoError(t, interpret(reqs, source, []string{"PostgreSQL database"}))
	require.NoError(t, interpret(reqs, source, []string{"Airtable base"}))
	assert.Equal(t, "airtable", reqs.String(models.ReqDataSource))
	assert.Equal(t, []string{"slack", "airtable"}, reqs.List(models.ReqIntegrations))

	reqs.SetList(models.ReqOutputs, []string{"slack"})

	database := &models.Question{Category: models.CategoryDatabase}
	require.NoError(t, interpret(reqs, database, []string{"MySQL"}))
	assert.Equal(t, []string{"slack", "database"}, reqs.List(models.ReqOutputs))

	require.NoError(t, interpret(reqs, database, []string{"No database"}))
	assert.Equal(t, "none", reqs.String(models.ReqDatabase))
	assert.Equal(t, []string{"slack"}, reqs.List(models.ReqOutputs))
}
