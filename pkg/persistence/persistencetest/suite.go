// Package persistencetest holds the behaviour every persistence implementation
// must share.
package persistencetest

import (
	"testing"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises p with the shared persistence contract. The store must start
// empty.
func Run(t *testing.T, p persistence.Persistence) {
	t.Helper()

	t.Run("health check", func(t *testing.T) {
		require.NoError(t, p.HealthCheck(t.Context()))
	})

	t.Run("missing session", func(t *testing.T) {
		_, err := p.SessionByID(t.Context(), "0195f2d4-0000-7000-8000-000000000000")
		assert.ErrorIs(t, err, persistence.ErrSessionNotFound)
	})

	t.Run("save and load round trip", func(t *testing.T) {
		session := testutil.CreateTestSession()

		require.NoError(t, p.SaveSession(t.Context(), session))

		loaded, err := p.SessionByID(t.Context(), session.ID)
		require.NoError(t, err)

		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.Phase, loaded.Phase)
		assert.Equal(t, session.InitialRequest, loaded.InitialRequest)
		assert.Equal(t, session.Analysis.Score, loaded.Analysis.Score)
		assert.True(t, session.CreatedAt.Equal(loaded.CreatedAt))
		require.Len(t, loaded.Questions, 2)
		assert.Equal(t, []string{"Webhook"}, loaded.Questions[0].Answer)
		assert.Equal(t, "webhook", loaded.Requirements.String(models.ReqTriggerType))
		assert.True(t, loaded.Requirements.Bool(models.ReqNeedsValidation))
		assert.Equal(t, 3, loaded.Requirements.Int(models.ReqMaxRetries, 0))
		assert.Equal(t, []string{"slack", "crm"}, loaded.Requirements.List(models.ReqOutputs))
	})

	t.Run("loaded sessions are copies", func(t *testing.T) {
		session := testutil.CreateTestSession()
		require.NoError(t, p.SaveSession(t.Context(), session))

		first, err := p.SessionByID(t.Context(), session.ID)
		require.NoError(t, err)

		first.Phase = models.PhaseReady
		first.Requirements.SetString(models.ReqTriggerType, "schedule")

		second, err := p.SessionByID(t.Context(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseQuestioning, second.Phase)
		assert.Equal(t, "webhook", second.Requirements.String(models.ReqTriggerType))
	})

	t.Run("save overwrites", func(t *testing.T) {
		session := testutil.CreateTestSession()
		require.NoError(t, p.SaveSession(t.Context(), session))

		session.Phase = models.PhaseComplete
		session.Result = &models.GenerationResult{
			Draft:    testutil.CreateTestDraft(2),
			Accepted: true,
			Report:   models.QualityReport{Total: 91, Grade: "A"},
		}
		require.NoError(t, p.SaveSession(t.Context(), session))

		loaded, err := p.SessionByID(t.Context(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PhaseComplete, loaded.Phase)
		require.NotNil(t, loaded.Result)
		assert.Equal(t, 91, loaded.Result.Report.Total)
		assert.Len(t, loaded.Result.Draft.Nodes, 3)
		assert.Len(t, loaded.Result.Draft.Connections, 2)
	})

	t.Run("delete", func(t *testing.T) {
		session := testutil.CreateTestSession()
		require.NoError(t, p.SaveSession(t.Context(), session))

		require.NoError(t, p.DeleteSession(t.Context(), session.ID))

		_, err := p.SessionByID(t.Context(), session.ID)
		require.ErrorIs(t, err, persistence.ErrSessionNotFound)

		require.NoError(t, p.DeleteSession(t.Context(), session.ID), "deleting twice is not an error")
	})

	t.Run("list in creation order", func(t *testing.T) {
		existing, err := p.Sessions(t.Context())
		require.NoError(t, err)

		for _, s := range existing {
			require.NoError(t, p.DeleteSession(t.Context(), s.ID))
		}

		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		older := testutil.CreateTestSession(testutil.WithCreatedAt(base))
		newer := testutil.CreateTestSession(testutil.WithCreatedAt(base.Add(time.Hour)))

		require.NoError(t, p.SaveSession(t.Context(), newer))
		require.NoError(t, p.SaveSession(t.Context(), older))

		sessions, err := p.Sessions(t.Context())
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, older.ID, sessions[0].ID)
		assert.Equal(t, newer.ID, sessions[1].ID)
	})
}
