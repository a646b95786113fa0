// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/google/uuid"
)

// CreateTestSession creates a questioning session with one answered and one
// pending question. Overrides are applied in order.
func CreateTestSession(overrides ...func(*models.Session)) *models.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	answeredAt := now

	reqs := models.NewRequirementSet()
	reqs.SetString(models.ReqTriggerType, "webhook")
	reqs.SetBool(models.ReqNeedsValidation, true)
	reqs.SetInt(models.ReqMaxRetries, 3)
	reqs.SetList(models.ReqOutputs, []string{"slack", "crm"})

	session := &models.Session{
		ID:             uuid.New().String(),
		Phase:          models.PhaseQuestioning,
		InitialRequest: "build a lead management system",
		Analysis: models.Analysis{
			Score:    8,
			Tier:     models.TierComplex,
			Route:    models.RouteFull,
			Category: "generic",
		},
		Questions: []*models.Question{
			{
				ID:         uuid.New().String(),
				Category:   models.CategoryTrigger,
				Prompt:     "How should this workflow be triggered?",
				Options:    []string{"Webhook", "Schedule"},
				Required:   true,
				Answered:   true,
				Answer:     []string{"Webhook"},
				AnsweredAt: &answeredAt,
			},
			{
				ID:       uuid.New().String(),
				Category: models.CategoryOutput,
				Prompt:   "Where should the results go?",
				Options:  []string{"Slack", "CRM"},
				Required: true,
			},
		},
		Requirements: reqs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, override := range overrides {
		override(session)
	}

	return session
}

// WithPhase sets the session phase.
func WithPhase(phase models.Phase) func(*models.Session) {
	return func(s *models.Session) {
		s.Phase = phase
	}
}

// WithCreatedAt sets both timestamps of the session.
func WithCreatedAt(at time.Time) func(*models.Session) {
	return func(s *models.Session) {
		s.CreatedAt = at
		s.UpdatedAt = at
	}
}

// WithResult completes the session with an accepted result around draft.
func WithResult(draft *models.Draft) func(*models.Session) {
	return func(s *models.Session) {
		s.Phase = models.PhaseComplete
		s.Result = &models.GenerationResult{
			Draft:    draft,
			Report:   models.QualityReport{Total: 88, Tier: s.Analysis.Tier},
			Accepted: true,
			Attempts: []models.Attempt{{Number: 1, Score: 88}},
		}
	}
}

// CreateTestDraft creates a linear draft: a webhook trigger followed by n
// HTTP request nodes.
func CreateTestDraft(n int) *models.Draft {
	draft := &models.Draft{
		ID:   uuid.New().String(),
		Name: "Test Workflow",
		Nodes: []*models.Node{{
			ID:          "trigger",
			Name:        "Webhook",
			Kind:        "n8n-nodes-base.webhook",
			TypeVersion: 1,
			Position:    &models.Position{X: 250, Y: 300},
			Parameters:  map[string]any{"path": "test", "httpMethod": "POST"},
		}},
	}

	previous := "trigger"

	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("http-%d", i)
		draft.Nodes = append(draft.Nodes, &models.Node{
			ID:          id,
			Name:        fmt.Sprintf("Call API %d", i),
			Kind:        "n8n-nodes-base.httpRequest",
			TypeVersion: 4,
			Position:    &models.Position{X: 250 + i*250, Y: 300},
			Parameters:  map[string]any{"url": "https://api.example.com", "method": "GET"},
			ErrorPolicy: models.DefaultErrorPolicy(),
		})
		draft.Connect(previous, 0, id)
		previous = id
	}

	return draft
}
