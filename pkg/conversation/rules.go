package conversation

import (
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// followUpRule spawns a question when an answer to Category contains any of
// Match (case-insensitive).
type followUpRule struct {
	ID       string
	Category models.QuestionCategory
	Match    []string
	Ask      questionSpec
}

// followUpRules fire in table order. Every matching rule fires, at most once
// per parent question, and only while the session has no question of the
// spawned category and the spawned requirement is still unset.
var followUpRules = []followUpRule{
	{
		ID:       "webhook-auth",
		Category: models.CategoryTrigger,
		Match:    []string{"webhook"},
		Ask: questionSpec{
			Category: models.CategoryAuth,
			Key:      models.ReqAuthType,
			Prompt:   "How should the webhook be secured?",
			Options: []string{
				"API key in header (recommended)",
				"Basic authentication",
				"No authentication (not recommended)",
			},
		},
	},
	{
		ID:       "schedule-frequency",
		Category: models.CategoryTrigger,
		Match:    []string{"schedule"},
		Ask: questionSpec{
			Category: models.CategoryFrequency,
			Key:      models.ReqScheduleCron,
			Prompt:   "How often should it run?",
			Options: []string{
				"Every hour",
				"Daily at specific time",
				"Weekly",
				"Custom schedule",
			},
			Required: true,
		},
	},
	{
		ID:       "api-auth",
		Category: models.CategoryDataSource,
		Match:    []string{"api"},
		Ask:      specFor(models.CategoryAuth),
	},
	{
		ID:       "validation-dedup",
		Category: models.CategoryValidation,
		Match:    []string{"yes"},
		Ask: questionSpec{
			Category: models.CategoryDedup,
			Key:      models.ReqNeedsDedup,
			Prompt:   "Should duplicate records be checked?",
			Options: []string{
				"Yes - Check in database",
				"Yes - Check in spreadsheet",
				"No - Allow duplicates",
			},
		},
	},
	{
		ID:       "alerts-channel",
		Category: models.CategoryErrorHandling,
		Match:    []string{"alert"},
		Ask: questionSpec{
			Category: models.CategoryNotification,
			Key:      models.ReqNotification,
			Prompt:   "Where should failure alerts go?",
			Options: []string{
				"Slack",
				"Email",
				"Microsoft Teams",
			},
		},
	},
	{
		ID:       "output-email-service",
		Category: models.CategoryOutput,
		Match:    []string{"email", "gmail"},
		Ask:      specFor(models.CategoryEmailService),
	},
	{
		ID:       "output-database",
		Category: models.CategoryOutput,
		Match:    []string{"database"},
		Ask: questionSpec{
			Category: models.CategoryDatabase,
			Key:      models.ReqDatabase,
			Prompt:   "Which database should results be written to?",
			Options: []string{
				"PostgreSQL",
				"MySQL",
				"MongoDB",
			},
			Required: true,
		},
	},
}

func (r followUpRule) matches(category models.QuestionCategory, answer string) bool {
	if r.Category != category {
		return false
	}

	lower := strings.ToLower(answer)
	for _, m := range r.Match {
		if strings.Contains(lower, m) {
			return true
		}
	}

	return false
}

// followUps evaluates the rule table against an answered question and returns
// the specs to ask, in table order, within the session's remaining budget.
func followUps(s *models.Session, q *models.Question, budget int) []followUpRule {
	var out []followUpRule

	answer := q.AnswerText()

	for _, rule := range followUpRules {
		if len(out) >= budget {
			break
		}

		if !rule.matches(q.Category, answer) || fired(s, q.ID, rule.ID) {
			continue
		}

		if hasCategory(s, rule.Ask.Category) || s.Requirements.Has(rule.Ask.Key) {
			continue
		}

		// two rules in one pass may target the same category
		duplicate := false
		for _, o := range out {
			if o.Ask.Category == rule.Ask.Category {
				duplicate = true
			}
		}

		if !duplicate {
			out = append(out, rule)
		}
	}

	return out
}

func fired(s *models.Session, parentID, ruleID string) bool {
	for _, q := range s.Questions {
		if q.CreatedFrom == parentID && q.RuleID == ruleID {
			return true
		}
	}

	return false
}

func hasCategory(s *models.Session, category models.QuestionCategory) bool {
	for _, q := range s.Questions {
		if q.Category == category {
			return true
		}
	}

	return false
}
