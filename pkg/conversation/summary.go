package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// Status is the read-only progress view of a session.
type Status struct {
	SessionID    string             `json:"session_id"`
	Phase        models.Phase       `json:"phase"`
	Score        int                `json:"complexity"`
	Tier         models.Tier        `json:"tier"`
	Route        models.Route       `json:"route"`
	Progress     models.Progress    `json:"progress"`
	Requirements map[string]any     `json:"requirements"`
	NextQuestion *models.Question   `json:"next_question,omitempty"`
	Pending      []*models.Question `json:"pending_required"`
}

// QA is one answered question.
type QA struct {
	QuestionID string                  `json:"question_id"`
	Category   models.QuestionCategory `json:"category"`
	Question   string                  `json:"question"`
	Answer     string                  `json:"answer"`
}

// Summary is the read-only digest used to review a dialogue and to brief
// generation.
type Summary struct {
	SessionID       string         `json:"session_id"`
	InitialRequest  string         `json:"initial_request"`
	Score           int            `json:"complexity"`
	Category        string         `json:"workflow_category"`
	Answers         []QA           `json:"answers"`
	Requirements    map[string]any `json:"requirements"`
	DetailedContext string         `json:"detailed_context"`
}

func (e *Engine) Status(s *models.Session) Status {
	pending := s.UnansweredRequired()
	if pending == nil {
		pending = []*models.Question{}
	}

	return Status{
		SessionID:    s.ID,
		Phase:        s.Phase,
		Score:        s.Analysis.Score,
		Tier:         s.Analysis.Tier,
		Route:        s.Analysis.Route,
		Progress:     s.Progress(),
		Requirements: s.Requirements.Map(),
		NextQuestion: s.NextQuestion(),
		Pending:      pending,
	}
}

func (e *Engine) Summary(s *models.Session) Summary {
	answers := []QA{}

	for _, q := range s.Questions {
		if !q.Answered {
			continue
		}

		answers = append(answers, QA{
			QuestionID: q.ID,
			Category:   q.Category,
			Question:   q.Prompt,
			Answer:     q.AnswerText(),
		})
	}

	category := s.Requirements.String(models.ReqWorkflowCategory)
	if category == "" {
		category = s.Analysis.Category
	}

	return Summary{
		SessionID:       s.ID,
		InitialRequest:  s.InitialRequest,
		Score:           s.Analysis.Score,
		Category:        category,
		Answers:         answers,
		Requirements:    s.Requirements.Map(),
		DetailedContext: DetailedContext(s, e.now()),
	}
}

// contextLines are the requirement lines of the detailed context, in order.
var contextLines = []struct {
	label string
	key   string
}{
	{"Data Source", models.ReqDataSource},
	{"Email Service", models.ReqEmailService},
	{"API Endpoint", models.ReqAPIEndpoint},
	{"Authentication", models.ReqAuthType},
	{"Data Transformations", models.ReqTransformations},
	{"Sync Direction", models.ReqSyncDirection},
	{"Record Matching", models.ReqMatchingStrategy},
	{"Conflict Resolution", models.ReqConflictResolution},
	{"Routing", models.ReqRoutingRules},
	{"Outputs", models.ReqOutputs},
	{"Integrations", models.ReqIntegrations},
	{"Database", models.ReqDatabase},
	{"Notifications", models.ReqNotification},
}

// DetailedContext renders the session's requirements as the specification
// block handed to generation.
func DetailedContext(s *models.Session, now time.Time) string {
	reqs := s.Requirements

	category := reqs.String(models.ReqWorkflowCategory)
	if category == "" {
		category = "generic"
	}

	lines := []string{
		"User Request: " + s.InitialRequest,
		"Workflow Type: " + category,
		"",
		"DETAILED SPECIFICATIONS:",
	}

	if trigger := reqs.String(models.ReqTriggerType); trigger != "" {
		lines = append(lines, "- Trigger: "+trigger)

		if cron := reqs.String(models.ReqScheduleCron); cron != "" {
			line := "  Schedule: " + cron
			if next := NextRun(cron, reqs.String(models.ReqTimezone), now); !next.IsZero() {
				line += fmt.Sprintf(" (next run %s)", next.Format(time.RFC3339))
			}

			lines = append(lines, line)
		} else if freq := reqs.String(models.ReqFrequency); freq != "" {
			lines = append(lines, "  Frequency: "+freq)
		}

		if tz := reqs.String(models.ReqTimezone); tz != "" {
			lines = append(lines, "  Timezone: "+tz)
		}
	}

	for _, l := range contextLines {
		if v := reqs.String(l.key); v != "" && v != "none" {
			lines = append(lines, fmt.Sprintf("- %s: %s", l.label, v))
		}
	}

	if reqs.Bool(models.ReqNeedsValidation) {
		validation := reqs.String(models.ReqValidationType)
		if validation == "" {
			validation = "full"
		}

		lines = append(lines, "- Validation: "+validation)
	}

	if reqs.Bool(models.ReqNeedsDedup) {
		line := "- Duplicate Check: yes"
		if target := reqs.String(models.ReqDedupTarget); target != "" {
			line += " (" + target + ")"
		}

		lines = append(lines, line)
	}

	if reqs.Bool(models.ReqNeedsErrorHandling) {
		var details []string
		if reqs.Bool(models.ReqNeedsRetry) {
			details = append(details, fmt.Sprintf("retry up to %d times", reqs.Int(models.ReqMaxRetries, 3)))
		}

		if reqs.Bool(models.ReqNeedsErrorAlerts) {
			details = append(details, "send alerts on failure")
		}

		if reqs.Bool(models.ReqNeedsErrorLogging) {
			details = append(details, "log errors")
		}

		if len(details) == 0 {
			details = append(details, "continue on error")
		}

		lines = append(lines, "- Error Handling: "+strings.Join(details, ", "))
	}

	// long free-text answers carry detail the keys lose
	for _, q := range s.Questions {
		if q.Answered && q.IsFreeText() && len(q.AnswerText()) > 20 {
			lines = append(lines, fmt.Sprintf("- %s: %s", labelFor(q.Category), q.AnswerText()))
		}
	}

	return strings.Join(lines, "\n")
}

func labelFor(category models.QuestionCategory) string {
	words := strings.Split(string(category), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}

	return strings.Join(words, " ")
}
