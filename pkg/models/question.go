package models

import (
	"strings"
	"time"
)

// QuestionCategory groups questions by the requirement dimension they fill.
type QuestionCategory string

const (
	CategoryTrigger         QuestionCategory = "trigger"
	CategoryDataSource      QuestionCategory = "data_source"
	CategoryValidation      QuestionCategory = "validation"
	CategoryDedup           QuestionCategory = "dedup"
	CategoryErrorHandling   QuestionCategory = "error_handling"
	CategoryOutput          QuestionCategory = "output"
	CategoryAuth            QuestionCategory = "auth"
	CategoryRouting         QuestionCategory = "routing"
	CategoryEmailService    QuestionCategory = "email_service"
	CategoryFrequency       QuestionCategory = "frequency"
	CategoryTimezone        QuestionCategory = "timezone"
	CategoryAPIDetails      QuestionCategory = "api_details"
	CategoryTransformations QuestionCategory = "transformations"
	CategorySyncDirection   QuestionCategory = "sync_direction"
	CategoryMatching        QuestionCategory = "matching"
	CategoryConflicts       QuestionCategory = "conflicts"
	CategoryNotification    QuestionCategory = "notification"
	CategoryDatabase        QuestionCategory = "database"
)

// Question is one entry of a session's dialogue. Questions are appended and
// answered, never removed.
type Question struct {
	ID          string           `json:"id"`
	Category    QuestionCategory `json:"category"`
	Prompt      string           `json:"prompt"`
	Options     []string         `json:"options"`
	MultiSelect bool             `json:"multi_select"`
	Required    bool             `json:"required"`
	Answered    bool             `json:"answered"`
	Answer      []string         `json:"answer,omitempty"`
	AnsweredAt  *time.Time       `json:"answered_at,omitempty"`
	CreatedFrom string           `json:"created_from,omitempty"`
	RuleID      string           `json:"rule_id,omitempty"`
}

// IsFreeText reports whether the question accepts arbitrary text.
func (q *Question) IsFreeText() bool {
	return len(q.Options) == 0
}

// AnswerText joins the stored answer values.
func (q *Question) AnswerText() string {
	return strings.Join(q.Answer, ", ")
}

func (q *Question) Pending() bool {
	return !q.Answered
}
