package models

import "time"

// Phase is the position of a session in the requirement dialogue.
type Phase string

const (
	PhaseInitial     Phase = "initial"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseQuestioning Phase = "questioning"
	PhaseReady       Phase = "ready"
	PhaseGenerating  Phase = "generating"
	PhaseComplete    Phase = "complete"
)

// Route is the dialogue depth chosen from the complexity score.
type Route string

const (
	RouteDirect   Route = "direct"
	RouteTargeted Route = "targeted"
	RouteFull     Route = "full"
)

// Tier buckets complexity into node-count and documentation targets.
type Tier string

const (
	TierSimple   Tier = "simple"
	TierStandard Tier = "standard"
	TierComplex  Tier = "complex"
)

// MinNodes is the node-count target of a tier.
func (t Tier) MinNodes() int {
	switch t {
	case TierComplex:
		return 35
	case TierStandard:
		return 25
	default:
		return 15
	}
}

// DocumentationTarget is the number of sticky notes a draft of this tier should carry.
func (t Tier) DocumentationTarget() int {
	switch t {
	case TierComplex:
		return 12
	case TierStandard:
		return 8
	default:
		return 5
	}
}

// TierForScore buckets a 1-10 complexity score.
func TierForScore(score int) Tier {
	switch {
	case score >= 7:
		return TierComplex
	case score >= 4:
		return TierStandard
	default:
		return TierSimple
	}
}

// Signals are the requirement dimensions detected in a free-text request.
type Signals struct {
	HasTrigger            bool `json:"has_trigger"`
	HasDataSource         bool `json:"has_data_source"`
	HasAction             bool `json:"has_action"`
	MentionsDatabase      bool `json:"mentions_database"`
	MentionsEmail         bool `json:"mentions_email"`
	MentionsWebhook       bool `json:"mentions_webhook"`
	MentionsSchedule      bool `json:"mentions_schedule"`
	MentionsValidation    bool `json:"mentions_validation"`
	MentionsDedup         bool `json:"mentions_dedup"`
	MentionsBranching     bool `json:"mentions_branching"`
	MentionsErrorHandling bool `json:"mentions_error_handling"`
	MentionsAPI           bool `json:"mentions_api"`
	MentionsSync          bool `json:"mentions_sync"`
	MentionsNotification  bool `json:"mentions_notification"`
}

// Analysis is the outcome of scoring a request.
type Analysis struct {
	Score        int      `json:"score"`
	Tier         Tier     `json:"tier"`
	Route        Route    `json:"route"`
	Category     string   `json:"workflow_category"`
	Signals      Signals  `json:"signals"`
	TriggerType  string   `json:"trigger_type,omitempty"`
	DataSource   string   `json:"data_source,omitempty"`
	Integrations []string `json:"integrations"`
	Outputs      []string `json:"outputs"`
	Implied      []string `json:"implied,omitempty"`
}

// Session is one requirement-gathering conversation.
type Session struct {
	ID             string            `json:"id"`
	Phase          Phase             `json:"phase"`
	InitialRequest string            `json:"initial_request"`
	Analysis       Analysis          `json:"analysis"`
	Questions      []*Question       `json:"questions"`
	Requirements   *RequirementSet   `json:"requirements"`
	Result         *GenerationResult `json:"result,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Question returns the question with the given id, or nil.
func (s *Session) Question(id string) *Question {
	for _, q := range s.Questions {
		if q.ID == id {
			return q
		}
	}

	return nil
}

// NextQuestion returns the first unanswered question in asking order.
// Optional questions are not skipped once the required ones are answered.
func (s *Session) NextQuestion() *Question {
	for _, q := range s.Questions {
		if !q.Answered {
			return q
		}
	}

	return nil
}

// UnansweredRequired lists required questions still pending.
func (s *Session) UnansweredRequired() []*Question {
	var out []*Question

	for _, q := range s.Questions {
		if q.Required && !q.Answered {
			out = append(out, q)
		}
	}

	return out
}

// Progress counts answered questions overall and among required ones.
func (s *Session) Progress() Progress {
	var p Progress

	for _, q := range s.Questions {
		p.Total++
		if q.Answered {
			p.Answered++
		}

		if q.Required {
			p.RequiredTotal++
			if q.Answered {
				p.RequiredAnswered++
			}
		}
	}

	if p.Total > 0 {
		p.Percentage = p.Answered * 100 / p.Total
	} else {
		p.Percentage = 100
	}

	return p
}

// Progress is the answered/total projection of a session.
type Progress struct {
	Answered         int `json:"answered"`
	Total            int `json:"total"`
	RequiredAnswered int `json:"required_answered"`
	RequiredTotal    int `json:"required_total"`
	Percentage       int `json:"percentage"`
}
