// Package conversation drives the requirement dialogue: it decides which
// questions to ask, interprets answers into a requirement set and decides when
// enough is known to generate.
//
// The engine holds no sessions. Callers load a session, pass it in and persist
// it afterwards, serializing operations on the same session.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/complexity"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/generation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/google/uuid"
)

// AnswerStatus tells the caller what to do after an answer.
type AnswerStatus string

const (
	StatusMoreQuestions   AnswerStatus = "more_questions"
	StatusContinue        AnswerStatus = "continue"
	StatusReadyToGenerate AnswerStatus = "ready_to_generate"
)

// Runner runs the generation pipeline.
type Runner interface {
	Run(ctx context.Context, in generation.Input) (*models.GenerationResult, error)
}

type AnswerResult struct {
	Status       AnswerStatus       `json:"status"`
	NewQuestions []*models.Question `json:"new_questions"`
	NextQuestion *models.Question   `json:"next_question,omitempty"`
}

type Engine struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

func NewEngine(runner Runner, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		runner: runner,
		logger: logger.With("module", "conversation"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start analyzes a request and opens a session with its first batch of
// questions.
func (e *Engine) Start(request string) (*models.Session, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return nil, ErrEmptyRequest
	}

	now := e.now()
	s := &models.Session{
		ID:             e.newID(),
		Phase:          models.PhaseInitial,
		InitialRequest: request,
		Questions:      []*models.Question{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.Analysis = complexity.Analyze(request)
	s.Phase = models.PhaseAnalyzing
	s.Requirements = complexity.Seed(request, s.Analysis)

	limit := questionLimit(s.Analysis.Route)
	for _, c := range initialCategories(s) {
		if len(s.Questions) >= limit {
			break
		}

		s.Questions = append(s.Questions, e.newQuestion(specFor(c), "", ""))
	}

	// a full dialogue always asks at least one required question
	if s.Analysis.Route == models.RouteFull && len(s.Questions) > 0 && len(s.UnansweredRequired()) == 0 {
		s.Questions[0].Required = true
	}

	e.settle(s)

	e.logger.Info("Conversation started",
		"session_id", s.ID,
		"score", s.Analysis.Score,
		"route", s.Analysis.Route,
		"questions", len(s.Questions))

	return s, nil
}

// Answer records an answer, merges it into the requirement set and appends any
// follow-up questions. Re-answering overwrites the previous answer.
func (e *Engine) Answer(s *models.Session, questionID string, values []string) (AnswerResult, error) {
	if s.Phase != models.PhaseQuestioning && s.Phase != models.PhaseReady {
		return AnswerResult{}, &PhaseError{Op: "answer", Phase: s.Phase}
	}

	q := s.Question(questionID)
	if q == nil {
		return AnswerResult{}, ErrQuestionNotFound
	}

	values = cleanValues(values)
	if len(values) == 0 {
		return AnswerResult{}, invalidAnswer("answer to %q is empty", q.Prompt)
	}

	if !q.MultiSelect && len(values) > 1 {
		return AnswerResult{}, invalidAnswer("question %q accepts a single answer", q.Prompt)
	}

	// interpret into a copy so a rejected answer leaves the session untouched
	reqs := s.Requirements.Clone()
	if err := interpret(reqs, q, values); err != nil {
		return AnswerResult{}, err
	}

	now := e.now()
	q.Answered = true
	q.Answer = values
	q.AnsweredAt = &now
	s.Requirements = reqs

	budget := questionLimit(s.Analysis.Route) - len(s.Questions)

	var added []*models.Question

	if budget > 0 {
		for _, rule := range followUps(s, q, budget) {
			fq := e.newQuestion(rule.Ask, q.ID, rule.ID)
			s.Questions = append(s.Questions, fq)
			added = append(added, fq)
		}
	}

	e.settle(s)

	result := AnswerResult{NewQuestions: added, NextQuestion: s.NextQuestion()}

	switch {
	case len(added) > 0:
		result.Status = StatusMoreQuestions
	case s.Phase == models.PhaseReady:
		result.Status = StatusReadyToGenerate
	default:
		result.Status = StatusContinue
	}

	if len(added) > 0 {
		e.logger.Debug("Follow-up questions added", "session_id", s.ID, "parent", q.ID, "count", len(added))
	}

	return result, nil
}

// Generate runs the pipeline on the frozen requirement set. It is valid from
// ready, or from questioning when forced; a completed session returns its
// cached result.
func (e *Engine) Generate(ctx context.Context, s *models.Session, force bool) (*models.GenerationResult, error) {
	if s.Phase == models.PhaseComplete && s.Result != nil {
		return s.Result, nil
	}

	allowed := s.Phase == models.PhaseReady || (force && s.Phase == models.PhaseQuestioning)
	if !allowed {
		return nil, &PhaseError{Op: "generate", Phase: s.Phase}
	}

	if e.runner == nil {
		return nil, ErrNoRunner
	}

	previous := s.Phase
	s.Phase = models.PhaseGenerating
	s.UpdatedAt = e.now()

	reqs := s.Requirements.Freeze()

	in := generation.Input{
		SessionID:    s.ID,
		Name:         WorkflowName(s.InitialRequest),
		Request:      s.InitialRequest,
		Context:      DetailedContext(s, e.now()),
		Requirements: reqs,
		Tier:         complexity.TierFor(s.Analysis.Score, reqs),
		Forced:       force,
	}

	result, err := e.runner.Run(ctx, in)
	if err != nil {
		s.Phase = previous

		return nil, err
	}

	s.Result = result
	s.Phase = models.PhaseComplete
	s.UpdatedAt = e.now()

	return result, nil
}

// settle moves the session between questioning and ready.
func (e *Engine) settle(s *models.Session) {
	if len(s.UnansweredRequired()) > 0 {
		s.Phase = models.PhaseQuestioning
	} else {
		s.Phase = models.PhaseReady
	}

	s.UpdatedAt = e.now()
}

func (e *Engine) newQuestion(spec questionSpec, parentID, ruleID string) *models.Question {
	options := make([]string, len(spec.Options))
	copy(options, spec.Options)

	return &models.Question{
		ID:          e.newID(),
		Category:    spec.Category,
		Prompt:      spec.Prompt,
		Options:     options,
		MultiSelect: spec.MultiSelect,
		Required:    spec.Required,
		CreatedFrom: parentID,
		RuleID:      ruleID,
	}
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))

	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}

var nameStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "me": true, "my": true, "we": true, "our": true,
	"to": true, "want": true, "need": true, "please": true, "build": true, "create": true, "make": true,
}

// WorkflowName derives a short title-cased name from a request.
func WorkflowName(request string) string {
	var words []string

	for _, w := range strings.Fields(request) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if w == "" || nameStopWords[strings.ToLower(w)] {
			continue
		}

		first, size := utf8.DecodeRuneInString(w)
		words = append(words, string(unicode.ToUpper(first))+w[size:])
		if len(words) == 5 {
			break
		}
	}

	if len(words) == 0 {
		return "Generated Workflow"
	}

	return strings.Join(words, " ")
}
