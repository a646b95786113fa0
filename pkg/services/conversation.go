package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/eventbus"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Conversation runs the requirement dialogue against a session store. Every
// operation on an existing session loads it, applies the engine and saves it
// while holding that session's lock.
type Conversation struct {
	engine      *conversation.Engine
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	locks       *keyedLock
}

type ConversationOption func(*Conversation)

func WithPublisher(p eventbus.EventPublisher) ConversationOption {
	return func(c *Conversation) {
		c.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) ConversationOption {
	return func(c *Conversation) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) ConversationOption {
	return func(c *Conversation) {
		c.tracer = t
	}
}

// NewConversation creates a new conversation service.
func NewConversation(engine *conversation.Engine, persistence persistence.Persistence, logger *slog.Logger, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		engine:      engine,
		persistence: persistence,
		tracer:      otelhelper.Noop(),
		logger:      logger.With("module", "conversation_service"),
		locks:       newKeyedLock(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// HealthCheck checks the health of the persistence layer.
func (c *Conversation) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Start opens and persists a new session.
func (c *Conversation) Start(ctx context.Context, request string) (*models.Session, error) {
	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "conversation.start")
	defer span.End()

	session, err := c.engine.Start(request)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap("StartConversation", err)
	}

	span.SetAttributes(attribute.String(otelhelper.SessionIDKey, session.ID))

	err = c.persistence.SaveSession(ctx, session)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrap("StartConversation", err)
	}

	c.metrics.SessionEvent("started")
	c.publish(ctx, session.ID, events.ConversationStarted{
		BaseEvent:  events.NewBaseEvent(events.ConversationStartedEvent, session.ID),
		Request:    session.InitialRequest,
		Complexity: session.Analysis.Score,
		Route:      string(session.Analysis.Route),
		Questions:  len(session.Questions),
	})

	return session, nil
}

// Answer records an answer on a stored session.
func (c *Conversation) Answer(ctx context.Context, sessionID, questionID string, values []string) (*conversation.AnswerResult, error) {
	const op = "AnswerQuestion"

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "conversation.answer",
		attribute.String(otelhelper.SessionIDKey, sessionID),
		attribute.String(otelhelper.QuestionIDKey, questionID))
	defer span.End()

	var (
		result   conversation.AnswerResult
		category models.QuestionCategory
	)

	err := c.withSession(ctx, op, sessionID, func(session *models.Session) error {
		var err error

		if q := session.Question(questionID); q != nil {
			category = q.Category
		}

		result, err = c.engine.Answer(session, questionID, values)

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	c.metrics.SessionEvent("answered")
	c.publish(ctx, sessionID, events.QuestionAnswered{
		BaseEvent:    events.NewBaseEvent(events.QuestionAnsweredEvent, sessionID),
		QuestionID:   questionID,
		Category:     string(category),
		Answer:       values,
		Status:       string(result.Status),
		NewQuestions: len(result.NewQuestions),
	})

	return &result, nil
}

// Status returns the progress view of a stored session.
func (c *Conversation) Status(ctx context.Context, sessionID string) (*conversation.Status, error) {
	session, err := c.load(ctx, "GetStatus", sessionID)
	if err != nil {
		return nil, err
	}

	status := c.engine.Status(session)

	return &status, nil
}

// Summary returns the digest of a stored session.
func (c *Conversation) Summary(ctx context.Context, sessionID string) (*conversation.Summary, error) {
	session, err := c.load(ctx, "GetSummary", sessionID)
	if err != nil {
		return nil, err
	}

	summary := c.engine.Summary(session)

	return &summary, nil
}

// Session returns a stored session.
func (c *Conversation) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	return c.load(ctx, "GetSession", sessionID)
}

// Generate runs generation for a stored session and persists the result.
func (c *Conversation) Generate(ctx context.Context, sessionID string, force bool) (*models.GenerationResult, error) {
	const op = "Generate"

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "conversation.generate",
		attribute.String(otelhelper.SessionIDKey, sessionID),
		attribute.Bool("flowmaker.generation.forced", force))
	defer span.End()

	var result *models.GenerationResult

	err := c.withSession(ctx, op, sessionID, func(session *models.Session) error {
		var err error

		result, err = c.engine.Generate(ctx, session, force)

		return err
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int(otelhelper.ScoreKey, result.Report.Total))
	c.metrics.SessionEvent("generated")

	return result, nil
}

// GenerateDirect starts a session and generates from it in one step, whatever
// questions the request would have raised.
func (c *Conversation) GenerateDirect(ctx context.Context, request string) (*models.Session, *models.GenerationResult, error) {
	session, err := c.Start(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	result, err := c.Generate(ctx, session.ID, true)
	if err != nil {
		return session, nil, err
	}

	session, err = c.load(ctx, "GenerateDirect", session.ID)
	if err != nil {
		return nil, nil, err
	}

	return session, result, nil
}

// Delete removes a stored session.
func (c *Conversation) Delete(ctx context.Context, sessionID string) error {
	unlock, err := c.locks.Lock(ctx, sessionID)
	if err != nil {
		return wrap("DeleteSession", err)
	}
	defer unlock()

	if _, err := c.load(ctx, "DeleteSession", sessionID); err != nil {
		return err
	}

	return wrap("DeleteSession", c.persistence.DeleteSession(ctx, sessionID))
}

// withSession holds the session lock around load, fn and save. Nothing is
// saved when fn fails.
func (c *Conversation) withSession(ctx context.Context, op, sessionID string, fn func(*models.Session) error) error {
	unlock, err := c.locks.Lock(ctx, sessionID)
	if err != nil {
		return wrap(op, err)
	}
	defer unlock()

	session, err := c.load(ctx, op, sessionID)
	if err != nil {
		return err
	}

	err = fn(session)
	if err != nil {
		return wrap(op, err)
	}

	err = c.persistence.SaveSession(ctx, session)
	if err != nil {
		return wrap(op, err)
	}

	return nil
}

func (c *Conversation) load(ctx context.Context, op, sessionID string) (*models.Session, error) {
	if !persistence.ValidID(sessionID) {
		return nil, wrap(op, persistence.ErrInvalidSessionID)
	}

	session, err := c.persistence.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, wrap(op, err)
	}

	return session, nil
}

func (c *Conversation) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.publisher == nil {
		return
	}

	if err := c.publisher.Publish(ctx, key, event); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
