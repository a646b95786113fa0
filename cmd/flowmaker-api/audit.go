package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/eventbus"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/events"
)

// Audit logs the lifecycle events flowing over the bus. With Kafka this sees
// events from every API instance in the consumer group.
type Audit struct {
	logger *slog.Logger
}

func NewAudit(logger *slog.Logger) *Audit {
	return &Audit{logger: logger.With("module", "audit")}
}

// setupEventSubscriptions registers the audit handlers on the bus.
func (a *Audit) setupEventSubscriptions(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.ConversationStartedEvent, a.handleConversationStarted); err != nil {
		return fmt.Errorf("failed to subscribe to conversation.started events: %w", err)
	}

	if err := bus.Handle(events.GenerationAttemptCompletedEvent, a.handleAttemptCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to generation.attempt.completed events: %w", err)
	}

	if err := bus.Handle(events.GenerationCompletedEvent, a.handleGenerationCompleted); err != nil {
		return fmt.Errorf("failed to subscribe to generation.completed events: %w", err)
	}

	a.logger.Info("Event subscriptions configured successfully")

	return nil
}

func (a *Audit) handleConversationStarted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.ConversationStarted)
	if !ok {
		return fmt.Errorf("invalid event type for conversation.started: %T", eventData)
	}

	a.logger.InfoContext(ctx, "Conversation started",
		"session_id", event.SessionID,
		"complexity", event.Complexity,
		"route", event.Route,
		"questions", event.Questions)

	return nil
}

func (a *Audit) handleAttemptCompleted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.GenerationAttemptCompleted)
	if !ok {
		return fmt.Errorf("invalid event type for generation.attempt.completed: %T", eventData)
	}

	if event.Error != "" {
		a.logger.WarnContext(ctx, "Generation attempt failed",
			"session_id", event.SessionID,
			"attempt", event.Attempt,
			"error", event.Error)

		return nil
	}

	a.logger.DebugContext(ctx, "Generation attempt scored",
		"session_id", event.SessionID,
		"attempt", event.Attempt,
		"score", event.Score,
		"node_count", event.NodeCount)

	return nil
}

func (a *Audit) handleGenerationCompleted(ctx context.Context, eventData any) error {
	event, ok := eventData.(*events.GenerationCompleted)
	if !ok {
		return fmt.Errorf("invalid event type for generation.completed: %T", eventData)
	}

	level := slog.LevelInfo
	if !event.Accepted {
		level = slog.LevelWarn
	}

	a.logger.Log(ctx, level, "Generation completed",
		"session_id", event.SessionID,
		"score", event.Score,
		"grade", event.Grade,
		"accepted", event.Accepted,
		"placeholder", event.Placeholder,
		"attempts", event.Attempts,
		"duration", event.Duration)

	return nil
}
