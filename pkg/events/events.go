// Package events defines the lifecycle notifications of conversations and
// workflow generation.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

type EventType string

// Topic all lifecycle events are published on.
const Topic = "flowmaker.events"

// Message metadata set by publishers. The session key doubles as the Kafka
// partition key so one session's events stay ordered.
const (
	SessionMetadataKey   = "session_id"
	EventTypeMetadataKey = "event_type"
)

const (
	// Conversation events.
	ConversationStartedEvent EventType = "conversation.started"
	QuestionAnsweredEvent    EventType = "question.answered"

	// Generation events.
	GenerationStartedEvent          EventType = "generation.started"
	GenerationAttemptCompletedEvent EventType = "generation.attempt.completed"
	GenerationCompletedEvent        EventType = "generation.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
		Metadata:  make(map[string]any),
	}
}

type ConversationStarted struct {
	BaseEvent

	Request    string `json:"request"`
	Complexity int    `json:"complexity"`
	Route      string `json:"route"`
	Questions  int    `json:"questions"`
}

func (e ConversationStarted) GetType() EventType {
	return ConversationStartedEvent
}

type QuestionAnswered struct {
	BaseEvent

	QuestionID   string   `json:"question_id"`
	Category     string   `json:"category"`
	Answer       []string `json:"answer"`
	Status       string   `json:"status"`
	NewQuestions int      `json:"new_questions"`
}

func (e QuestionAnswered) GetType() EventType {
	return QuestionAnsweredEvent
}

type GenerationStarted struct {
	BaseEvent

	Tier        string `json:"tier"`
	MaxAttempts int    `json:"max_attempts"`
	Forced      bool   `json:"forced,omitempty"`
}

func (e GenerationStarted) GetType() EventType {
	return GenerationStartedEvent
}

type GenerationAttemptCompleted struct {
	BaseEvent

	Attempt   int           `json:"attempt"`
	Score     int           `json:"score"`
	NodeCount int           `json:"node_count"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (e GenerationAttemptCompleted) GetType() EventType {
	return GenerationAttemptCompletedEvent
}

type GenerationCompleted struct {
	BaseEvent

	Score       int           `json:"score"`
	Grade       string        `json:"grade"`
	Accepted    bool          `json:"accepted"`
	Placeholder bool          `json:"placeholder"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

func (e GenerationCompleted) GetType() EventType {
	return GenerationCompletedEvent
}

// Decode unmarshals payload into a pointer to the concrete event of eventType.
func Decode(eventType EventType, payload []byte) (any, error) {
	var event any

	switch eventType {
	case ConversationStartedEvent:
		event = &ConversationStarted{}
	case QuestionAnsweredEvent:
		event = &QuestionAnswered{}
	case GenerationStartedEvent:
		event = &GenerationStarted{}
	case GenerationAttemptCompletedEvent:
		event = &GenerationAttemptCompleted{}
	case GenerationCompletedEvent:
		event = &GenerationCompleted{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}

	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}

	return event, nil
}
