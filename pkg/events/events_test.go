package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewBaseEvent(ConversationStartedEvent, "session-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, ConversationStartedEvent, event.Type)
	assert.Equal(t, "session-1", event.SessionID)
	assert.False(t, event.Timestamp.Before(before))
	assert.NotNil(t, event.Metadata)
	assert.NotEqual(t, event.ID, NewBaseEvent(ConversationStartedEvent, "session-1").ID)
}

func TestGetType(t *testing.T) {
	tests := []struct {
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{ConversationStarted{}, ConversationStartedEvent},
		{QuestionAnswered{}, QuestionAnsweredEvent},
		{GenerationStarted{}, GenerationStartedEvent},
		{GenerationAttemptCompleted{}, GenerationAttemptCompletedEvent},
		{GenerationCompleted{}, GenerationCompletedEvent},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestGenerationCompleted_JSON(t *testing.T) {
	original := GenerationCompleted{
		BaseEvent: NewBaseEvent(GenerationCompletedEvent, "session-9"),
		Score:     86,
		Grade:     "B",
		Accepted:  true,
		Attempts:  2,
		Duration:  1500 * time.Millisecond,
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"generation.completed"`)
	assert.Contains(t, string(data), `"session_id":"session-9"`)
	assert.NotContains(t, string(data), `"placeholder"`)

	var decoded GenerationCompleted
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Score, decoded.Score)
	assert.Equal(t, original.Duration, decoded.Duration)
}

func TestDecode(t *testing.T) {
	payload, err := json.Marshal(QuestionAnswered{
		BaseEvent:  NewBaseEvent(QuestionAnsweredEvent, "session-3"),
		QuestionID: "q-1",
		Answer:     []string{"Slack", "Email"},
	})
	require.NoError(t, err)

	decoded, err := Decode(QuestionAnsweredEvent, payload)
	require.NoError(t, err)

	event, ok := decoded.(*QuestionAnswered)
	require.True(t, ok)
	assert.Equal(t, "session-3", event.SessionID)
	assert.Equal(t, []string{"Slack", "Email"}, event.Answer)

	_, err = Decode("workflow.executed", payload)
	require.ErrorIs(t, err, ErrUnknownEventType)

	_, err = Decode(GenerationCompletedEvent, []byte("{"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEventType)
}
