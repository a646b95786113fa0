package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/generation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/llm"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/memory"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService() *services.Conversation {
	reg := registry.Default()
	orchestrator := generation.NewOrchestrator(llm.NewBlueprint(reg), reg, log.Discard())

	return services.NewConversation(conversation.NewEngine(orchestrator, log.Discard()), memory.NewPersistence(), log.Discard())
}

func TestChat_GenerateEarly(t *testing.T) {
	var out bytes.Buffer

	c := newChat(testService(), strings.NewReader("build a lead management system\n\n/generate\n"), &out)

	result, err := c.Run(t.Context(), "", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Draft)

	transcript := out.String()
	assert.Contains(t, transcript, "What should the workflow do?")
	assert.Contains(t, transcript, "full route")
	assert.Contains(t, transcript, "[1/")
	assert.Contains(t, transcript, "Generating...")
}

func TestChat_AnswersByNumber(t *testing.T) {
	var out bytes.Buffer

	c := newChat(testService(), strings.NewReader("1\n1\n/generate\n"), &out)

	result, err := c.Run(t.Context(), "build a lead management system", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, out.String(), "[2/")
}

func TestChat_AsksEveryQuestionInOrder(t *testing.T) {
	var out bytes.Buffer

	answers := strings.Join([]string{
		"Manual trigger",
		"The trigger itself (webhook/form data)",
		"No validation needed",
		"Stop the workflow",
		"Slack notification",
		"No routing needed",
	}, "\n")

	c := newChat(testService(), strings.NewReader(answers+"\n"), &out)

	result, err := c.Run(t.Context(), "build a lead management system", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, result)

	transcript := out.String()
	last := -1

	for i := 1; i <= 6; i++ {
		at := strings.Index(transcript, fmt.Sprintf("[%d/6]", i))
		require.Greater(t, at, last, "question %d", i)

		last = at
	}

	assert.NotContains(t, transcript, "[7/")
}

func TestChat_QuitAndEOF(t *testing.T) {
	var out bytes.Buffer

	result, err := newChat(testService(), strings.NewReader("/quit\n"), &out).
		Run(t.Context(), "build a lead management system", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = newChat(testService(), strings.NewReader(""), &out).Run(t.Context(), "", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, result, "no request given")
}

func TestChoices(t *testing.T) {
	q := &models.Question{Options: []string{"Webhook", "Schedule", "Manual trigger"}}

	assert.Equal(t, []string{"Schedule"}, choices(q, "2"))
	assert.Equal(t, []string{"Webhook", "Manual trigger"}, choices(q, "1, 3"))
	assert.Equal(t, []string{"4"}, choices(q, "4"), "out of range is free text")
	assert.Equal(t, []string{"every hour"}, choices(q, "every hour"))
	assert.Equal(t, []string{"3"}, choices(&models.Question{}, "3"))
}
