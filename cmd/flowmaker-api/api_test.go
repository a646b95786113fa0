package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/conversation"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/metrics"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/memory"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	m := metrics.New()
	engine := conversation.NewEngine(nil, log.Discard())
	service := services.NewConversation(engine, memory.NewPersistence(), log.Discard(), services.WithMetrics(m))

	api := NewAPI(log.Discard(), service, registry.Default(), patterns.Default(), m, time.Minute)

	return api.App()
}

func get(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(data)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "n8n Flow Maker API", body)
}

func TestAPI_Liveness(t *testing.T) {
	app := setupTestApp(t)

	status, body := get(t, app, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
}

func TestAPI_MetricsEndpoint(t *testing.T) {
	app := setupTestApp(t)

	status, _ := get(t, app, http.MethodPost, "/conversations", `{"request":"send me an email every day"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := get(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `flowmaker_conversation_events_total{event="started"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestAPI_RoutesAreRegistered(t *testing.T) {
	app := setupTestApp(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/catalog/nodes", http.StatusOK},
		{http.MethodGet, "/catalog/patterns", http.StatusOK},
		{http.MethodGet, "/conversations/missing", http.StatusNotFound},
		{http.MethodGet, "/conversations/missing/summary", http.StatusNotFound},
		{http.MethodDelete, "/conversations/missing", http.StatusNotFound},
		{http.MethodPost, "/conversations/missing/generate", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, body := get(t, app, tt.method, tt.path, "")
			assert.Equal(t, tt.status, status, body)
		})
	}
}
