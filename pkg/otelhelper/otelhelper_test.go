package otelhelper_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()

	return recorder, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
}

func TestStartSpan_Attributes(t *testing.T) {
	recorder, provider := recordingTracer()

	_, span := otelhelper.StartSpan(t.Context(), provider.Tracer("test"), "generation.attempt",
		attribute.Int(otelhelper.AttemptKey, 2))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "generation.attempt", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int(otelhelper.AttemptKey, 2))
}

func TestSetError(t *testing.T) {
	recorder, provider := recordingTracer()
	tracer := provider.Tracer("test")

	_, failed := otelhelper.StartSpan(t.Context(), tracer, "retrieval.stage")
	otelhelper.SetError(failed, errors.New("index offline"), attribute.String(otelhelper.RetrievalStageKey, "expert"))
	failed.End()

	_, canceled := otelhelper.StartSpan(t.Context(), tracer, "conversation.generate")
	otelhelper.SetError(canceled, fmt.Errorf("generate: %w", context.Canceled))
	canceled.End()

	_, clean := otelhelper.StartSpan(t.Context(), tracer, "conversation.start")
	otelhelper.SetError(clean, nil)
	clean.End()

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "index offline", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
	assert.Contains(t, spans[0].Events()[0].Attributes, attribute.String(otelhelper.RetrievalStageKey, "expert"))

	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "canceled", spans[1].Events()[0].Name)

	assert.Equal(t, codes.Unset, spans[2].Status().Code)
	assert.Empty(t, spans[2].Events())
}

func TestNoop(t *testing.T) {
	_, span := otelhelper.StartSpan(t.Context(), otelhelper.Noop(), "noop")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}
