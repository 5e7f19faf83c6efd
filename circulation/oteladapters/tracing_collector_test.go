package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openshelf/circulation-go/circulation/oteladapters"
)

func Test_NewTracingCollector_Construction(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	assert.NotNil(t, collector, "NewTracingCollector should return non-nil collector")
}

func Test_TracingCollector_StartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	// Start a span with attributes
	attrs := map[string]string{
		"operation": "checkout",
		"store":     "postgres",
	}

	ctx, spanCtx := collector.StartSpan(context.Background(), "circulation.checkout", attrs)

	assert.NotNil(t, ctx, "Context should not be nil")
	assert.NotNil(t, spanCtx, "SpanContext should not be nil")

	// Finish the span to capture it
	collector.FinishSpan(spanCtx, "ok", map[string]string{"result": "ok"})

	// Verify span was created correctly
	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, "circulation.checkout", span.Name, "Span name should match")

	assertSpanHasAttribute(t, span, "operation", "checkout")
	assertSpanHasAttribute(t, span, "store", "postgres")
	assertSpanHasAttribute(t, span, "result", "ok")

	assert.Equal(t, codes.Ok, span.Status.Code, "Span should have OK status")
}

func Test_TracingCollector_FinishSpan_Error(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	// Start and finish span with error status
	_, spanCtx := collector.StartSpan(context.Background(), "circulation.checkout", nil)
	collector.FinishSpan(spanCtx, "error", map[string]string{
		"error_kind": "conflict",
	})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	span := spans[0]
	assert.Equal(t, codes.Error, span.Status.Code, "Span should have Error status")
	assert.Equal(t, "Operation failed", span.Status.Description, "Error description should match")
	assertSpanHasAttribute(t, span, "error_kind", "conflict")
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	testCases := []struct {
		status       string
		expectedCode codes.Code
	}{
		{"ok", codes.Ok},
		{"success", codes.Ok},
		{"completed", codes.Ok},
		{"error", codes.Error},
		{"failed", codes.Error},
		{"cancelled", codes.Error},
		{"timeout", codes.Error},
		{"conflict", codes.Error},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			exporter.Reset()

			_, spanCtx := collector.StartSpan(context.Background(), "status-test", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1, "Expected exactly one span")
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code, "Status code should match for %q", tc.status)
		})
	}
}

func Test_TracingCollector_UnknownStatus_BecomesAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	_, spanCtx := collector.StartSpan(context.Background(), "status-test", nil)
	collector.FinishSpan(spanCtx, "weird-status", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")

	assert.Equal(t, codes.Unset, spans[0].Status.Code, "Unknown status should leave the code unset")
	assertSpanHasAttribute(t, spans[0], "status", "weird-status")
}

func Test_OTelSpanContext_AddAttribute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := trace.NewTracerProvider(trace.WithSyncer(exporter))
	tracer := provider.Tracer("test")

	collector := oteladapters.NewTracingCollector(tracer)

	_, spanCtx := collector.StartSpan(context.Background(), "attribute-test", nil)
	spanCtx.AddAttribute("copy_id", "42")
	collector.FinishSpan(spanCtx, "ok", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "Expected exactly one span")
	assertSpanHasAttribute(t, spans[0], "copy_id", "42")
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, value string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if string(attr.Key) == key && attr.Value.AsString() == value {
			return
		}
	}

	t.Errorf("span %q is missing attribute %s=%s", span.Name, key, value)
}
