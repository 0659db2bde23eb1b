package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingHandlerAddsContextIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTracingHandler(&buf, nil)).With(slog.String("service", "bankledger"))

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = WithRequestID(ctx, "req-7")

	logger.InfoContext(ctx, "transfer committed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, span.SpanContext().TraceID().String(), line["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), line["span_id"])
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "bankledger", line["service"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewTracingHandler(&buf, nil)).Info("plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "trace_id")
	assert.NotContains(t, line, "request_id")
}

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "bankledger", "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
