package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// TracingHandler adds trace_id and span_id to every record logged with a
// context that carries a span.
type TracingHandler struct {
	handler slog.Handler
}

func NewTracingHandler(w io.Writer, opts *slog.HandlerOptions) *TracingHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &TracingHandler{handler: slog.NewJSONHandler(w, opts)}
}

func (h *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		record.AddAttrs(slog.String("request_id", id))
	}
	return h.handler.Handle(ctx, record)
}

func (h *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{handler: h.handler.WithGroup(name)}
}

// NewLogger builds the service logger and installs it as the slog default.
func NewLogger(w io.Writer, service, env string, level slog.Level) *slog.Logger {
	logger := slog.New(NewTracingHandler(w, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", service),
		slog.String("env", env),
	)
	slog.SetDefault(logger)
	return logger
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
