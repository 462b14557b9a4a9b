// Package logger carries structured log fields through context.Context so a
// request or an ingestion run logs with the same identifiers end to end.
package logger

import (
	"context"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const loggerFieldsKey contextKey = iota

// 常用字段名
const (
	FieldRequestID  = "request_id"
	FieldTraceID    = "trace_id"
	FieldSpanID     = "span_id"
	FieldDocumentID = "document_id"
	FieldWeekID     = "week_id"
)

// loggerFields 保持字段写入顺序，输出稳定。
type loggerFields struct {
	keys   []string
	values map[string]any
}

func (lf *loggerFields) clone() *loggerFields {
	c := &loggerFields{values: make(map[string]any, len(lf.keys)+1)}
	c.keys = append(c.keys, lf.keys...)
	for k, v := range lf.values {
		c.values[k] = v
	}
	return c
}

func (lf *loggerFields) set(key string, value any) {
	if _, ok := lf.values[key]; !ok {
		lf.keys = append(lf.keys, key)
	}
	lf.values[key] = value
}

func getLoggerFields(ctx context.Context) *loggerFields {
	if lf, ok := ctx.Value(loggerFieldsKey).(*loggerFields); ok {
		return lf
	}
	return &loggerFields{values: map[string]any{}}
}

// WithFields adds key-value pairs to the context. A trailing key without a
// value and non-string keys are ignored.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	lf := getLoggerFields(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || key == "" {
			continue
		}
		lf.set(key, keysAndValues[i+1])
	}
	return context.WithValue(ctx, loggerFieldsKey, lf)
}

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, FieldRequestID, requestID)
}

// WithDocumentID adds document_id to the context logger fields.
func WithDocumentID(ctx context.Context, documentID string) context.Context {
	if documentID == "" {
		return ctx
	}
	return WithFields(ctx, FieldDocumentID, documentID)
}

// WithWeekID adds week_id to the context logger fields.
func WithWeekID(ctx context.Context, weekID string) context.Context {
	if weekID == "" {
		return ctx
	}
	return WithFields(ctx, FieldWeekID, weekID)
}

// Fields returns the context fields followed by the active span's trace and
// span ids, as a key-value slice.
func Fields(ctx context.Context) []any {
	lf := getLoggerFields(ctx)
	out := make([]any, 0, len(lf.keys)*2+4)
	for _, k := range lf.keys {
		out = append(out, k, lf.values[k])
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		out = append(out, FieldTraceID, sc.TraceID().String(), FieldSpanID, sc.SpanID().String())
	}
	return out
}

// FromContext returns the global logger enriched with the context fields.
func FromContext(ctx context.Context) core.Logger {
	fields := Fields(ctx)
	if len(fields) == 0 {
		return logger.Global()
	}
	return logger.Global().With(fields...)
}
