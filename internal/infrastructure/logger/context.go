package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	scopeKey
)

// Scope names the request or job a context is working for. Either side
// may be empty; jobs enqueued from a request carry no request id.
type Scope struct {
	RequestID string
	JobID     string
	JobType   string
}

// ScopeOf returns the scope recorded in ctx
func ScopeOf(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey).(Scope)
	return s
}

// WithRequestID scopes ctx to one HTTP request and returns the logger
// that travels with it
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	s := ScopeOf(ctx)
	s.RequestID = requestID
	return attach(ctx, s, l.With(zap.String("request_id", requestID)))
}

// WithJob scopes ctx to one job attempt
func WithJob(ctx context.Context, l *zap.Logger, jobID, jobType string, attempt int) (context.Context, *zap.Logger) {
	s := ScopeOf(ctx)
	s.JobID, s.JobType = jobID, jobType
	return attach(ctx, s, l.With(
		zap.String("job_id", jobID),
		zap.String("job_type", jobType),
		zap.Int("attempt", attempt),
	))
}

func attach(ctx context.Context, s Scope, l *zap.Logger) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, scopeKey, s)
	return context.WithValue(ctx, loggerKey, l), l
}

// Or returns the scoped logger in ctx, or fallback outside a request or job
func Or(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return fallback
}

// L is the scoped logger plus trace_id and span_id of the active span.
// It never returns nil.
//
//	logger.L(ctx).Warn("Health check failed", zap.Error(err))
func L(ctx context.Context) *zap.Logger {
	l := Or(ctx, zap.NewNop())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
