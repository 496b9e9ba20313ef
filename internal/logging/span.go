package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one service operation and logs how it ended.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a context whose logger carries the trace and span ids of
// the named operation. A trace id is minted when ctx has none.
func StartSpan(ctx context.Context, name string, attrs ...any) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)
	if traceID := TraceIDFromContext(ctx); traceID == "" {
		traceID = RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	logger = logger.With(slog.String("span_id", spanID), slog.String("span_name", name))
	if parent := SpanIDFromContext(ctx); parent != "" {
		logger = logger.With(slog.String("parent_span_id", parent))
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// End logs the span duration. Failed operations are logged at warn level.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if err != nil {
		s.logger.Warn("operation failed", elapsed, slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("operation completed", elapsed)
}
