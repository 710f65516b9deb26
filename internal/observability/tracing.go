package observability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecommerce-analytics/internal/metrics"
)

// Span is an in-process trace of one pipeline stage or request. Spans are
// logged on Finish; there is no exporter.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Duration  *time.Duration    `json:"duration,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Status    SpanStatus        `json:"status"`
	Error     string            `json:"error,omitempty"`
}

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

type spanContextKey struct{}

func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		TraceID:   newID(),
		SpanID:    newID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanStatusOK,
		Tags:      make(map[string]string),
	}

	if parent := GetSpan(ctx); parent != nil {
		span.ParentID = parent.SpanID
		span.TraceID = parent.TraceID
	}

	return context.WithValue(ctx, spanContextKey{}, span), span
}

func (s *Span) Finish() {
	now := time.Now()
	s.EndTime = &now
	duration := now.Sub(s.StartTime)
	s.Duration = &duration
}

func (s *Span) SetTag(key, value string) {
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
}

func (s *Span) SetError(err error) {
	s.Status = SpanStatusError
	if err != nil {
		s.Error = err.Error()
	}
}

func GetSpan(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// Stage runs fn inside a span named after the pipeline stage, records its
// duration in the stage histogram and logs the outcome.
func Stage(ctx context.Context, logger *slog.Logger, stage string, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, stage)
	err := fn(ctx)
	if err != nil {
		span.SetError(err)
	}
	span.Finish()

	result := strings.ToLower(string(span.Status))
	metrics.StageDuration.WithLabelValues(stage, result).Observe(span.Duration.Seconds())

	attrs := []any{
		"stage", stage,
		"trace_id", span.TraceID,
		"span_id", span.SpanID,
		"duration", *span.Duration,
	}
	if span.ParentID != "" {
		attrs = append(attrs, "parent_id", span.ParentID)
	}
	for k, v := range span.Tags {
		attrs = append(attrs, k, v)
	}
	if err != nil {
		logger.Error("stage failed", append(attrs, "error", err)...)
		return err
	}
	logger.Debug("stage complete", attrs...)
	return nil
}

func newID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}
