package logging

import (
	"context"
	"log/slog"

	"bookforge/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBookID is the standardized structured logging key for book identifiers.
	FieldBookID = "book_id"
	// FieldChapter is the standardized structured logging key for 1-based chapter numbers.
	FieldChapter = "chapter"
	// FieldOperation is the standardized structured logging key for orchestrator operations.
	FieldOperation = "operation"
	// FieldProvider names the text, image or stock provider involved in a call.
	FieldProvider = "provider"
	// FieldFormat names an export format.
	FieldFormat = "format"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the error classification from services.Kind.
	FieldErrorKind = "error_kind"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.BookIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBookID, id))
	}
	if chapter, ok := services.ChapterFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldChapter, chapter))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
