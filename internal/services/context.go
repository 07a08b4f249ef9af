package services

import "context"

type contextKey string

const (
	bookIDKey    contextKey = "book_id"
	chapterKey   contextKey = "chapter"
	operationKey contextKey = "operation"
	requestIDKey contextKey = "request_id"
)

// WithBookID annotates context with the book identifier.
func WithBookID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, bookIDKey, id)
}

// BookIDFromContext extracts the book identifier if present.
func BookIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(bookIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithChapter annotates context with a 1-based chapter number.
func WithChapter(ctx context.Context, chapter int) context.Context {
	if chapter <= 0 {
		return ctx
	}
	return context.WithValue(ctx, chapterKey, chapter)
}

// ChapterFromContext returns the chapter number if present.
func ChapterFromContext(ctx context.Context) (int, bool) {
	if v, ok := ctx.Value(chapterKey).(int); ok && v > 0 {
		return v, true
	}
	return 0, false
}

// WithOperation annotates context with the orchestrator operation name.
func WithOperation(ctx context.Context, op string) context.Context {
	if op == "" {
		return ctx
	}
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the operation name if present.
func OperationFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
