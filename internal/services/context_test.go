package services_test

import (
	"context"
	"testing"

	"bookforge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBookID(ctx, "book-42")
	ctx = services.WithChapter(ctx, 7)
	ctx = services.WithOperation(ctx, "generate_chapter")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BookIDFromContext(ctx); !ok || id != "book-42" {
		t.Fatalf("unexpected book id: %v %v", id, ok)
	}
	if n, ok := services.ChapterFromContext(ctx); !ok || n != 7 {
		t.Fatalf("unexpected chapter: %v %v", n, ok)
	}
	if op, ok := services.OperationFromContext(ctx); !ok || op != "generate_chapter" {
		t.Fatalf("unexpected operation: %v %v", op, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBookID(ctx, "")
	ctx = services.WithChapter(ctx, 0)
	if _, ok := services.BookIDFromContext(ctx); ok {
		t.Fatal("expected no book id")
	}
	if _, ok := services.ChapterFromContext(ctx); ok {
		t.Fatal("expected no chapter")
	}
}
