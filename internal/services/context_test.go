package services_test

import (
	"context"
	"testing"

	"bindery/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBookID(ctx, 42)
	ctx = services.WithLibraryID(ctx, 7)
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.BookIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected book id: %v %v", id, ok)
	}
	if id, ok := services.LibraryIDFromContext(ctx); !ok || id != 7 {
		t.Fatalf("unexpected library id: %v %v", id, ok)
	}
	if batch, ok := services.BatchIDFromContext(ctx); !ok || batch != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", batch, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankBatchPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithBatchID(ctx, "")
	if _, ok := services.BatchIDFromContext(ctx); ok {
		t.Fatal("expected no batch value")
	}
}
