package services

import "context"

type contextKey string

const (
	batchIDKey   contextKey = "batch_id"
	bookIDKey    contextKey = "book_id"
	libraryIDKey contextKey = "library_id"
	requestIDKey contextKey = "request_id"
)

// WithBatchID annotates context with the relocation batch identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(batchIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithBookID annotates context with the book being relocated.
func WithBookID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, bookIDKey, id)
}

// BookIDFromContext extracts the book identifier if present.
func BookIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(bookIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithLibraryID annotates context with a library identifier.
func WithLibraryID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, libraryIDKey, id)
}

// LibraryIDFromContext extracts the library identifier if present.
func LibraryIDFromContext(ctx context.Context) (int64, bool) {
	if v, ok := ctx.Value(libraryIDKey).(int64); ok {
		return v, true
	}
	return 0, false
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
