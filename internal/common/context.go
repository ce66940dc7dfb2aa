package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyBatchID   contextKey = "batch_id"
	ContextKeySourceID  contextKey = "source_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithBatchID tags the context with the batch (pipeline run) identifier
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, ContextKeyBatchID, batchID)
}

// BatchIDFromContext extracts the batch ID from context
func BatchIDFromContext(ctx context.Context) string {
	if batchID, ok := ctx.Value(ContextKeyBatchID).(string); ok {
		return batchID
	}
	return ""
}

// WithSourceID tags the context with the document being processed
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, ContextKeySourceID, sourceID)
}

// SourceIDFromContext extracts the source ID from context
func SourceIDFromContext(ctx context.Context) string {
	if sourceID, ok := ctx.Value(ContextKeySourceID).(string); ok {
		return sourceID
	}
	return ""
}

// LoggerWith returns logger enriched with whatever batch/source/request ids ctx carries.
func LoggerWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := BatchIDFromContext(ctx); id != "" {
		logger = logger.With("batch_id", id)
	}
	if id := SourceIDFromContext(ctx); id != "" {
		logger = logger.With("source_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("req_id", id)
	}
	return logger
}
