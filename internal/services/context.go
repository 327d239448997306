package services

import "context"

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	modalityKey  contextKey = "modality"
)

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

// WithModality annotates context with the pipeline being run ("video" or "audio").
func WithModality(ctx context.Context, modality string) context.Context {
	if modality == "" {
		return ctx
	}
	return context.WithValue(ctx, modalityKey, modality)
}

// ModalityFromContext returns the modality if present.
func ModalityFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(modalityKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
