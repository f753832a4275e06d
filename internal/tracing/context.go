package tracing

import "context"

type contextKey string

const runIDContextKey contextKey = "mailsink-run-id"

// WithRunID stamps the sync run identifier on the context so every span
// opened below it carries the same run tag.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

func runIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDContextKey).(string); ok {
		return v
	}
	return ""
}
