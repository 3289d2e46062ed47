package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextBatchRunKey ctxKey = "batchRunID"

// BatchRunIDFromContext returns the payout batch run that ctx belongs to, if any.
func BatchRunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	runID, _ := ctx.Value(ContextBatchRunKey).(string)
	return runID
}

func ContextWithBatchRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextBatchRunKey, runID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
