package events

import (
	"context"
	"log/slog"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

// AuditLog returns a handler that writes every event it sees as one
// structured log line. Subscribe it to AllEvents.
func AuditLog(fallback *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		lg := fallback
		if lg == nil {
			lg = logger.From(ctx)
		}
		attrs := []any{
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload(),
		}
		if runID := internal.BatchRunIDFromContext(ctx); runID != "" {
			attrs = append(attrs, "run_id", runID)
		}
		lg.Info("settlement event", attrs...)
		return nil
	}
}
