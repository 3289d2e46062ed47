package payout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/metrics"
)

// StatusUpdate is the outcome of applying a collaborator report.
type StatusUpdate struct {
	Payout  *Payout `json:"payout"`
	Changed bool    `json:"changed"`
}

// Service drives the payout lifecycle after a batch has created the payout.
type Service struct {
	repo    Repository
	events  events.Publisher
	metrics *metrics.Settlement
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo Repository, publisher events.Publisher, m *metrics.Settlement, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:    repo,
		events:  publisher,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetPayout(ctx context.Context, id string) (*Payout, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListCreatorPayouts(ctx context.Context, creatorID string, limit, offset int) ([]*Payout, error) {
	return s.repo.ListByCreator(ctx, creatorID, limit, offset)
}

// ApplyStatus records a status reported by the money-transfer collaborator.
// Repeating the current status is a no-op. A failed payout never retries on
// its own and keeps its transactions.
func (s *Service) ApplyStatus(ctx context.Context, id string, next Status, reason string, at time.Time) (*StatusUpdate, error) {
	if !next.Valid() {
		return nil, internal.NewValidationError("unknown payout status", internal.ErrCodeValidationFailed).
			WithDetails(map[string]string{"status": string(next)})
	}
	if at.IsZero() {
		at = s.now()
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == next {
		return &StatusUpdate{Payout: p}, nil
	}

	from := p.Status
	if err := p.Transition(next, reason, at); err != nil {
		s.logger.Warn("rejected payout transition", "payout_id", id, "from", from, "to", next, "error", err)
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, StatusChange{
		ID:            id,
		From:          from,
		To:            next,
		FailureReason: p.FailureReason,
		At:            at,
	})
	if err != nil {
		if errors.Is(err, internal.ErrConcurrentUpdate) {
			current, getErr := s.repo.GetByID(ctx, id)
			if getErr == nil && current.Status == next {
				return &StatusUpdate{Payout: current}, nil
			}
		}
		s.logger.Error("failed to update payout status", "payout_id", id, "error", err)
		return nil, err
	}

	s.metrics.RecordPayoutStatus(string(next))
	if next == StatusFailed {
		s.logger.Warn("payout failed",
			"payout_id", id,
			"creator_id", updated.CreatorID,
			"amount", updated.Amount,
			"failure_reason", updated.FailureReason)
	} else {
		s.logger.Info("payout status changed", "payout_id", id, "from", from, "to", next)
	}
	if err := s.events.Publish(ctx, events.NewPayoutStatusChangedEvent(id, updated.CreatorID, string(from), string(next), updated.FailureReason, at)); err != nil {
		s.logger.Warn("failed to publish event", "event_type", events.EventTypePayoutStatusChanged, "error", err)
	}
	return &StatusUpdate{Payout: updated, Changed: true}, nil
}
