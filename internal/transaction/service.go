package transaction

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/common/validation"
	txDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/profile"
)

// StatusChange is a conditional status write: it only applies while the row
// is still in From.
type StatusChange struct {
	ID   string
	From Status
	To   Status
	At   time.Time
}

// StatusChangeResult carries the row as written and, for a refund on a row
// that already had a payout, the reconciliation case recorded with it.
type StatusChangeResult struct {
	Transaction    *txDatamodel.Transaction
	OrphanedRefund *txDatamodel.ReconciliationCase
}

type Repository interface {
	Create(ctx context.Context, t *txDatamodel.Transaction) error
	GetByID(ctx context.Context, id string) (*txDatamodel.Transaction, error)
	ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*txDatamodel.Transaction, error)
	// ApplyStatusChange fails with ErrConcurrentUpdate when the row left
	// change.From before the write.
	ApplyStatusChange(ctx context.Context, change StatusChange) (*StatusChangeResult, error)
	ResolveCase(ctx context.Context, caseID string, at time.Time) error
}

type SplitCalculator interface {
	SplitFor(ctx context.Context, grossAmount int64, gatewayID string, tier feesplit.CommissionTier) (feesplit.Split, feesplit.FeeSchedule, error)
}

type ProfileReader interface {
	GetProfile(ctx context.Context, creatorID string) (*profile.Profile, error)
}

type Service struct {
	repo     Repository
	calc     SplitCalculator
	profiles ProfileReader
	events   events.Publisher
	metrics  *metrics.Settlement
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, calc SplitCalculator, profiles ProfileReader, publisher events.Publisher, m *metrics.Settlement, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:     repo,
		calc:     calc,
		profiles: profiles,
		events:   publisher,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordSale computes the split for a sale and stores it as a pending
// transaction. A creator without a payment profile is charged the default
// commission tier.
func (s *Service) RecordSale(ctx context.Context, dto RecordSaleDTO) (*Transaction, error) {
	t, err := s.recordSale(ctx, dto)
	s.metrics.RecordSale(feesplit.NormalizeID(dto.GatewayID), err)
	return t, err
}

func (s *Service) recordSale(ctx context.Context, dto RecordSaleDTO) (*Transaction, error) {
	if dto.GrossAmount <= 0 {
		return nil, internal.ErrInvalidAmount
	}
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	creatorID := strings.TrimSpace(dto.CreatorID)
	var tier feesplit.CommissionTier
	p, err := s.profiles.GetProfile(ctx, creatorID)
	switch {
	case err == nil:
		tier = p.CommissionTier
	case errors.Is(err, internal.ErrProfileNotFound):
		s.logger.Warn("sale for creator without payment profile, using default tier", "creator_id", creatorID)
	default:
		return nil, err
	}

	split, schedule, err := s.calc.SplitFor(ctx, dto.GrossAmount, dto.GatewayID, tier)
	if err != nil {
		return nil, err
	}

	now := s.now()
	t := &Transaction{
		ID:        uuid.New().String(),
		CreatorID: creatorID,
		SaleID:    strings.TrimSpace(dto.SaleID),
		GatewayID: schedule.GatewayID,
		Split:     split,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, ToDataModel(t)); err != nil {
		if !errors.Is(err, internal.ErrDuplicateSale) {
			s.logger.Error("failed to store transaction", "sale_id", t.SaleID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("transaction recorded",
		"transaction_id", t.ID,
		"creator_id", t.CreatorID,
		"gateway_id", t.GatewayID,
		"gross_amount", split.GrossAmount,
		"net_payout", split.NetPayout)

	s.publish(ctx, events.NewTransactionCreatedEvent(t.ID, t.CreatorID, t.GatewayID, split.GrossAmount, split.NetPayout, now))
	return t, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) ListCreatorTransactions(ctx context.Context, creatorID string, limit, offset int) ([]*Transaction, error) {
	rows, err := s.repo.ListByCreator(ctx, creatorID, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// ApplyStatus applies a status reported by the money-transfer collaborator.
// Reporting the status the transaction already has is a no-op so the
// collaborator can retry freely.
func (s *Service) ApplyStatus(ctx context.Context, id string, next Status, at time.Time) (*StatusUpdate, error) {
	if !next.Valid() {
		return nil, internal.NewValidationError("unknown transaction status", internal.ErrCodeValidationFailed).
			WithDetails(map[string]string{"status": string(next)})
	}
	if at.IsZero() {
		at = s.now()
	}

	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	t := FromDataModel(row)
	if t.Status == next {
		return &StatusUpdate{Transaction: t}, nil
	}

	from := t.Status
	if err := t.Transition(next, at); err != nil {
		s.logger.Warn("rejected transaction transition", "transaction_id", id, "from", from, "to", next)
		return nil, err
	}

	result, err := s.repo.ApplyStatusChange(ctx, StatusChange{ID: id, From: from, To: next, At: at})
	if err != nil {
		if errors.Is(err, internal.ErrConcurrentUpdate) {
			return s.afterLostRace(ctx, id, next, err)
		}
		s.logger.Error("failed to update transaction status", "transaction_id", id, "error", err)
		return nil, err
	}

	update := &StatusUpdate{Transaction: FromDataModel(result.Transaction), Changed: true}
	s.metrics.RecordTransition(string(from), string(next))
	s.logger.Info("transaction status changed", "transaction_id", id, "from", from, "to", next)
	s.publish(ctx, events.NewTransactionStatusChangedEvent(id, t.CreatorID, string(from), string(next), at))

	if result.OrphanedRefund != nil {
		c := CaseFromDataModel(result.OrphanedRefund)
		update.OrphanedRefund = c
		s.metrics.RecordOrphanedRefund()
		s.logger.Error("refund on a transaction that was already paid out",
			"error", internal.ErrOrphanedRefund,
			"case_id", c.ID,
			"transaction_id", c.TransactionID,
			"payout_id", c.PayoutID,
			"creator_id", c.CreatorID,
			"amount", c.Amount)
		s.publish(ctx, events.NewOrphanedRefundEvent(c.ID, c.TransactionID, c.PayoutID, c.CreatorID, c.Amount, c.DetectedAt))
	}
	return update, nil
}

// afterLostRace treats a concurrent writer that reached the same status as
// success and anything else as the original conflict.
func (s *Service) afterLostRace(ctx context.Context, id string, next Status, cause error) (*StatusUpdate, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if Status(row.Status) == next {
		return &StatusUpdate{Transaction: FromDataModel(row)}, nil
	}
	s.logger.Warn("transaction changed concurrently", "transaction_id", id, "status", row.Status, "wanted", next)
	return nil, cause
}

// ResolveCase closes a reconciliation case once it has been settled by hand.
func (s *Service) ResolveCase(ctx context.Context, caseID string) error {
	if err := s.repo.ResolveCase(ctx, caseID, s.now()); err != nil {
		return err
	}
	s.logger.Info("reconciliation case resolved", "case_id", caseID)
	return nil
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}
