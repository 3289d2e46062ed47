package payout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/events"
	"github.com/Sadick14/ticket-flow/internal/metrics"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

type SkipReason string

const (
	SkipNotDue         SkipReason = "not_due"
	SkipNothingToPay   SkipReason = "nothing_to_pay"
	SkipBelowMinimum   SkipReason = "below_minimum"
	SkipUnverified     SkipReason = "unverified"
	SkipAlreadyHandled SkipReason = "already_handled"
)

type SkippedCreator struct {
	CreatorID       string     `json:"creator_id"`
	Reason          SkipReason `json:"reason"`
	CandidateAmount int64      `json:"candidate_amount,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
}

// CreatorError is a failure confined to one creator. That creator's data is
// left exactly as it was before the run.
type CreatorError struct {
	CreatorID string `json:"creator_id"`
	Err       error  `json:"-"`
}

func (e CreatorError) Error() string {
	return e.CreatorID + ": " + e.Err.Error()
}

func (e CreatorError) Unwrap() error {
	return e.Err
}

func (e CreatorError) MarshalJSON() ([]byte, error) {
	out := struct {
		CreatorID string             `json:"creator_id"`
		Code      internal.ErrorCode `json:"code,omitempty"`
		Message   string             `json:"message"`
	}{CreatorID: e.CreatorID, Message: e.Err.Error()}
	if appErr, ok := internal.IsAppError(e.Err); ok {
		out.Code = appErr.Code
	}
	return json.Marshal(out)
}

// BatchResult lists every creator the run looked at, in profile order.
type BatchResult struct {
	RunID             string           `json:"run_id"`
	Now               time.Time        `json:"now"`
	ProcessedCreators []string         `json:"processed_creators"`
	SkippedCreators   []SkippedCreator `json:"skipped_creators"`
	Errors            []CreatorError   `json:"errors"`
	Payouts           []*Payout        `json:"payouts"`
}

type outcomeKind int

const (
	outcomeProcessed outcomeKind = iota
	outcomeSkipped
	outcomeError
)

type creatorOutcome struct {
	kind    outcomeKind
	payout  *Payout
	skipped SkippedCreator
	err     error
}

type SchedulerOption func(*Scheduler)

// WithConcurrency bounds how many creators are processed at once. Values
// below one mean one at a time.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

func WithIDGenerator(newID func() string) SchedulerOption {
	return func(s *Scheduler) {
		s.newID = newID
	}
}

// Scheduler groups each creator's completed, unclaimed transactions into a
// payout once the creator is due and over their minimum.
type Scheduler struct {
	store       Store
	events      events.Publisher
	metrics     *metrics.Settlement
	logger      *slog.Logger
	concurrency int
	newID       func() string
}

func NewScheduler(store Store, publisher events.Publisher, m *metrics.Settlement, lg *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	s := &Scheduler{
		store:       store,
		events:      publisher,
		metrics:     m,
		logger:      lg,
		concurrency: 1,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunBatch processes every creator profile as of now. The returned error is
// only set when the profile list itself cannot be read; per-creator failures
// land in BatchResult.Errors and never stop the other creators.
//
// Cancelling ctx stops new creators from starting. Payouts already created
// stay committed and creators that never started are reported with the
// context error.
func (s *Scheduler) RunBatch(ctx context.Context, now time.Time) (*BatchResult, error) {
	started := time.Now()
	result := &BatchResult{
		RunID:             s.newID(),
		Now:               now,
		ProcessedCreators: []string{},
		SkippedCreators:   []SkippedCreator{},
		Errors:            []CreatorError{},
		Payouts:           []*Payout{},
	}
	lg := s.logger.With("run_id", result.RunID)
	ctx = logger.Into(internal.ContextWithBatchRunID(ctx, result.RunID), lg)

	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		lg.Error("payout batch could not list profiles", "error", err)
		s.metrics.ObserveBatch(time.Now(), time.Since(started), 0, err)
		return nil, err
	}

	outcomes := make([]creatorOutcome, len(profiles))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, p := range profiles {
		if ctx.Err() != nil {
			outcomes[i] = creatorOutcome{kind: outcomeError, err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				outcomes[i] = creatorOutcome{kind: outcomeError, err: ctx.Err()}
				return nil
			}
			outcomes[i] = s.processCreator(ctx, p, now)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		creatorID := profiles[i].CreatorID
		switch o.kind {
		case outcomeProcessed:
			result.ProcessedCreators = append(result.ProcessedCreators, creatorID)
			result.Payouts = append(result.Payouts, o.payout)
			s.metrics.CreatorResult("processed", "")
			s.metrics.RecordPayoutCreated(o.payout.Amount)
			s.publish(ctx, events.NewPayoutCreatedEvent(o.payout.ID, creatorID, o.payout.Amount, len(o.payout.TransactionIDs), now))
		case outcomeSkipped:
			result.SkippedCreators = append(result.SkippedCreators, o.skipped)
			s.metrics.CreatorResult("skipped", string(o.skipped.Reason))
		case outcomeError:
			result.Errors = append(result.Errors, CreatorError{CreatorID: creatorID, Err: o.err})
			s.metrics.CreatorResult("error", errorReason(o.err))
		}
	}

	s.metrics.ObserveBatch(time.Now(), time.Since(started), len(result.Errors), nil)
	lg.Info("payout batch finished",
		"now", now,
		"profiles", len(profiles),
		"processed", len(result.ProcessedCreators),
		"skipped", len(result.SkippedCreators),
		"errors", len(result.Errors),
		"duration", time.Since(started))
	return result, nil
}

func (s *Scheduler) processCreator(ctx context.Context, p *profile.Profile, now time.Time) creatorOutcome {
	lg := logger.From(ctx).With("creator_id", p.CreatorID)
	skip := func(reason SkipReason, amount int64) creatorOutcome {
		lg.Debug("creator skipped", "reason", reason, "candidate_amount", amount)
		out := SkippedCreator{CreatorID: p.CreatorID, Reason: reason, CandidateAmount: amount}
		if dueAt, ok := p.DueAt(); ok {
			out.DueAt = &dueAt
		}
		return creatorOutcome{kind: outcomeSkipped, skipped: out}
	}
	fail := func(err error) creatorOutcome {
		lg.Error("creator payout failed", "error", err)
		return creatorOutcome{kind: outcomeError, err: err}
	}

	if !p.Verified {
		return skip(SkipUnverified, 0)
	}
	if !p.IsDue(now) {
		return skip(SkipNotDue, 0)
	}

	txs, err := s.store.ListUngroupedCompletedTransactions(ctx, p.CreatorID)
	if err != nil {
		return fail(err)
	}
	if len(txs) == 0 {
		return skip(SkipNothingToPay, 0)
	}

	var amount int64
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		amount += t.Split.NetPayout
		ids = append(ids, t.ID)
	}
	if amount <= 0 {
		return skip(SkipNothingToPay, 0)
	}
	if amount < p.MinimumPayoutAmount {
		return skip(SkipBelowMinimum, amount)
	}

	payout := &Payout{
		ID:             s.newID(),
		CreatorID:      p.CreatorID,
		Amount:         amount,
		TransactionIDs: ids,
		Status:         StatusPending,
		ScheduledAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayoutAtomic(ctx, payout, p.LastPayoutAt); err != nil {
		if errors.Is(err, internal.ErrConcurrentPayoutConflict) {
			lg.Info("creator already handled by a concurrent run")
			return skip(SkipAlreadyHandled, amount)
		}
		return fail(err)
	}

	lg.Info("payout created",
		"payout_id", payout.ID,
		"amount", payout.Amount,
		"transactions", len(payout.TransactionIDs))
	return creatorOutcome{kind: outcomeProcessed, payout: payout}
}

func (s *Scheduler) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
	}
}

func errorReason(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	if appErr, ok := internal.IsAppError(err); ok {
		return string(appErr.Code)
	}
	return "unknown"
}
