package payout

import (
	"context"
	"time"

	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/transaction"
)

// Store is what the batch run reads and writes.
type Store interface {
	ListProfiles(ctx context.Context) ([]*profile.Profile, error)
	ListUngroupedCompletedTransactions(ctx context.Context, creatorID string) ([]*transaction.Transaction, error)
	// CreatePayoutAtomic inserts p, claims every id in p.TransactionIDs and
	// moves the creator's last payout time to p.ScheduledAt, all or nothing.
	// It fails with ErrConcurrentPayoutConflict when any transaction was
	// claimed, or the profile's last payout time moved off
	// expectedLastPayoutAt, after the caller read them.
	CreatePayoutAtomic(ctx context.Context, p *Payout, expectedLastPayoutAt *time.Time) error
}

// StatusChange is a conditional payout status write.
type StatusChange struct {
	ID            string
	From          Status
	To            Status
	FailureReason string
	At            time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Payout, error)
	ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*Payout, error)
	// UpdateStatus fails with ErrConcurrentUpdate when the payout left
	// change.From before the write.
	UpdateStatus(ctx context.Context, change StatusChange) (*Payout, error)
}
