package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Sadick14/ticket-flow/internal"
	payoutDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/payout"
	profileDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/profile"
	txDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
	"github.com/Sadick14/ticket-flow/internal/payout"
	"github.com/Sadick14/ticket-flow/internal/profile"
	"github.com/Sadick14/ticket-flow/internal/transaction"
)

type ProfileLister interface {
	List(ctx context.Context) ([]*profileDatamodel.CreatorPaymentProfile, error)
}

type UngroupedLister interface {
	ListUngroupedCompleted(ctx context.Context, creatorID string) ([]*txDatamodel.Transaction, error)
}

// Store implements payout.Store and payout.Repository on one gorm handle.
// Profile and transaction reads go through their own repositories.
type Store struct {
	db           *gorm.DB
	profiles     ProfileLister
	transactions UngroupedLister
}

func NewStore(db *gorm.DB, profiles ProfileLister, transactions UngroupedLister) *Store {
	return &Store{db: db, profiles: profiles, transactions: transactions}
}

var (
	_ payout.Store      = (*Store)(nil)
	_ payout.Repository = (*Store)(nil)
)

func (s *Store) ListProfiles(ctx context.Context) ([]*profile.Profile, error) {
	rows, err := s.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*profile.Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, profile.FromDataModel(row))
	}
	return out, nil
}

func (s *Store) ListUngroupedCompletedTransactions(ctx context.Context, creatorID string) ([]*transaction.Transaction, error) {
	rows, err := s.transactions.ListUngroupedCompleted(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	out := make([]*transaction.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, transaction.FromDataModel(row))
	}
	return out, nil
}

// CreatePayoutAtomic runs in one database transaction:
//  1. move the profile's last_payout_at, only if it still holds the value read
//  2. insert the payout
//  3. claim the transactions, only those still completed and unclaimed
//  4. check the claimed net payouts add up to the payout amount
//
// Losing either conditional write rolls everything back with
// ErrConcurrentPayoutConflict.
func (s *Store) CreatePayoutAtomic(ctx context.Context, p *payout.Payout, expectedLastPayoutAt *time.Time) error {
	if len(p.TransactionIDs) == 0 {
		return internal.NewValidationError("payout needs at least one transaction", internal.ErrCodeValidationFailed)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profileUpdate := tx.Model(&profileDatamodel.CreatorPaymentProfile{}).Where("creator_id = ?", p.CreatorID)
		if expectedLastPayoutAt == nil {
			profileUpdate = profileUpdate.Where("last_payout_at IS NULL")
		} else {
			profileUpdate = profileUpdate.Where("last_payout_at = ?", *expectedLastPayoutAt)
		}
		result := profileUpdate.Updates(map[string]interface{}{
			"last_payout_at": p.ScheduledAt,
			"updated_at":     p.ScheduledAt,
		})
		if result.Error != nil {
			return internal.NewStoreUnavailableError("update last payout time", result.Error)
		}
		if result.RowsAffected == 0 {
			return internal.ErrConcurrentPayoutConflict.WithDetails(conflictDetails(ctx, p.CreatorID, "profile"))
		}

		if err := tx.Create(payout.ToDataModel(p)).Error; err != nil {
			return internal.NewStoreUnavailableError("insert payout", err)
		}

		result = tx.Model(&txDatamodel.Transaction{}).
			Where("id IN ? AND creator_id = ? AND status = ? AND payout_id IS NULL",
				p.TransactionIDs, p.CreatorID, string(transaction.StatusCompleted)).
			Updates(map[string]interface{}{
				"payout_id":  p.ID,
				"updated_at": p.ScheduledAt,
			})
		if result.Error != nil {
			return internal.NewStoreUnavailableError("claim transactions", result.Error)
		}
		if result.RowsAffected != int64(len(p.TransactionIDs)) {
			return internal.ErrConcurrentPayoutConflict.WithDetails(conflictDetails(ctx, p.CreatorID, "transactions"))
		}

		var claimed int64
		if err := tx.Model(&txDatamodel.Transaction{}).
			Where("payout_id = ?", p.ID).
			Select("COALESCE(SUM(net_payout), 0)").
			Scan(&claimed).Error; err != nil {
			return internal.NewStoreUnavailableError("sum payout transactions", err)
		}
		if claimed != p.Amount {
			return internal.ErrPayoutAmountMismatch.WithDetails(map[string]int64{"amount": p.Amount, "claimed": claimed})
		}
		return nil
	})
	return internal.StoreError("create payout", err)
}

func (s *Store) GetByID(ctx context.Context, id string) (*payout.Payout, error) {
	return s.getByID(s.db.WithContext(ctx), id)
}

func (s *Store) getByID(db *gorm.DB, id string) (*payout.Payout, error) {
	var row payoutDatamodel.Payout
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrPayoutNotFound
		}
		return nil, internal.NewStoreUnavailableError("get payout", err)
	}

	ids, err := transactionIDs(db, []string{row.ID})
	if err != nil {
		return nil, err
	}
	return payout.FromDataModel(&row, ids[row.ID]), nil
}

func (s *Store) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*payout.Payout, error) {
	db := s.db.WithContext(ctx)

	var rows []*payoutDatamodel.Payout
	err := db.Where("creator_id = ?", creatorID).
		Order("scheduled_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list payouts", err)
	}
	if len(rows) == 0 {
		return []*payout.Payout{}, nil
	}

	payoutIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		payoutIDs = append(payoutIDs, row.ID)
	}
	ids, err := transactionIDs(db, payoutIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*payout.Payout, 0, len(rows))
	for _, row := range rows {
		out = append(out, payout.FromDataModel(row, ids[row.ID]))
	}
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, change payout.StatusChange) (*payout.Payout, error) {
	updates := map[string]interface{}{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	if change.To.Terminal() {
		updates["processed_at"] = change.At
	}
	if change.To == payout.StatusFailed {
		updates["failure_reason"] = change.FailureReason
	}

	var out *payout.Payout
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&payoutDatamodel.Payout{}).
			Where("id = ? AND status = ?", change.ID, string(change.From)).
			Updates(updates)
		if result.Error != nil {
			return internal.NewStoreUnavailableError("update payout status", result.Error)
		}
		if result.RowsAffected == 0 {
			if _, err := s.getByID(tx, change.ID); err != nil {
				return err
			}
			return internal.ErrConcurrentUpdate.WithDetails(map[string]string{"payout_id": change.ID})
		}

		p, err := s.getByID(tx, change.ID)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, internal.StoreError("update payout status", err)
	}
	return out, nil
}

func transactionIDs(db *gorm.DB, payoutIDs []string) (map[string][]string, error) {
	var rows []struct {
		ID       string
		PayoutID string
	}
	err := db.Model(&txDatamodel.Transaction{}).
		Select("id, payout_id").
		Where("payout_id IN ?", payoutIDs).
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list payout transactions", err)
	}

	out := make(map[string][]string, len(payoutIDs))
	for _, row := range rows {
		out[row.PayoutID] = append(out[row.PayoutID], row.ID)
	}
	return out, nil
}

// conflictDetails names the losing write and, during a batch, the run that lost it.
func conflictDetails(ctx context.Context, creatorID, stage string) map[string]string {
	details := map[string]string{"creator_id": creatorID, "stage": stage}
	if runID := internal.BatchRunIDFromContext(ctx); runID != "" {
		details["run_id"] = runID
	}
	return details
}
