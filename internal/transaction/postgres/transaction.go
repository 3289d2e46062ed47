package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sadick14/ticket-flow/internal"
	txDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
	"github.com/Sadick14/ticket-flow/internal/transaction"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

// Create inserts a new transaction. A second transaction for the same sale is
// refused with ErrDuplicateSale.
func (r *TransactionRepository) Create(ctx context.Context, t *txDatamodel.Transaction) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sale_id"}}, DoNothing: true}).
		Create(t)
	if result.Error != nil {
		return internal.NewStoreUnavailableError("create transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return internal.ErrDuplicateSale.WithDetails(map[string]string{"sale_id": t.SaleID})
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*txDatamodel.Transaction, error) {
	return getByID(r.db.WithContext(ctx), id)
}

func getByID(db *gorm.DB, id string) (*txDatamodel.Transaction, error) {
	var t txDatamodel.Transaction
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrTransactionNotFound
		}
		return nil, internal.NewStoreUnavailableError("get transaction", err)
	}
	return &t, nil
}

func (r *TransactionRepository) ListByCreator(ctx context.Context, creatorID string, limit, offset int) ([]*txDatamodel.Transaction, error) {
	var txs []*txDatamodel.Transaction
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list transactions", err)
	}
	return txs, nil
}

// ListUngroupedCompleted returns the creator's completed transactions that no
// payout has claimed yet.
func (r *TransactionRepository) ListUngroupedCompleted(ctx context.Context, creatorID string) ([]*txDatamodel.Transaction, error) {
	var txs []*txDatamodel.Transaction
	err := r.db.WithContext(ctx).
		Where("creator_id = ? AND status = ? AND payout_id IS NULL", creatorID, string(transaction.StatusCompleted)).
		Order("created_at ASC, id ASC").
		Find(&txs).Error
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list ungrouped transactions", err)
	}
	return txs, nil
}

// ApplyStatusChange writes the new status only while the row still has the
// expected previous status. A refund on a row that carries a payout id records
// a reconciliation case in the same database transaction.
func (r *TransactionRepository) ApplyStatusChange(ctx context.Context, change transaction.StatusChange) (*transaction.StatusChangeResult, error) {
	updates := map[string]interface{}{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	switch change.To {
	case transaction.StatusCompleted:
		updates["completed_at"] = change.At
	case transaction.StatusRefunded:
		updates["refunded_at"] = change.At
	}

	var out transaction.StatusChangeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&txDatamodel.Transaction{}).
			Where("id = ? AND status = ?", change.ID, string(change.From)).
			Updates(updates)
		if result.Error != nil {
			return internal.NewStoreUnavailableError("update transaction status", result.Error)
		}
		if result.RowsAffected == 0 {
			if _, err := getByID(tx, change.ID); err != nil {
				return err
			}
			return internal.ErrConcurrentUpdate.WithDetails(map[string]string{"transaction_id": change.ID})
		}

		row, err := getByID(tx, change.ID)
		if err != nil {
			return err
		}
		out.Transaction = row

		if change.To == transaction.StatusRefunded && row.PayoutID != nil {
			c := &txDatamodel.ReconciliationCase{
				ID:            uuid.New().String(),
				Kind:          transaction.CaseKindOrphanedRefund,
				TransactionID: row.ID,
				PayoutID:      *row.PayoutID,
				CreatorID:     row.CreatorID,
				Amount:        row.NetPayout,
				DetectedAt:    change.At,
			}
			if err := tx.Create(c).Error; err != nil {
				return internal.NewStoreUnavailableError("record reconciliation case", err)
			}
			out.OrphanedRefund = c
		}
		return nil
	})
	if err != nil {
		return nil, internal.StoreError("apply transaction status", err)
	}
	return &out, nil
}

// ResolveCase marks a reconciliation case as handled.
func (r *TransactionRepository) ResolveCase(ctx context.Context, caseID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&txDatamodel.ReconciliationCase{}).
		Where("id = ? AND resolved_at IS NULL", caseID).
		Update("resolved_at", at)
	if result.Error != nil {
		return internal.NewStoreUnavailableError("resolve reconciliation case", result.Error)
	}
	if result.RowsAffected == 0 {
		return internal.ErrCaseNotFound
	}
	return nil
}
