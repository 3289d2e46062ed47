// Package report serves read-only summaries straight from SQL.
package report

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Sadick14/ticket-flow/internal"
)

// Balance is where a creator's money currently sits.
type Balance struct {
	CreatorID string `json:"creator_id"`
	// Pending is the net of sales the gateway has not settled yet.
	Pending int64 `json:"pending"`
	// Available is settled and waiting for the next payout.
	Available int64 `json:"available"`
	InFlight  int64 `json:"in_flight"`
	Paid      int64 `json:"paid"`
	Failed    int64 `json:"failed"`
}

type ReconciliationCase struct {
	ID            string    `db:"id" json:"id"`
	Kind          string    `db:"kind" json:"kind"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	PayoutID      string    `db:"payout_id" json:"payout_id"`
	CreatorID     string    `db:"creator_id" json:"creator_id"`
	Amount        int64     `db:"amount" json:"amount"`
	DetectedAt    time.Time `db:"detected_at" json:"detected_at"`
}

type Reader struct {
	db *sqlx.DB
}

func NewReader(db *sqlx.DB) *Reader {
	return &Reader{db: db}
}

const transactionBalanceQuery = `
SELECT
  COALESCE(SUM(CASE WHEN status = 'pending' THEN net_payout ELSE 0 END), 0) AS pending,
  COALESCE(SUM(CASE WHEN status = 'completed' AND payout_id IS NULL THEN net_payout ELSE 0 END), 0) AS available
FROM transactions
WHERE creator_id = ?`

const payoutBalanceQuery = `
SELECT
  COALESCE(SUM(CASE WHEN status IN ('pending', 'processing') THEN amount ELSE 0 END), 0) AS in_flight,
  COALESCE(SUM(CASE WHEN status = 'completed' THEN amount ELSE 0 END), 0) AS paid,
  COALESCE(SUM(CASE WHEN status = 'failed' THEN amount ELSE 0 END), 0) AS failed
FROM payouts
WHERE creator_id = ?`

func (r *Reader) CreatorBalance(ctx context.Context, creatorID string) (*Balance, error) {
	out := &Balance{CreatorID: creatorID}

	var txs struct {
		Pending   int64 `db:"pending"`
		Available int64 `db:"available"`
	}
	if err := r.db.GetContext(ctx, &txs, r.db.Rebind(transactionBalanceQuery), creatorID); err != nil {
		return nil, internal.NewStoreUnavailableError("creator transaction balance", err)
	}

	var payouts struct {
		InFlight int64 `db:"in_flight"`
		Paid     int64 `db:"paid"`
		Failed   int64 `db:"failed"`
	}
	if err := r.db.GetContext(ctx, &payouts, r.db.Rebind(payoutBalanceQuery), creatorID); err != nil {
		return nil, internal.NewStoreUnavailableError("creator payout balance", err)
	}

	out.Pending = txs.Pending
	out.Available = txs.Available
	out.InFlight = payouts.InFlight
	out.Paid = payouts.Paid
	out.Failed = payouts.Failed
	return out, nil
}

// OpenReconciliationCases lists unresolved cases, oldest first.
func (r *Reader) OpenReconciliationCases(ctx context.Context) ([]ReconciliationCase, error) {
	cases := []ReconciliationCase{}
	err := r.db.SelectContext(ctx, &cases, `
SELECT id, kind, transaction_id, payout_id, creator_id, amount, detected_at
FROM reconciliation_cases
WHERE resolved_at IS NULL
ORDER BY detected_at ASC, id ASC`)
	if err != nil {
		return nil, internal.NewStoreUnavailableError("list reconciliation cases", err)
	}
	return cases, nil
}
