package transaction

import (
	"fmt"
	"time"

	"github.com/Sadick14/ticket-flow/internal"
	txDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/transaction"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// CaseKindOrphanedRefund marks a refund on a transaction already paid out.
const CaseKindOrphanedRefund = "orphaned_refund"

var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusRefunded},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction is one sale with its frozen fee split.
type Transaction struct {
	ID          string         `json:"id"`
	CreatorID   string         `json:"creator_id"`
	SaleID      string         `json:"sale_id"`
	GatewayID   string         `json:"gateway_id"`
	Split       feesplit.Split `json:"split"`
	Status      Status         `json:"status"`
	PayoutID    *string        `json:"payout_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RefundedAt  *time.Time     `json:"refunded_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (t *Transaction) GrossAmount() int64 {
	return t.Split.GrossAmount
}

// Grouped reports whether the transaction already belongs to a payout.
func (t *Transaction) Grouped() bool {
	return t.PayoutID != nil
}

// Transition moves the transaction to next and stamps the matching timestamp.
func (t *Transaction) Transition(next Status, at time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return internal.ErrInvalidTransition.
			Wrap(fmt.Errorf("transaction %s: %s -> %s", t.ID, t.Status, next)).
			WithDetails(map[string]string{"from": string(t.Status), "to": string(next)})
	}
	t.Status = next
	t.UpdatedAt = at
	switch next {
	case StatusCompleted:
		t.CompletedAt = &at
	case StatusRefunded:
		t.RefundedAt = &at
	}
	return nil
}

// ReconciliationCase is a condition the engine detected but cannot settle on
// its own.
type ReconciliationCase struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	TransactionID string     `json:"transaction_id"`
	PayoutID      string     `json:"payout_id"`
	CreatorID     string     `json:"creator_id"`
	Amount        int64      `json:"amount"`
	DetectedAt    time.Time  `json:"detected_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

func ToDataModel(t *Transaction) *txDatamodel.Transaction {
	return &txDatamodel.Transaction{
		ID:            t.ID,
		CreatorID:     t.CreatorID,
		SaleID:        t.SaleID,
		GatewayID:     t.GatewayID,
		GrossAmount:   t.Split.GrossAmount,
		ProcessingFee: t.Split.ProcessingFee,
		PlatformFee:   t.Split.PlatformFee,
		CommissionFee: t.Split.CommissionFee,
		NetPayout:     t.Split.NetPayout,
		Status:        string(t.Status),
		PayoutID:      t.PayoutID,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
		RefundedAt:    t.RefundedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func FromDataModel(t *txDatamodel.Transaction) *Transaction {
	return &Transaction{
		ID:        t.ID,
		CreatorID: t.CreatorID,
		SaleID:    t.SaleID,
		GatewayID: t.GatewayID,
		Split: feesplit.Split{
			GrossAmount:   t.GrossAmount,
			ProcessingFee: t.ProcessingFee,
			PlatformFee:   t.PlatformFee,
			CommissionFee: t.CommissionFee,
			NetPayout:     t.NetPayout,
		},
		Status:      Status(t.Status),
		PayoutID:    t.PayoutID,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		RefundedAt:  t.RefundedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func CaseFromDataModel(c *txDatamodel.ReconciliationCase) *ReconciliationCase {
	return &ReconciliationCase{
		ID:            c.ID,
		Kind:          c.Kind,
		TransactionID: c.TransactionID,
		PayoutID:      c.PayoutID,
		CreatorID:     c.CreatorID,
		Amount:        c.Amount,
		DetectedAt:    c.DetectedAt,
		ResolvedAt:    c.ResolvedAt,
	}
}
