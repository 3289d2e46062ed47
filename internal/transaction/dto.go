package transaction

import "time"

type RecordSaleDTO struct {
	CreatorID   string `json:"creator_id" validate:"required,max=64"`
	SaleID      string `json:"sale_id" validate:"required,max=64"`
	GatewayID   string `json:"gateway_id" validate:"required,max=32"`
	GrossAmount int64  `json:"gross_amount"`
}

// StatusCallbackDTO is what the money-transfer collaborator posts back.
type StatusCallbackDTO struct {
	TransactionID string     `json:"transaction_id" validate:"required"`
	Status        string     `json:"status" validate:"required,oneof=completed failed refunded"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// StatusUpdate is the outcome of applying a collaborator report.
type StatusUpdate struct {
	Transaction    *Transaction        `json:"transaction"`
	Changed        bool                `json:"changed"`
	OrphanedRefund *ReconciliationCase `json:"orphaned_refund,omitempty"`
}

type TransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Limit        int            `json:"limit"`
	Offset       int            `json:"offset"`
}
