package transaction

import "time"

type Transaction struct {
	ID            string     `gorm:"column:id;primaryKey"`
	CreatorID     string     `gorm:"column:creator_id;not null;index:idx_transactions_ungrouped,priority:1"`
	SaleID        string     `gorm:"column:sale_id;not null;uniqueIndex"`
	GatewayID     string     `gorm:"column:gateway_id;not null"`
	GrossAmount   int64      `gorm:"column:gross_amount;not null"`
	ProcessingFee int64      `gorm:"column:processing_fee;not null"`
	PlatformFee   int64      `gorm:"column:platform_fee;not null"`
	CommissionFee int64      `gorm:"column:commission_fee;not null"`
	NetPayout     int64      `gorm:"column:net_payout;not null"`
	Status        string     `gorm:"column:status;not null;default:pending;index:idx_transactions_ungrouped,priority:2"`
	PayoutID      *string    `gorm:"column:payout_id;index"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at"`
	RefundedAt    *time.Time `gorm:"column:refunded_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// ReconciliationCase records a condition that needs a human decision, such
// as a refund on a transaction that was already paid out.
type ReconciliationCase struct {
	ID            string     `gorm:"column:id;primaryKey"`
	Kind          string     `gorm:"column:kind;not null;index"`
	TransactionID string     `gorm:"column:transaction_id;not null;index"`
	PayoutID      string     `gorm:"column:payout_id;not null"`
	CreatorID     string     `gorm:"column:creator_id;not null;index"`
	Amount        int64      `gorm:"column:amount;not null"`
	DetectedAt    time.Time  `gorm:"column:detected_at;not null"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at"`
}

func (ReconciliationCase) TableName() string {
	return "reconciliation_cases"
}
