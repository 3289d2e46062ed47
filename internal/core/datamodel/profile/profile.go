package profile

import "time"

type CreatorPaymentProfile struct {
	CreatorID           string     `gorm:"column:creator_id;primaryKey"`
	CommissionTier      string     `gorm:"column:commission_tier;not null"`
	PayoutCadence       string     `gorm:"column:payout_cadence;not null"`
	MinimumPayoutAmount int64      `gorm:"column:minimum_payout_amount;not null;default:0"`
	LastPayoutAt        *time.Time `gorm:"column:last_payout_at"`
	Verified            bool       `gorm:"column:verified;not null;default:false"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at"`
}

func (CreatorPaymentProfile) TableName() string {
	return "creator_payment_profiles"
}
