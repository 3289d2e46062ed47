package payout

import "time"

type Payout struct {
	ID            string     `gorm:"column:id;primaryKey"`
	CreatorID     string     `gorm:"column:creator_id;not null;index"`
	Amount        int64      `gorm:"column:amount;not null"`
	Status        string     `gorm:"column:status;not null;default:pending"`
	ScheduledAt   time.Time  `gorm:"column:scheduled_at;not null"`
	ProcessedAt   *time.Time `gorm:"column:processed_at"`
	FailureReason *string    `gorm:"column:failure_reason"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (Payout) TableName() string {
	return "payouts"
}
