package payout

import "time"

// StatusCallbackDTO is what the money-transfer collaborator posts back.
type StatusCallbackDTO struct {
	PayoutID      string     `json:"payout_id" validate:"required"`
	Status        string     `json:"status" validate:"required,oneof=processing completed failed"`
	FailureReason string     `json:"failure_reason,omitempty" validate:"required_if=Status failed,max=500"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// RunBatchDTO triggers an on-demand batch. Now defaults to the current time.
type RunBatchDTO struct {
	Now *time.Time `json:"now,omitempty"`
}

type PayoutsResponse struct {
	Payouts []*Payout `json:"payouts"`
	Limit   int       `json:"limit"`
	Offset  int       `json:"offset"`
}
