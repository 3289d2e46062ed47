package payout

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sadick14/ticket-flow/internal"
	payoutDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/payout"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var lifecycle = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range lifecycle[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Payout is one disbursement covering a set of completed transactions.
// Amount always equals the sum of their net payouts.
type Payout struct {
	ID             string     `json:"id"`
	CreatorID      string     `json:"creator_id"`
	Amount         int64      `json:"amount"`
	TransactionIDs []string   `json:"transaction_ids"`
	Status         Status     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Transition advances the payout. A failed payout must carry a reason, and
// its transactions stay attached to it.
func (p *Payout) Transition(next Status, reason string, at time.Time) error {
	if !p.Status.CanTransitionTo(next) {
		return internal.ErrInvalidTransition.
			Wrap(fmt.Errorf("payout %s: %s -> %s", p.ID, p.Status, next)).
			WithDetails(map[string]string{"from": string(p.Status), "to": string(next)})
	}
	reason = strings.TrimSpace(reason)
	if next == StatusFailed && reason == "" {
		return internal.ErrFailureReasonRequired
	}

	p.Status = next
	p.UpdatedAt = at
	if next.Terminal() {
		p.ProcessedAt = &at
	}
	if next == StatusFailed {
		p.FailureReason = reason
	}
	return nil
}

func ToDataModel(p *Payout) *payoutDatamodel.Payout {
	row := &payoutDatamodel.Payout{
		ID:          p.ID,
		CreatorID:   p.CreatorID,
		Amount:      p.Amount,
		Status:      string(p.Status),
		ScheduledAt: p.ScheduledAt,
		ProcessedAt: p.ProcessedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.FailureReason != "" {
		reason := p.FailureReason
		row.FailureReason = &reason
	}
	return row
}

func FromDataModel(row *payoutDatamodel.Payout, transactionIDs []string) *Payout {
	if transactionIDs == nil {
		transactionIDs = []string{}
	}
	p := &Payout{
		ID:             row.ID,
		CreatorID:      row.CreatorID,
		Amount:         row.Amount,
		TransactionIDs: transactionIDs,
		Status:         Status(row.Status),
		ScheduledAt:    row.ScheduledAt,
		ProcessedAt:    row.ProcessedAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
	if row.FailureReason != nil {
		p.FailureReason = *row.FailureReason
	}
	return p
}
