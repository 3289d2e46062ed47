package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransactionCreated       = "transaction.created"
	EventTypeTransactionStatusChanged = "transaction.status_changed"
	EventTypeOrphanedRefund           = "reconciliation.orphaned_refund"
	EventTypePayoutCreated            = "payout.created"
	EventTypePayoutStatusChanged      = "payout.status_changed"
)

func newBase(eventType string, at time.Time, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}
}

type TransactionCreatedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CreatorID     string `json:"creator_id"`
	GatewayID     string `json:"gateway_id"`
	GrossAmount   int64  `json:"gross_amount"`
	NetPayout     int64  `json:"net_payout"`
}

func NewTransactionCreatedEvent(transactionID, creatorID, gatewayID string, grossAmount, netPayout int64, at time.Time) *TransactionCreatedEvent {
	return &TransactionCreatedEvent{
		BaseEvent: newBase(EventTypeTransactionCreated, at, map[string]interface{}{
			"transaction_id": transactionID,
			"creator_id":     creatorID,
			"gateway_id":     gatewayID,
			"gross_amount":   grossAmount,
			"net_payout":     netPayout,
		}),
		TransactionID: transactionID,
		CreatorID:     creatorID,
		GatewayID:     gatewayID,
		GrossAmount:   grossAmount,
		NetPayout:     netPayout,
	}
}

type TransactionStatusChangedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	CreatorID     string `json:"creator_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

func NewTransactionStatusChangedEvent(transactionID, creatorID, from, to string, at time.Time) *TransactionStatusChangedEvent {
	return &TransactionStatusChangedEvent{
		BaseEvent: newBase(EventTypeTransactionStatusChanged, at, map[string]interface{}{
			"transaction_id": transactionID,
			"creator_id":     creatorID,
			"from":           from,
			"to":             to,
		}),
		TransactionID: transactionID,
		CreatorID:     creatorID,
		From:          from,
		To:            to,
	}
}

// OrphanedRefundEvent is raised when a refund lands on a transaction whose
// net payout was already grouped into a payout.
type OrphanedRefundEvent struct {
	BaseEvent
	CaseID        string `json:"case_id"`
	TransactionID string `json:"transaction_id"`
	PayoutID      string `json:"payout_id"`
	CreatorID     string `json:"creator_id"`
	Amount        int64  `json:"amount"`
}

func NewOrphanedRefundEvent(caseID, transactionID, payoutID, creatorID string, amount int64, at time.Time) *OrphanedRefundEvent {
	return &OrphanedRefundEvent{
		BaseEvent: newBase(EventTypeOrphanedRefund, at, map[string]interface{}{
			"case_id":        caseID,
			"transaction_id": transactionID,
			"payout_id":      payoutID,
			"creator_id":     creatorID,
			"amount":         amount,
		}),
		CaseID:        caseID,
		TransactionID: transactionID,
		PayoutID:      payoutID,
		CreatorID:     creatorID,
		Amount:        amount,
	}
}

type PayoutCreatedEvent struct {
	BaseEvent
	PayoutID         string `json:"payout_id"`
	CreatorID        string `json:"creator_id"`
	Amount           int64  `json:"amount"`
	TransactionCount int    `json:"transaction_count"`
}

func NewPayoutCreatedEvent(payoutID, creatorID string, amount int64, transactionCount int, at time.Time) *PayoutCreatedEvent {
	return &PayoutCreatedEvent{
		BaseEvent: newBase(EventTypePayoutCreated, at, map[string]interface{}{
			"payout_id":         payoutID,
			"creator_id":        creatorID,
			"amount":            amount,
			"transaction_count": transactionCount,
		}),
		PayoutID:         payoutID,
		CreatorID:        creatorID,
		Amount:           amount,
		TransactionCount: transactionCount,
	}
}

type PayoutStatusChangedEvent struct {
	BaseEvent
	PayoutID      string `json:"payout_id"`
	CreatorID     string `json:"creator_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func NewPayoutStatusChangedEvent(payoutID, creatorID, from, to, failureReason string, at time.Time) *PayoutStatusChangedEvent {
	data := map[string]interface{}{
		"payout_id":  payoutID,
		"creator_id": creatorID,
		"from":       from,
		"to":         to,
	}
	if failureReason != "" {
		data["failure_reason"] = failureReason
	}
	return &PayoutStatusChangedEvent{
		BaseEvent:     newBase(EventTypePayoutStatusChanged, at, data),
		PayoutID:      payoutID,
		CreatorID:     creatorID,
		From:          from,
		To:            to,
		FailureReason: failureReason,
	}
}
