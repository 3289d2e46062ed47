package profile

import (
	"time"

	profileDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/profile"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
)

type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

func (c Cadence) Valid() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return true
	}
	return false
}

// Next returns the first instant a payout is due after one paid at t.
// Monthly is a calendar month, so Jan 31 rolls over to early March.
func (c Cadence) Next(t time.Time) time.Time {
	switch c {
	case CadenceDaily:
		return t.AddDate(0, 0, 1)
	case CadenceWeekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Profile is a creator's payout configuration.
type Profile struct {
	CreatorID           string                  `json:"creator_id"`
	CommissionTier      feesplit.CommissionTier `json:"commission_tier"`
	PayoutCadence       Cadence                 `json:"payout_cadence"`
	MinimumPayoutAmount int64                   `json:"minimum_payout_amount"`
	LastPayoutAt        *time.Time              `json:"last_payout_at,omitempty"`
	Verified            bool                    `json:"verified"`
	CreatedAt           time.Time               `json:"created_at"`
	UpdatedAt           time.Time               `json:"updated_at"`
}

// DueAt returns when the next payout is due. ok is false for a creator that
// has never been paid out, which is due immediately.
func (p *Profile) DueAt() (dueAt time.Time, ok bool) {
	if p.LastPayoutAt == nil {
		return time.Time{}, false
	}
	return p.PayoutCadence.Next(*p.LastPayoutAt), true
}

func (p *Profile) IsDue(now time.Time) bool {
	dueAt, ok := p.DueAt()
	return !ok || !now.Before(dueAt)
}

func ToDataModel(p *Profile) *profileDatamodel.CreatorPaymentProfile {
	return &profileDatamodel.CreatorPaymentProfile{
		CreatorID:           p.CreatorID,
		CommissionTier:      string(p.CommissionTier),
		PayoutCadence:       string(p.PayoutCadence),
		MinimumPayoutAmount: p.MinimumPayoutAmount,
		LastPayoutAt:        p.LastPayoutAt,
		Verified:            p.Verified,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func FromDataModel(p *profileDatamodel.CreatorPaymentProfile) *Profile {
	return &Profile{
		CreatorID:           p.CreatorID,
		CommissionTier:      feesplit.CommissionTier(p.CommissionTier),
		PayoutCadence:       Cadence(p.PayoutCadence),
		MinimumPayoutAmount: p.MinimumPayoutAmount,
		LastPayoutAt:        p.LastPayoutAt,
		Verified:            p.Verified,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}
