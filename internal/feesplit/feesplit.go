// Package feesplit turns a gross sale amount into its itemized fee breakdown.
// All amounts are integers in the smallest currency unit; rates are decimals.
package feesplit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Sadick14/ticket-flow/internal"
)

// FeeSchedule is the percentage + fixed fee a gateway charges per transaction.
type FeeSchedule struct {
	GatewayID  string          `json:"gateway_id"`
	PercentFee decimal.Decimal `json:"percent_fee"`
	FixedFee   int64           `json:"fixed_fee"`
}

// Validate reports whether the schedule can be used for fee math.
func (s FeeSchedule) Validate() error {
	if s.PercentFee.IsNegative() || s.PercentFee.GreaterThan(decimal.NewFromInt(1)) {
		return internal.ErrInvalidFeeSchedule.Wrap(fmt.Errorf("gateway %s: percent fee %s outside [0, 1]", s.GatewayID, s.PercentFee))
	}
	if s.FixedFee < 0 {
		return internal.ErrInvalidFeeSchedule.Wrap(fmt.Errorf("gateway %s: negative fixed fee %d", s.GatewayID, s.FixedFee))
	}
	return nil
}

// Split is the itemized breakdown of one sale.
// ProcessingFee + PlatformFee + CommissionFee + NetPayout == GrossAmount always holds.
type Split struct {
	GrossAmount   int64 `json:"gross_amount"`
	ProcessingFee int64 `json:"processing_fee"`
	PlatformFee   int64 `json:"platform_fee"`
	CommissionFee int64 `json:"commission_fee"`
	NetPayout     int64 `json:"net_payout"`
}

// TotalFees is the sum of every fee component.
func (s Split) TotalFees() int64 {
	return s.ProcessingFee + s.PlatformFee + s.CommissionFee
}

// Balanced reports whether the split reconciles exactly to its gross amount.
func (s Split) Balanced() bool {
	return s.TotalFees()+s.NetPayout == s.GrossAmount && s.NetPayout >= 0
}

// Quote is the customer-facing total when processing and platform fees are
// passed through to the buyer instead of absorbed by the creator.
type Quote struct {
	GrossAmount   int64 `json:"gross_amount"`
	ProcessingFee int64 `json:"processing_fee"`
	PlatformFee   int64 `json:"platform_fee"`
	TotalCharged  int64 `json:"total_charged"`
}

// ScheduleProvider resolves the fee schedule for a gateway.
type ScheduleProvider interface {
	GetFeeSchedule(ctx context.Context, gatewayID string) (FeeSchedule, error)
}

// Calculator holds the global platform fee rate and resolves schedules and
// commission tiers. ComputeSplit and Quote never touch the provider.
type Calculator struct {
	platformFeeRate decimal.Decimal
	schedules       ScheduleProvider
	tiers           *Tiers
}

func NewCalculator(platformFeeRate decimal.Decimal, schedules ScheduleProvider, tiers *Tiers) (*Calculator, error) {
	if platformFeeRate.IsNegative() || platformFeeRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("platform fee rate %s outside [0, 1]", platformFeeRate)
	}
	return &Calculator{
		platformFeeRate: platformFeeRate,
		schedules:       schedules,
		tiers:           tiers,
	}, nil
}

func (c *Calculator) PlatformFeeRate() decimal.Decimal {
	return c.platformFeeRate
}

// ComputeSplit is pure: identical inputs always yield an identical Split.
//
// Each fee is rounded independently (half away from zero) and the creator's
// net payout absorbs the rounding remainder. When fees would exceed gross the
// net payout is floored at zero and the overshoot is trimmed from commission
// first, then the platform fee, then the processing fee.
func (c *Calculator) ComputeSplit(grossAmount int64, schedule FeeSchedule, commissionRate decimal.Decimal) (Split, error) {
	if grossAmount <= 0 {
		return Split{}, internal.ErrInvalidAmount
	}
	if err := schedule.Validate(); err != nil {
		return Split{}, err
	}
	if commissionRate.IsNegative() || commissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return Split{}, internal.ErrUnknownCommissionTier.Wrap(fmt.Errorf("commission rate %s outside [0, 1]", commissionRate))
	}

	split := Split{
		GrossAmount:   grossAmount,
		ProcessingFee: applyRate(grossAmount, schedule.PercentFee) + schedule.FixedFee,
		CommissionFee: applyRate(grossAmount, commissionRate),
		PlatformFee:   applyRate(grossAmount, c.platformFeeRate),
	}

	split.NetPayout = grossAmount - split.TotalFees()
	if split.NetPayout < 0 {
		overshoot := -split.NetPayout
		overshoot = trim(&split.CommissionFee, overshoot)
		overshoot = trim(&split.PlatformFee, overshoot)
		trim(&split.ProcessingFee, overshoot)
		split.NetPayout = 0
	}

	return split, nil
}

// Quote computes what the buyer pays when fees are passed through.
func (c *Calculator) Quote(grossAmount int64, schedule FeeSchedule) (Quote, error) {
	if grossAmount <= 0 {
		return Quote{}, internal.ErrInvalidAmount
	}
	if err := schedule.Validate(); err != nil {
		return Quote{}, err
	}

	q := Quote{
		GrossAmount:   grossAmount,
		ProcessingFee: applyRate(grossAmount, schedule.PercentFee) + schedule.FixedFee,
		PlatformFee:   applyRate(grossAmount, c.platformFeeRate),
	}
	q.TotalCharged = q.GrossAmount + q.ProcessingFee + q.PlatformFee
	return q, nil
}

// SplitFor resolves the gateway schedule and the tier's commission rate, then
// computes the split.
func (c *Calculator) SplitFor(ctx context.Context, grossAmount int64, gatewayID string, tier CommissionTier) (Split, FeeSchedule, error) {
	if grossAmount <= 0 {
		return Split{}, FeeSchedule{}, internal.ErrInvalidAmount
	}
	schedule, err := c.schedules.GetFeeSchedule(ctx, gatewayID)
	if err != nil {
		return Split{}, FeeSchedule{}, err
	}
	rate, err := c.tiers.Rate(tier)
	if err != nil {
		return Split{}, FeeSchedule{}, err
	}
	split, err := c.ComputeSplit(grossAmount, schedule, rate)
	if err != nil {
		return Split{}, FeeSchedule{}, err
	}
	return split, schedule, nil
}

// QuoteFor resolves the gateway schedule and computes the customer quote.
func (c *Calculator) QuoteFor(ctx context.Context, grossAmount int64, gatewayID string) (Quote, error) {
	if grossAmount <= 0 {
		return Quote{}, internal.ErrInvalidAmount
	}
	schedule, err := c.schedules.GetFeeSchedule(ctx, gatewayID)
	if err != nil {
		return Quote{}, err
	}
	return c.Quote(grossAmount, schedule)
}

func applyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// trim lowers *fee by up to amount and returns what is still left to trim.
func trim(fee *int64, amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	if *fee >= amount {
		*fee -= amount
		return 0
	}
	amount -= *fee
	*fee = 0
	return amount
}
