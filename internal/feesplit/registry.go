package feesplit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Sadick14/ticket-flow/internal"
)

// CommissionTier is a creator's subscription level.
type CommissionTier string

const (
	TierFree     CommissionTier = "free"
	TierStandard CommissionTier = "standard"
	TierPremium  CommissionTier = "premium"
)

// NormalizeID canonicalises gateway and tier identifiers for lookups.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Registry is an in-memory gateway fee schedule provider.
type Registry struct {
	mu        sync.RWMutex
	schedules map[string]FeeSchedule
}

func NewRegistry() *Registry {
	return &Registry{schedules: make(map[string]FeeSchedule)}
}

// Register adds or replaces a schedule after validating it.
func (r *Registry) Register(schedule FeeSchedule) error {
	schedule.GatewayID = NormalizeID(schedule.GatewayID)
	if schedule.GatewayID == "" {
		return internal.ErrInvalidFeeSchedule.Wrap(fmt.Errorf("gateway id is required"))
	}
	if err := schedule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[schedule.GatewayID] = schedule
	return nil
}

func (r *Registry) GetFeeSchedule(_ context.Context, gatewayID string) (FeeSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schedule, ok := r.schedules[NormalizeID(gatewayID)]
	if !ok {
		return FeeSchedule{}, internal.ErrUnknownGateway.WithDetails(map[string]string{"gateway_id": gatewayID})
	}
	return schedule, nil
}

// Gateways lists the registered gateway ids in sorted order.
func (r *Registry) Gateways() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.schedules))
	for id := range r.schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tiers maps commission tiers to their rate.
type Tiers struct {
	rates       map[CommissionTier]decimal.Decimal
	defaultTier CommissionTier
}

func NewTiers(rates map[CommissionTier]decimal.Decimal, defaultTier CommissionTier) (*Tiers, error) {
	t := &Tiers{
		rates:       make(map[CommissionTier]decimal.Decimal, len(rates)),
		defaultTier: CommissionTier(NormalizeID(string(defaultTier))),
	}
	for tier, rate := range rates {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("commission tier %s: rate %s outside [0, 1]", tier, rate)
		}
		t.rates[CommissionTier(NormalizeID(string(tier)))] = rate
	}
	if _, ok := t.rates[t.defaultTier]; !ok {
		return nil, fmt.Errorf("default tier %q has no rate", defaultTier)
	}
	return t, nil
}

// Rate returns the commission rate for tier. An empty tier uses the default.
func (t *Tiers) Rate(tier CommissionTier) (decimal.Decimal, error) {
	if tier == "" {
		tier = t.defaultTier
	}
	rate, ok := t.rates[CommissionTier(NormalizeID(string(tier)))]
	if !ok {
		return decimal.Zero, internal.ErrUnknownCommissionTier.WithDetails(map[string]string{"tier": string(tier)})
	}
	return rate, nil
}

func (t *Tiers) Default() CommissionTier {
	return t.defaultTier
}

// Known reports whether tier has a configured rate.
func (t *Tiers) Known(tier CommissionTier) bool {
	_, ok := t.rates[CommissionTier(NormalizeID(string(tier)))]
	return ok
}

// FromConfig builds the calculator and its registries from settlement config.
func FromConfig(cfg internal.SettlementConfig) (*Calculator, *Registry, *Tiers, error) {
	platformRate, err := decimal.NewFromString(cfg.PlatformFeeRate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse platform fee rate: %w", err)
	}

	registry := NewRegistry()
	for _, g := range cfg.Gateways {
		percent, err := decimal.NewFromString(g.PercentFee)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse gateway %s percent fee: %w", g.ID, err)
		}
		if err := registry.Register(FeeSchedule{GatewayID: g.ID, PercentFee: percent, FixedFee: g.FixedFee}); err != nil {
			return nil, nil, nil, err
		}
	}

	rates := make(map[CommissionTier]decimal.Decimal, len(cfg.CommissionTiers))
	for tier, raw := range cfg.CommissionTiers {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse commission tier %s: %w", tier, err)
		}
		rates[CommissionTier(tier)] = rate
	}
	tiers, err := NewTiers(rates, CommissionTier(cfg.DefaultTier))
	if err != nil {
		return nil, nil, nil, err
	}

	calc, err := NewCalculator(platformRate, registry, tiers)
	if err != nil {
		return nil, nil, nil, err
	}
	return calc, registry, tiers, nil
}
