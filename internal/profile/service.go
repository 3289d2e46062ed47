package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Sadick14/ticket-flow/internal"
	"github.com/Sadick14/ticket-flow/internal/core/common/validation"
	profileDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/profile"
	"github.com/Sadick14/ticket-flow/internal/feesplit"
)

type RepositoryAPI interface {
	Create(ctx context.Context, p *profileDatamodel.CreatorPaymentProfile) error
	GetByCreatorID(ctx context.Context, creatorID string) (*profileDatamodel.CreatorPaymentProfile, error)
	Update(ctx context.Context, creatorID string, fields map[string]interface{}) error
	List(ctx context.Context) ([]*profileDatamodel.CreatorPaymentProfile, error)
}

// TierCatalog tells the service which commission tiers exist.
type TierCatalog interface {
	Known(tier feesplit.CommissionTier) bool
	Default() feesplit.CommissionTier
}

type Service struct {
	repo   RepositoryAPI
	tiers  TierCatalog
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, tiers TierCatalog, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		tiers:  tiers,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CreateProfile(ctx context.Context, dto CreateProfileDTO) (*Profile, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	tier, err := s.resolveTier(dto.CommissionTier)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &Profile{
		CreatorID:           strings.TrimSpace(dto.CreatorID),
		CommissionTier:      tier,
		PayoutCadence:       Cadence(dto.PayoutCadence),
		MinimumPayoutAmount: dto.MinimumPayoutAmount,
		Verified:            dto.Verified,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.Create(ctx, ToDataModel(p)); err != nil {
		if !errors.Is(err, internal.ErrProfileExists) {
			s.logger.Error("failed to create profile", "creator_id", p.CreatorID, "error", err)
		}
		return nil, err
	}

	s.logger.Info("creator payment profile created",
		"creator_id", p.CreatorID,
		"tier", p.CommissionTier,
		"cadence", p.PayoutCadence,
		"minimum_payout_amount", p.MinimumPayoutAmount)
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, creatorID string) (*Profile, error) {
	row, err := s.repo.GetByCreatorID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	return FromDataModel(row), nil
}

func (s *Service) UpdateProfile(ctx context.Context, creatorID string, dto UpdateProfileDTO) (*Profile, error) {
	if err := validation.Struct(dto); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if dto.CommissionTier != nil {
		tier, err := s.resolveTier(*dto.CommissionTier)
		if err != nil {
			return nil, err
		}
		fields["commission_tier"] = string(tier)
	}
	if dto.PayoutCadence != nil {
		fields["payout_cadence"] = *dto.PayoutCadence
	}
	if dto.MinimumPayoutAmount != nil {
		fields["minimum_payout_amount"] = *dto.MinimumPayoutAmount
	}
	if dto.Verified != nil {
		fields["verified"] = *dto.Verified
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.now()
		if err := s.repo.Update(ctx, creatorID, fields); err != nil {
			if !errors.Is(err, internal.ErrProfileNotFound) {
				s.logger.Error("failed to update profile", "creator_id", creatorID, "error", err)
			}
			return nil, err
		}
		s.logger.Info("creator payment profile updated", "creator_id", creatorID, "fields", len(fields)-1)
	}

	return s.GetProfile(ctx, creatorID)
}

func (s *Service) ListProfiles(ctx context.Context) ([]*Profile, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list profiles", "error", err)
		return nil, err
	}

	out := make([]*Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

func (s *Service) resolveTier(raw string) (feesplit.CommissionTier, error) {
	if strings.TrimSpace(raw) == "" {
		return s.tiers.Default(), nil
	}
	tier := feesplit.CommissionTier(feesplit.NormalizeID(raw))
	if !s.tiers.Known(tier) {
		return "", internal.ErrUnknownCommissionTier.WithDetails(map[string]string{"tier": raw})
	}
	return tier, nil
}
