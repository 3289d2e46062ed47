package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sadick14/ticket-flow/internal"
	profileDatamodel "github.com/Sadick14/ticket-flow/internal/core/datamodel/profile"
	"github.com/Sadick14/ticket-flow/internal/profile"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

var _ profile.RepositoryAPI = (*ProfileRepository)(nil)

func (r *ProfileRepository) Create(ctx context.Context, p *profileDatamodel.CreatorPaymentProfile) error {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if result.Error != nil {
		return internal.NewStoreUnavailableError("create profile", result.Error)
	}
	if result.RowsAffected == 0 {
		return internal.ErrProfileExists.WithDetails(map[string]string{"creator_id": p.CreatorID})
	}
	return nil
}

func (r *ProfileRepository) GetByCreatorID(ctx context.Context, creatorID string) (*profileDatamodel.CreatorPaymentProfile, error) {
	var p profileDatamodel.CreatorPaymentProfile
	err := r.db.WithContext(ctx).Where("creator_id = ?", creatorID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrProfileNotFound
		}
		return nil, internal.NewStoreUnavailableError("get profile", err)
	}
	return &p, nil
}

// Update applies fields to the profile row. last_payout_at is only written by
// the payout store as part of a batch.
func (r *ProfileRepository) Update(ctx context.Context, creatorID string, fields map[string]interface{}) error {
	delete(fields, "last_payout_at")
	result := r.db.WithContext(ctx).
		Model(&profileDatamodel.CreatorPaymentProfile{}).
		Where("creator_id = ?", creatorID).
		Updates(fields)
	if result.Error != nil {
		return internal.NewStoreUnavailableError("update profile", result.Error)
	}
	if result.RowsAffected == 0 {
		return internal.ErrProfileNotFound
	}
	return nil
}

func (r *ProfileRepository) List(ctx context.Context) ([]*profileDatamodel.CreatorPaymentProfile, error) {
	var profiles []*profileDatamodel.CreatorPaymentProfile
	if err := r.db.WithContext(ctx).Order("creator_id ASC").Find(&profiles).Error; err != nil {
		return nil, internal.NewStoreUnavailableError("list profiles", err)
	}
	return profiles, nil
}
