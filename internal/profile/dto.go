package profile

type CreateProfileDTO struct {
	CreatorID           string `json:"creator_id" validate:"required,max=64"`
	CommissionTier      string `json:"commission_tier" validate:"omitempty,max=32"`
	PayoutCadence       string `json:"payout_cadence" validate:"required,oneof=daily weekly monthly"`
	MinimumPayoutAmount int64  `json:"minimum_payout_amount" validate:"gte=0"`
	Verified            bool   `json:"verified"`
}

// UpdateProfileDTO changes only the fields that are set. The last payout time
// belongs to the scheduler and cannot be changed here.
type UpdateProfileDTO struct {
	CommissionTier      *string `json:"commission_tier,omitempty" validate:"omitempty,min=1,max=32"`
	PayoutCadence       *string `json:"payout_cadence,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	MinimumPayoutAmount *int64  `json:"minimum_payout_amount,omitempty" validate:"omitempty,gte=0"`
	Verified            *bool   `json:"verified,omitempty"`
}

type ProfilesResponse struct {
	Profiles []*Profile `json:"profiles"`
}
