package referrals

import "github.com/google/uuid"

type RecordReferralRequest struct {
	ReferrerID uuid.UUID `json:"referrer_id" validate:"required"`
	ReferredID uuid.UUID `json:"referred_id" validate:"required"`
}

type TransitionRequest struct {
	Status ReferralStatus `json:"status" validate:"required,oneof=CONFIRMED VERIFIED COMPLETED REVOKED"`
}

type ListReferralsQuery struct {
	Status ReferralStatus `form:"status"`
}
