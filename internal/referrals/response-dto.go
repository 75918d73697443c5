package referrals

// ReferralDetailResponse is a referral with its transition log
type ReferralDetailResponse struct {
	Referral
	Transitions []ReferralTransition `json:"transitions"`
}
