package referrals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// WaitlistAdapter implements the waitlist ReferralRecorder interface on top
// of the referral ledger. It keeps the waitlist package free of a referrals
// import.
type WaitlistAdapter struct {
	service Service
}

// NewWaitlistAdapter creates a new waitlist adapter
func NewWaitlistAdapter(service Service) *WaitlistAdapter {
	return &WaitlistAdapter{service: service}
}

// RecordReferral records the referral created by a signup with a referral code
func (a *WaitlistAdapter) RecordReferral(ctx context.Context, waitlistID, referrerID, referredID uuid.UUID) error {
	if _, err := a.service.RecordReferral(ctx, waitlistID, referrerID, referredID); err != nil {
		return fmt.Errorf("failed to record referral from %s: %w", referrerID, err)
	}
	return nil
}

// ConfirmReferralFor confirms the referral of a subscriber who just verified
func (a *WaitlistAdapter) ConfirmReferralFor(ctx context.Context, waitlistID, referredID uuid.UUID) error {
	return a.service.ConfirmReferralFor(ctx, waitlistID, referredID)
}
