package referrals

import "waitly/internal/rules"

type ReferralStatus string

const (
	StatusPending   ReferralStatus = "PENDING"
	StatusConfirmed ReferralStatus = "CONFIRMED"
	StatusVerified  ReferralStatus = "VERIFIED"
	StatusCompleted ReferralStatus = "COMPLETED"
	StatusRevoked   ReferralStatus = "REVOKED"
)

var allowedTransitions = map[ReferralStatus][]ReferralStatus{
	StatusPending:   {StatusConfirmed, StatusRevoked},
	StatusConfirmed: {StatusVerified, StatusRevoked},
	StatusVerified:  {StatusCompleted, StatusRevoked},
}

// IsValid checks if the referral status is valid
func (s ReferralStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusVerified, StatusCompleted, StatusRevoked:
		return true
	}
	return false
}

// String returns the string representation of ReferralStatus
func (s ReferralStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s ReferralStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransitionTo checks if a referral can move from s to target
func (s ReferralStatus) CanTransitionTo(target ReferralStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CountsTowardReferrer reports whether the referral is included in the
// referrer's referral count
func (s ReferralStatus) CountsTowardReferrer() bool {
	switch s {
	case StatusConfirmed, StatusVerified, StatusCompleted:
		return true
	}
	return false
}

// ScoringEvent returns the event fed to the scoring engine when a referral
// enters s. PENDING and REVOKED have none.
func (s ReferralStatus) ScoringEvent() (rules.EventType, bool) {
	switch s {
	case StatusConfirmed:
		return rules.EventReferralConfirmed, true
	case StatusVerified:
		return rules.EventReferralVerified, true
	case StatusCompleted:
		return rules.EventReferralCompleted, true
	}
	return "", false
}
