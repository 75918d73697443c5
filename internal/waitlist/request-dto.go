package waitlist

type CreateWaitlistRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=150"`
	Slug        string `json:"slug,omitempty" validate:"omitempty,min=2,max=160"`
	Description string `json:"description,omitempty" validate:"max=2000"`
}

type SignupRequest struct {
	Email        string  `json:"email" validate:"required,email,max=255"`
	ReferralCode string  `json:"referral_code,omitempty" validate:"omitempty,max=16"`
	Metadata     JSONMap `json:"metadata,omitempty"`
}

type ListSubscribersQuery struct {
	Page     int              `form:"page"`
	Limit    int              `form:"limit"`
	Status   SubscriberStatus `form:"status"`
	Verified *bool            `form:"verified"`
}

// Normalize applies paging defaults and bounds
func (q *ListSubscribersQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 50
	}
	if q.Limit > MaxSubscribersPage {
		q.Limit = MaxSubscribersPage
	}
}
