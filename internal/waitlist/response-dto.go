package waitlist

import (
	"github.com/google/uuid"
)

type WaitlistStatsResponse struct {
	WaitlistID          uuid.UUID `json:"waitlist_id"`
	TotalSubscribers    int64     `json:"total_subscribers"`
	ActiveSubscribers   int64     `json:"active_subscribers"`
	VerifiedSubscribers int64     `json:"verified_subscribers"`
	ReferredSubscribers int64     `json:"referred_subscribers"`
	TopScore            int64     `json:"top_score"`
}

type WaitlistDetailResponse struct {
	Waitlist
	Stats *WaitlistStatsResponse `json:"stats"`
}

type SignupResponse struct {
	Subscriber *Subscriber `json:"subscriber"`
	Created    bool        `json:"created"`
	Referred   bool        `json:"referred"`
}

type SubscriberListResponse struct {
	Subscribers []Subscriber `json:"subscribers"`
	Total       int64        `json:"total"`
	Page        int          `json:"page"`
	Limit       int          `json:"limit"`
}
