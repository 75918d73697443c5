package notifications

import (
	"context"

	"waitly/pkg/logger"
	"waitly/pkg/metrics"

	"github.com/google/uuid"
)

// Service publishes domain notifications. Delivery is best effort: callers
// invoke it after their transaction committed and never fail on it.
type Service interface {
	ScoreChanged(ctx context.Context, waitlistID, subscriberID uuid.UUID, eventType string, delta, score int64)
	ReferralStatusChanged(ctx context.Context, waitlistID, referralID, referrerID uuid.UUID, from, to string)
	SnapshotCreated(ctx context.Context, waitlistID, snapshotID uuid.UUID, campaignID *uuid.UUID, isFinal bool, entries int)
	CampaignStatusChanged(ctx context.Context, waitlistID, campaignID uuid.UUID, status string)
}

type service struct {
	publisher Publisher
	log       *logger.Logger
}

// NewService creates a notification service on top of publisher
func NewService(publisher Publisher) Service {
	if publisher == nil {
		publisher = NewLogPublisher()
	}
	return &service{
		publisher: publisher,
		log:       logger.GetDefault(),
	}
}

func (s *service) ScoreChanged(ctx context.Context, waitlistID, subscriberID uuid.UUID, eventType string, delta, score int64) {
	notification := NewNotificationBuilder(NotificationTypeScoreChanged, waitlistID).
		WithSubscriber(subscriberID).
		WithData("event_type", eventType).
		WithData("delta", delta).
		WithData("score", score).
		Build()
	s.publish(ctx, notification)
}

func (s *service) ReferralStatusChanged(ctx context.Context, waitlistID, referralID, referrerID uuid.UUID, from, to string) {
	notification := NewNotificationBuilder(NotificationTypeReferralStatusChanged, waitlistID).
		WithReferral(referralID).
		WithSubscriber(referrerID).
		WithData("from_status", from).
		WithData("to_status", to).
		Build()
	s.publish(ctx, notification)
}

func (s *service) SnapshotCreated(ctx context.Context, waitlistID, snapshotID uuid.UUID, campaignID *uuid.UUID, isFinal bool, entries int) {
	notification := NewNotificationBuilder(NotificationTypeSnapshotCreated, waitlistID).
		WithSnapshot(snapshotID).
		WithCampaign(campaignID).
		WithData("is_final", isFinal).
		WithData("entries", entries).
		Build()
	s.publish(ctx, notification)
}

func (s *service) CampaignStatusChanged(ctx context.Context, waitlistID, campaignID uuid.UUID, status string) {
	notification := NewNotificationBuilder(NotificationTypeCampaignStatusChanged, waitlistID).
		WithCampaign(&campaignID).
		WithData("status", status).
		Build()
	s.publish(ctx, notification)
}

func (s *service) publish(ctx context.Context, notification *Notification) {
	err := s.publisher.Publish(ctx, notification)
	metrics.NotificationsPublished.WithLabelValues(string(notification.Type), metrics.Outcome(err)).Inc()
	if err != nil {
		s.log.ErrorWithContext(ctx, "Failed to publish notification", err, map[string]interface{}{
			"type":        string(notification.Type),
			"waitlist_id": notification.WaitlistID.String(),
		})
	}
}
