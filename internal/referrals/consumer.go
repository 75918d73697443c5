package referrals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"waitly/internal/shared/apperrors"
	"waitly/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ReferralEventMessage is a referral status change published by an upstream
// system. PENDING records a new referral edge; any other status transitions
// an existing referral.
type ReferralEventMessage struct {
	WaitlistID uuid.UUID      `json:"waitlist_id"`
	ReferralID *uuid.UUID     `json:"referral_id,omitempty"`
	ReferrerID *uuid.UUID     `json:"referrer_id,omitempty"`
	ReferredID *uuid.UUID     `json:"referred_id,omitempty"`
	Status     ReferralStatus `json:"status"`
}

type ConsumerConfig struct {
	Brokers           []string
	GroupID           string
	Topics            []string
	Workers           int
	SessionTimeoutMs  int
	HeartbeatMs       int
	RetryBackoffMs    int
	MaxProcessingTime time.Duration
	OffsetOldest      bool

	// Retry policy for transient failures while applying an event
	MaxRetries           uint64
	InitialRetryInterval time.Duration
	MaxRetryInterval     time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "waitly-referral-ingest",
		Topics:               []string{"waitly-referral-events"},
		Workers:              1,
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    time.Minute,
		OffsetOldest:         true,
		MaxRetries:           5,
		InitialRetryInterval: 200 * time.Millisecond,
		MaxRetryInterval:     10 * time.Second,
	}
}

// EventHandler applies referral events to the ledger
type EventHandler struct {
	service Service
	config  *ConsumerConfig
	log     *logger.Logger
}

func NewEventHandler(service Service, config *ConsumerConfig) *EventHandler {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	return &EventHandler{
		service: service,
		config:  config,
		log:     logger.GetDefault(),
	}
}

// Handle applies one message. Malformed messages and events rejected by the
// ledger are logged and dropped; an error is only returned when a transient
// failure outlasted the retry policy.
func (h *EventHandler) Handle(ctx context.Context, value []byte) error {
	var msg ReferralEventMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		h.log.ErrorWithContext(ctx, "Dropping malformed referral event", err, nil)
		return nil
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := h.apply(ctx, msg)
		if err != nil && apperrors.IsDomain(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(h.newBackOff(), h.config.MaxRetries), ctx))

	fields := map[string]interface{}{
		"waitlist_id": msg.WaitlistID.String(),
		"status":      string(msg.Status),
		"attempts":    attempts,
	}
	switch {
	case err == nil:
		return nil
	case apperrors.IsDomain(err):
		h.log.ErrorWithContext(ctx, "Referral event rejected", err, fields)
		return nil
	default:
		h.log.ErrorWithContext(ctx, "Referral event failed after retries", err, fields)
		return err
	}
}

func (h *EventHandler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.config.InitialRetryInterval
	b.MaxInterval = h.config.MaxRetryInterval
	b.MaxElapsedTime = 0
	return b
}

func (h *EventHandler) apply(ctx context.Context, msg ReferralEventMessage) error {
	if msg.WaitlistID == uuid.Nil {
		return apperrors.Validation("waitlist_id is required")
	}

	if msg.Status == StatusPending {
		if msg.ReferrerID == nil || msg.ReferredID == nil {
			return apperrors.Validation("referrer_id and referred_id are required")
		}
		_, err := h.service.RecordReferral(ctx, msg.WaitlistID, *msg.ReferrerID, *msg.ReferredID)
		if errors.Is(err, apperrors.ErrDuplicateReferral) {
			// Redelivery of an event that was already recorded.
			return nil
		}
		return err
	}

	if msg.ReferralID == nil {
		return apperrors.Validation("referral_id is required")
	}
	_, err := h.service.Transition(ctx, msg.WaitlistID, *msg.ReferralID, msg.Status)
	return err
}

// Consumer runs one consumer group member per worker
type Consumer struct {
	groups  []sarama.ConsumerGroup
	config  *ConsumerConfig
	handler *EventHandler
	log     *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSaramaConsumerConfig(config *ConsumerConfig) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
	saramaConfig.Consumer.Offsets.AutoCommit.Interval = time.Second

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return saramaConfig
}

func NewKafkaConsumer(config *ConsumerConfig, service Service) (*Consumer, error) {
	if config == nil {
		config = DefaultConsumerConfig()
	}
	workers := config.Workers
	if workers < 1 {
		workers = 1
	}

	consumer := &Consumer{
		config:  config,
		handler: NewEventHandler(service, config),
		log:     logger.GetDefault(),
	}
	for i := 0; i < workers; i++ {
		group, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, NewSaramaConsumerConfig(config))
		if err != nil {
			_ = consumer.closeGroups()
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
		consumer.groups = append(consumer.groups, group)
	}
	return consumer, nil
}

// Start launches the workers. They run until Stop is called or ctx ends.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.log.Info("Starting referral event consumers", "workers", len(c.groups), "topics", c.config.Topics)
	for i, group := range c.groups {
		c.wg.Add(2)
		go func(workerID int, group sarama.ConsumerGroup) {
			defer c.wg.Done()
			c.runWorker(ctx, workerID, group)
		}(i, group)
		go func(group sarama.ConsumerGroup) {
			defer c.wg.Done()
			for err := range group.Errors() {
				c.log.Error("Consumer group error", "error", err)
			}
		}(group)
	}
}

func (c *Consumer) runWorker(ctx context.Context, workerID int, group sarama.ConsumerGroup) {
	handler := &groupHandler{handler: c.handler, workerID: workerID, log: c.log}
	for {
		if err := group.Consume(ctx, c.config.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.log.Error("Error consuming referral events", "worker", workerID, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			c.log.Info("Referral event worker shutting down", "worker", workerID)
			return
		}
	}
}

func (c *Consumer) Stop() error {
	c.log.Info("Stopping referral event consumers...")
	if c.cancel != nil {
		c.cancel()
	}
	err := c.closeGroups()
	c.wg.Wait()
	if err != nil {
		return err
	}
	c.log.Info("Referral event consumers stopped")
	return nil
}

func (c *Consumer) closeGroups() error {
	var errs []error
	for _, group := range c.groups {
		if err := group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer group: %w", err))
		}
	}
	return errors.Join(errs...)
}

type groupHandler struct {
	handler  *EventHandler
	workerID int
	log      *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.log.Debug("Consumer group session started", "worker", h.workerID)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.log.Debug("Consumer group session ended", "worker", h.workerID)
	return nil
}

// ConsumeClaim marks a message once it was applied or permanently rejected.
// A transient failure ends the claim without marking, so the next session
// resumes from the failed offset instead of committing past it.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handler.Handle(session.Context(), message.Value); err != nil {
				h.log.Error("Referral event failed, restarting from last marked offset", "worker", h.workerID,
					"topic", message.Topic, "partition", message.Partition, "offset", message.Offset, "error", err)
				return fmt.Errorf("referral event at %s/%d/%d: %w", message.Topic, message.Partition, message.Offset, err)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
