package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/lunarhue/linkmark/internal/app/model"
	apprepository "github.com/lunarhue/linkmark/internal/app/repository"
)

// UserDeletedConsumer listens for account deletions published by the identity
// service and purges every link owned by the removed user. The purge is an
// administrative bulk delete: no ownership check, no per-link deletion events,
// because downstream services consume the same upstream event themselves.
type UserDeletedConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	repo     apprepository.LinkRepository
	stopChan chan struct{}
}

// NewUserDeletedConsumer creates a consumer of user-deleted events.
func NewUserDeletedConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LinkRepository) *UserDeletedConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserDeletedConsumer{
		js:       js,
		logger:   logger,
		repo:     repo,
		stopChan: make(chan struct{}),
	}
}

// Start begins consuming user-deleted events.
func (c *UserDeletedConsumer) Start() error {
	// Create stream if not exists; normally the identity service owns it,
	// but local setups run this service alone.
	_, err := c.js.StreamInfo(model.UserStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.UserStreamName,
			Subjects: []string{model.TopicUserDeleted},
		})
		if err != nil {
			return fmt.Errorf("failed to create user events stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.UserStreamName, model.UserDeleteConsumer)
	if err != nil {
		_, err = c.js.AddConsumer(model.UserStreamName, &nats.ConsumerConfig{
			Durable:   model.UserDeleteConsumer,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.TopicUserDeleted, model.UserDeleteConsumer)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

// Stop ends the consume loop after the current fetch.
func (c *UserDeletedConsumer) Stop() {
	close(c.stopChan)
}

func (c *UserDeletedConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		select {
		case <-c.stopChan:
			c.logger.Info("user deleted consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			if err := c.handleMessage(ctx, msg.Data); err != nil {
				c.logger.Error("failed to handle user deleted event", zap.Error(err))
				msg.Nak()
				continue
			}
			msg.Ack()
		}
	}
}

func (c *UserDeletedConsumer) handleMessage(ctx context.Context, data []byte) error {
	var event model.UserDeletedMessage
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal user deleted message: %w", err)
	}
	if event.UserID == uuid.Nil {
		return fmt.Errorf("user deleted message carries no user id")
	}

	if err := c.repo.ForceRemoveAllForUser(ctx, event.UserID); err != nil {
		return err
	}

	c.logger.Info("removed all links for deleted user", zap.String("user_id", event.UserID.String()))
	return nil
}
