package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/lunarhue/linkmark/internal/app/model"
)

// LinkEventPublisher publishes link change notifications to NATS JetStream.
// It satisfies repository.LinkEventPublisher, so publish failures abort the
// repository transaction that triggered them.
type LinkEventPublisher struct {
	js nats.JetStreamContext
}

// NewLinkEventPublisher creates a publisher on the given JetStream context.
func NewLinkEventPublisher(js nats.JetStreamContext) *LinkEventPublisher {
	return &LinkEventPublisher{js: js}
}

// EnsureStream creates the link events stream when it does not exist yet.
// Called once at startup.
func (p *LinkEventPublisher) EnsureStream() error {
	_, err := p.js.StreamInfo(model.LinkStreamName)
	if err == nil {
		return nil
	}
	_, err = p.js.AddStream(&nats.StreamConfig{
		Name:     model.LinkStreamName,
		Subjects: []string{model.TopicLinkCreated, model.TopicLinkDeleted},
	})
	if err != nil {
		return fmt.Errorf("create link events stream: %w", err)
	}
	return nil
}

// LinkCreated publishes the creation notification for a link.
func (p *LinkEventPublisher) LinkCreated(ctx context.Context, link *model.Link) error {
	return p.publish(ctx, model.TopicLinkCreated, model.LinkCreatedMessage{
		LinkID: link.ID,
		UserID: link.CreatingUserID,
	})
}

// LinkDeleted publishes the deletion notification for a link.
func (p *LinkEventPublisher) LinkDeleted(ctx context.Context, link *model.Link) error {
	return p.publish(ctx, model.TopicLinkDeleted, model.LinkDeletedMessage{
		LinkID: link.ID,
	})
}

func (p *LinkEventPublisher) publish(ctx context.Context, topic string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", topic, err)
	}
	if _, err := p.js.Publish(topic, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
