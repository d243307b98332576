// Package jobs contains Pub/Sub backed publishers for domain events consumed
// by downstream workers (notifications, analytics).
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/threadcart/api/internal/services"
)

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues an order event message on the configured topic.
func (p *PubSubOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:       event.Type,
		OrderID:    event.OrderID,
		UserID:     event.UserID,
		Status:     event.Status,
		OccurredAt: event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Metadata:   event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "status", event.Status)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PubSubReviewPublisher publishes review lifecycle events to a Pub/Sub topic.
type PubSubReviewPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubReviewPublisher constructs a Pub/Sub backed review event publisher.
func NewPubSubReviewPublisher(topic *pubsub.Topic) (*PubSubReviewPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub review publisher: topic is required")
	}
	return &PubSubReviewPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishReviewEvent enqueues a review event message on the configured topic.
func (p *PubSubReviewPublisher) PublishReviewEvent(ctx context.Context, event services.ReviewEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub review publisher: not initialised")
	}

	data, err := p.marshal(reviewEventMessage{
		Type:       event.Type,
		ReviewID:   event.ReviewID,
		ProductID:  event.ProductID,
		OrderID:    event.OrderID,
		Rating:     event.Rating,
		OccurredAt: event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("marshal review event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "reviewId", event.ReviewID)
	setAttr(attrs, "productId", event.ProductID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish review event: %w", err)
	}
	return nil
}

type orderEventMessage struct {
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId"`
	Status     string         `json:"status"`
	OccurredAt string         `json:"occurredAt"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type reviewEventMessage struct {
	Type       string `json:"type"`
	ReviewID   string `json:"reviewId"`
	ProductID  string `json:"productId"`
	OrderID    string `json:"orderId"`
	Rating     int    `json:"rating"`
	OccurredAt string `json:"occurredAt"`
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
