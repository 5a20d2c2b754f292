package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/services"
)

// PubSubNotifier publishes change events to a Pub/Sub topic consumed by the WMS bridge.
type PubSubNotifier struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

var _ services.FulfillmentNotifier = (*PubSubNotifier)(nil)

func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub warehouse notifier: topic is required")
	}
	return &PubSubNotifier{
		topic:   topic,
		marshal: json.Marshal,
		now:     time.Now,
	}, nil
}

func (p *PubSubNotifier) NotifyAddressChange(ctx context.Context, orderNumber string, address domain.Address) (services.FulfillmentResult, error) {
	return p.publish(ctx, addressEvent(orderNumber, address, p.now()))
}

func (p *PubSubNotifier) NotifyStatusChange(ctx context.Context, orderNumber string, status domain.OrderStatus) (services.FulfillmentResult, error) {
	return p.publish(ctx, statusEvent(orderNumber, status, p.now()))
}

func (p *PubSubNotifier) publish(ctx context.Context, event Event) (services.FulfillmentResult, error) {
	if p == nil || p.topic == nil {
		return services.FulfillmentResult{}, errors.New("pubsub warehouse notifier: not initialised")
	}
	data, err := p.marshal(event)
	if err != nil {
		return services.FulfillmentResult{}, fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "status", event.Status)

	key := orderingKey(p.topic, event.OrderNumber)
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
		// Keeps events for one order in publish order when the topic has ordering enabled.
		OrderingKey: key,
	})
	id, err := result.Get(ctx)
	if err != nil {
		if key != "" {
			// A failed ordered publish pauses the key until resumed.
			p.topic.ResumePublish(key)
		}
		return services.FulfillmentResult{}, fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return services.FulfillmentResult{Success: true, Reference: id}, nil
}

func orderingKey(topic *pubsub.Topic, orderNumber string) string {
	if topic.EnableMessageOrdering {
		return orderNumber
	}
	return ""
}
