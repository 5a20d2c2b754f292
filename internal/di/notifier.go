package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"github.com/techfy/storefront-api/internal/platform/config"
	"github.com/techfy/storefront-api/internal/platform/observability"
	"github.com/techfy/storefront-api/internal/services"
	"github.com/techfy/storefront-api/internal/warehouse"
)

// buildNotifier selects the warehouse adapter. The returned close function may be nil.
func buildNotifier(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (services.FulfillmentNotifier, func(context.Context) error, error) {
	switch cfg.Mode {
	case config.WarehouseModeHTTP:
		notifier, err := warehouse.NewHTTPNotifier(cfg.BaseURL, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return notifier, nil, nil

	case config.WarehouseModePubSub:
		if cfg.PubSubProjectID == "" || cfg.PubSubTopic == "" {
			return nil, nil, errors.New("pubsub warehouse notifier: project id and topic are required")
		}
		client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("pubsub warehouse notifier: %w", err)
		}
		topic := client.Topic(cfg.PubSubTopic)
		topic.EnableMessageOrdering = true
		notifier, err := warehouse.NewPubSubNotifier(topic)
		if err != nil {
			topic.Stop()
			_ = client.Close()
			return nil, nil, err
		}
		return notifier, func(context.Context) error {
			topic.Stop()
			return client.Close()
		}, nil

	case config.WarehouseModeKafka:
		sarama.Logger = observability.NewPrintfAdapter(logger.Named("sarama"))
		producer, err := warehouse.NewKafkaProducer(cfg.KafkaBrokers, "storefront-api")
		if err != nil {
			return nil, nil, err
		}
		notifier, err := warehouse.NewKafkaNotifier(producer, cfg.KafkaTopic)
		if err != nil {
			_ = producer.Close()
			return nil, nil, err
		}
		return notifier, func(context.Context) error { return notifier.Close() }, nil

	default:
		return warehouse.NewStubNotifier(0), nil, nil
	}
}
