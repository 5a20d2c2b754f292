package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/services"
)

// KafkaNotifier publishes change events with a synchronous producer, keyed by order number so
// every event of an order lands on the same partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var _ services.FulfillmentNotifier = (*KafkaNotifier)(nil)

// NewKafkaProducer dials brokers with acknowledgement from all in-sync replicas.
func NewKafkaProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka warehouse notifier: brokers are required")
	}
	cfg := sarama.NewConfig()
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka warehouse notifier: %w", err)
	}
	return producer, nil
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) (*KafkaNotifier, error) {
	if producer == nil {
		return nil, errors.New("kafka warehouse notifier: producer is required")
	}
	if topic == "" {
		return nil, errors.New("kafka warehouse notifier: topic is required")
	}
	return &KafkaNotifier{producer: producer, topic: topic, now: time.Now}, nil
}

func (k *KafkaNotifier) NotifyAddressChange(ctx context.Context, orderNumber string, address domain.Address) (services.FulfillmentResult, error) {
	return k.send(ctx, addressEvent(orderNumber, address, k.now()))
}

func (k *KafkaNotifier) NotifyStatusChange(ctx context.Context, orderNumber string, status domain.OrderStatus) (services.FulfillmentResult, error) {
	return k.send(ctx, statusEvent(orderNumber, status, k.now()))
}

// send blocks until the broker acknowledges. SyncProducer has no context support, so a caller
// deadline only abandons the wait; the message may still be delivered.
func (k *KafkaNotifier) send(ctx context.Context, event Event) (services.FulfillmentResult, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return services.FulfillmentResult{}, fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.OrderNumber),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(event.Type)},
		},
	}

	type sent struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan sent, 1)
	go func() {
		partition, offset, err := k.producer.SendMessage(msg)
		done <- sent{partition: partition, offset: offset, err: err}
	}()

	select {
	case <-ctx.Done():
		return services.FulfillmentResult{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return services.FulfillmentResult{}, fmt.Errorf("produce %s: %w", event.Type, res.err)
		}
		return services.FulfillmentResult{
			Success:   true,
			Reference: fmt.Sprintf("%s/%d/%d", k.topic, res.partition, res.offset),
		}, nil
	}
}

// Close releases the producer.
func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}
