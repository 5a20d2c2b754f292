package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	domain "github.com/techfy/storefront-api/internal/domain"
)

var testAddress = domain.Address{Line1: "1 Harbour Rd", City: "Leith", PostalCode: "EH6 6AA", CountryCode: "GB"}

func TestStubNotifierLabelsByOrderNumber(t *testing.T) {
	stub := NewStubNotifier(0)
	res, err := stub.NotifyAddressChange(context.Background(), "JJ00000042", testAddress)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "WMS-JJ00000042", res.LabelID)

	res, err = stub.NotifyStatusChange(context.Background(), "JJ00000042", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.LabelID)
}

func TestStubNotifierHonoursDeadline(t *testing.T) {
	stub := NewStubNotifier(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := stub.NotifyStatusChange(ctx, "JJ00000042", domain.OrderStatusPacking)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPNotifierPostsLabelRequest(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wms/labels", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"labelId":"LBL-9","id":"req-1"}`))
	}))
	defer srv.Close()

	notifier, err := NewHTTPNotifier(srv.URL+"/wms/", time.Second)
	require.NoError(t, err)
	res, err := notifier.NotifyAddressChange(context.Background(), "JJ00000042", testAddress)
	require.NoError(t, err)

	assert.Equal(t, "LBL-9", res.LabelID)
	assert.Equal(t, "req-1", res.Reference)
	assert.Equal(t, EventAddressChanged, got.Type)
	require.NotNil(t, got.Address)
	assert.Equal(t, "GB", got.Address.CountryCode)
}

func TestHTTPNotifierFailsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier, err := NewHTTPNotifier(srv.URL, time.Second)
	require.NoError(t, err)
	_, err = notifier.NotifyStatusChange(context.Background(), "JJ00000042", domain.OrderStatusShipped)
	assert.Error(t, err)
}

func TestNewHTTPNotifierRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPNotifier("wms.local/api", time.Second)
	assert.Error(t, err)
}

func TestPubSubNotifierPublishesStatusEvent(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "warehouse-events")
	require.NoError(t, err)
	defer topic.Stop()

	notifier, err := NewPubSubNotifier(topic)
	require.NoError(t, err)
	res, err := notifier.NotifyStatusChange(ctx, "JJ00000042", domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.Reference)

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "JJ00000042", messages[0].Attributes["orderNumber"])
	assert.Equal(t, EventStatusChanged, messages[0].Attributes["type"])

	var event Event
	require.NoError(t, json.Unmarshal(messages[0].Data, &event))
	assert.Equal(t, "SHIPPED", event.Status)
}

func TestNewPubSubNotifierRequiresTopic(t *testing.T) {
	_, err := NewPubSubNotifier(nil)
	assert.Error(t, err)
}

func TestKafkaNotifierProducesKeyedEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event Event
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != EventAddressChanged || event.Address == nil {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	notifier, err := NewKafkaNotifier(producer, "warehouse-events")
	require.NoError(t, err)
	res, err := notifier.NotifyAddressChange(context.Background(), "JJ00000042", testAddress)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Reference, "warehouse-events/")
	require.NoError(t, notifier.Close())
}

func TestKafkaNotifierSurfacesProducerError(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	notifier, err := NewKafkaNotifier(producer, "warehouse-events")
	require.NoError(t, err)
	_, err = notifier.NotifyStatusChange(context.Background(), "JJ00000042", domain.OrderStatusPacking)
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, notifier.Close())
}
