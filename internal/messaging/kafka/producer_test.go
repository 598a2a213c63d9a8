package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicCheckoutEvents {
			return errors.New("unexpected topic " + msg.Topic)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderSessionID {
			return errors.New("session header is missing")
		}
		return nil
	})

	err := producer.PublishEvent(context.Background(), TopicCheckoutEvents, "s-1", map[string]string{"a": "b"}, map[string]string{HeaderSessionID: "s-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(context.Background(), TopicCheckoutEvents, "s-1", struct{}{}, nil)
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected out of brokers error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_CanceledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFromSync(mockProducer, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := producer.PublishEvent(ctx, TopicCheckoutEvents, "s-1", struct{}{}, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_NilIsClosed(t *testing.T) {
	var producer *Producer
	if err := producer.PublishEvent(context.Background(), "t", "k", nil, nil); !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed, got %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close of nil producer: %v", err)
	}
}

func TestNewProducerConfig(t *testing.T) {
	config := NewProducerConfig("storefront")
	if config.ClientID != "storefront" {
		t.Errorf("unexpected client id %q", config.ClientID)
	}
	if !config.Producer.Idempotent || config.Net.MaxOpenRequests != 1 {
		t.Error("producer must be idempotent with a single in-flight request")
	}
	if config.Producer.RequiredAcks != sarama.WaitForAll {
		t.Error("producer must wait for all in-sync replicas")
	}
}

func TestNewCheckoutEventMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	event := domain.CheckoutEvent{
		SessionID:   "s-1",
		IdentityKey: "user:7",
		Outcome:     domain.CheckoutOutcomeFailed,
		Kind:        domain.KindConfirmation,
		OrderID:     42,
		PaymentID:   9,
		Amount:      decimal.RequireFromString("121.00"),
		Message:     "order service down",
		OccurredAt:  at,
	}

	msg := NewCheckoutEventMessage(event)

	if msg.EventType != EventTypeCheckoutFailed {
		t.Errorf("expected event type %s, got %s", EventTypeCheckoutFailed, msg.EventType)
	}
	if !msg.RequiresReconciliation {
		t.Error("confirmation failure must require reconciliation")
	}
	if msg.Key() != "order-42" {
		t.Errorf("unexpected key %q", msg.Key())
	}
	if msg.OccurredAt.Location() != time.UTC {
		t.Error("occurred_at must be stored in UTC")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseCheckoutEvent(&sarama.ConsumerMessage{Value: data})
	if err != nil {
		t.Fatalf("ParseCheckoutEvent failed: %v", err)
	}
	back := parsed.ToDomain()
	if back.OrderID != 42 || back.PaymentID != 9 || back.Kind != domain.KindConfirmation {
		t.Errorf("unexpected round trip: %+v", back)
	}
	if !back.Amount.Equal(event.Amount) || !back.OccurredAt.Equal(at) {
		t.Errorf("amount or time lost: %+v", back)
	}
}

func TestCheckoutEventMessage_KeyFallsBackToSession(t *testing.T) {
	msg := NewCheckoutEventMessage(domain.CheckoutEvent{SessionID: "s-2", Outcome: domain.CheckoutOutcomeCanceled})
	if msg.Key() != "s-2" {
		t.Errorf("unexpected key %q", msg.Key())
	}
	if msg.EventType != EventTypeCheckoutCanceled {
		t.Errorf("unexpected event type %s", msg.EventType)
	}
	if msg.OccurredAt.IsZero() {
		t.Error("occurred_at should default to now")
	}
}

func TestParseCheckoutEvent_Errors(t *testing.T) {
	if _, err := ParseCheckoutEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected unmarshal error")
	}
	if _, err := ParseCheckoutEvent(&sarama.ConsumerMessage{Value: []byte(`{"event_type":"checkout.failed"}`)}); err == nil {
		t.Fatal("expected missing session error")
	}
}
