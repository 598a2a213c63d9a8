package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeCheckoutSucceeded EventType = "checkout.succeeded"
	EventTypeCheckoutFailed    EventType = "checkout.failed"
	EventTypeCheckoutCanceled  EventType = "checkout.canceled"
)

// Topics для Kafka
const (
	TopicCheckoutEvents = "storefront.checkout.events"
	// TopicReconciliation получает только попытки, где заказ и оплата разошлись.
	TopicReconciliation = "storefront.checkout.reconciliation"
)

// Kafka headers
const (
	HeaderEventType = "x-event-type"
	HeaderSessionID = "x-session-id"
)

// CheckoutEventMessage — JSON-представление итога попытки оформления.
type CheckoutEventMessage struct {
	EventType              EventType       `json:"event_type"`
	SessionID              string          `json:"session_id"`
	IdentityKey            string          `json:"identity_key"`
	Outcome                string          `json:"outcome"`
	Kind                   string          `json:"kind,omitempty"`
	OrderID                int64           `json:"order_id,omitempty"`
	PaymentID              int64           `json:"payment_id,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Message                string          `json:"message,omitempty"`
	RequiresReconciliation bool            `json:"requires_reconciliation"`
	OccurredAt             time.Time       `json:"occurred_at"`
}

// EventTypeFor сопоставляет итог оформления типу события.
func EventTypeFor(outcome domain.CheckoutOutcome) EventType {
	switch outcome {
	case domain.CheckoutOutcomeSucceeded:
		return EventTypeCheckoutSucceeded
	case domain.CheckoutOutcomeCanceled:
		return EventTypeCheckoutCanceled
	default:
		return EventTypeCheckoutFailed
	}
}

// NewCheckoutEventMessage создает сообщение из доменного события
func NewCheckoutEventMessage(event domain.CheckoutEvent) *CheckoutEventMessage {
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return &CheckoutEventMessage{
		EventType:              EventTypeFor(event.Outcome),
		SessionID:              event.SessionID,
		IdentityKey:            event.IdentityKey,
		Outcome:                string(event.Outcome),
		Kind:                   string(event.Kind),
		OrderID:                event.OrderID,
		PaymentID:              event.PaymentID,
		Amount:                 event.Amount,
		Message:                event.Message,
		RequiresReconciliation: event.NeedsReconciliation(),
		OccurredAt:             occurredAt.UTC(),
	}
}

// ToDomain восстанавливает доменное событие.
func (m *CheckoutEventMessage) ToDomain() domain.CheckoutEvent {
	return domain.CheckoutEvent{
		SessionID:   m.SessionID,
		IdentityKey: m.IdentityKey,
		Outcome:     domain.CheckoutOutcome(m.Outcome),
		Kind:        domain.ErrorKind(m.Kind),
		OrderID:     m.OrderID,
		PaymentID:   m.PaymentID,
		Amount:      m.Amount,
		Message:     m.Message,
		OccurredAt:  m.OccurredAt,
	}
}

// Key возвращает ключ партиционирования: заказ, а если его нет, сессия.
func (m *CheckoutEventMessage) Key() string {
	if m.OrderID != 0 {
		return fmt.Sprintf("order-%d", m.OrderID)
	}
	return m.SessionID
}

// ParseCheckoutEvent парсит CheckoutEventMessage из сообщения
func ParseCheckoutEvent(message *sarama.ConsumerMessage) (*CheckoutEventMessage, error) {
	var event CheckoutEventMessage
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout event: %w", err)
	}
	if event.SessionID == "" {
		return nil, fmt.Errorf("checkout event without session id at offset %d", message.Offset)
	}
	return &event, nil
}
