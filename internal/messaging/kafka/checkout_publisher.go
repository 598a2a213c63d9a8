package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type eventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any, headers map[string]string) error
}

// CheckoutPublisher пишет итоги оформления в Kafka.
// Расхождения заказа и оплаты дублируются в отдельный topic сверки.
type CheckoutPublisher struct {
	producer            eventPublisher
	eventsTopic         string
	reconciliationTopic string
}

// NewCheckoutPublisher создает publisher со стандартными topics.
func NewCheckoutPublisher(producer *Producer) *CheckoutPublisher {
	return &CheckoutPublisher{
		producer:            producer,
		eventsTopic:         TopicCheckoutEvents,
		reconciliationTopic: TopicReconciliation,
	}
}

// Publish реализует domain.CheckoutEventPublisher.
func (p *CheckoutPublisher) Publish(ctx context.Context, event domain.CheckoutEvent) error {
	msg := NewCheckoutEventMessage(event)
	headers := map[string]string{
		HeaderEventType: string(msg.EventType),
		HeaderSessionID: msg.SessionID,
	}

	if err := p.producer.PublishEvent(ctx, p.eventsTopic, msg.Key(), msg, headers); err != nil {
		return fmt.Errorf("publish checkout event: %w", err)
	}
	if !msg.RequiresReconciliation {
		return nil
	}
	if err := p.producer.PublishEvent(ctx, p.reconciliationTopic, msg.Key(), msg, headers); err != nil {
		return fmt.Errorf("publish reconciliation event: %w", err)
	}
	return nil
}

var _ domain.CheckoutEventPublisher = (*CheckoutPublisher)(nil)
