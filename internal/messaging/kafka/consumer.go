package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 200 * time.Millisecond
)

// MessageHandler обрабатывает сообщение из Kafka
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerOptions — настройки Consumer.
type ConsumerOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	// FromOldest читает topic с начала при первом подключении группы.
	FromOldest bool
	Logger     *log.Entry
}

// ConsumerOption изменяет ConsumerOptions.
type ConsumerOption func(*ConsumerOptions)

// WithMaxRetries задает число повторов обработки одного сообщения.
func WithMaxRetries(n int) ConsumerOption {
	return func(o *ConsumerOptions) {
		if n >= 0 {
			o.MaxRetries = n
		}
	}
}

// WithRetryDelay задает паузу между повторами.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(o *ConsumerOptions) {
		if d >= 0 {
			o.RetryDelay = d
		}
	}
}

// WithFromOldest включает чтение с самого раннего offset.
func WithFromOldest(v bool) ConsumerOption {
	return func(o *ConsumerOptions) {
		o.FromOldest = v
	}
}

// WithConsumerLogger задает логгер.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(o *ConsumerOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Consumer читает topics в составе consumer group.
type Consumer struct {
	consumer   sarama.ConsumerGroup
	topics     []string
	handler    MessageHandler
	logger     *log.Entry
	wg         sync.WaitGroup
	maxRetries int
	retryDelay time.Duration
}

// NewConsumer создает новый Kafka consumer
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, options ...ConsumerOption) (*Consumer, error) {
	opts := ConsumerOptions{
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		Logger:     log.WithField("component", "kafka-consumer"),
	}
	for _, option := range options {
		option(&opts)
	}

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if opts.FromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:   group,
		topics:     topics,
		handler:    handler,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}, nil
}

// Start запускает consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается на каждом rebalance.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop останавливает consumer
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup вызывается при старте consumer session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения из partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				// Offset не сдвигаем: сообщение будет прочитано заново после перезапуска.
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithError(err).WithFields(log.Fields{
				"topic":   message.Topic,
				"attempt": attempt,
			}).Warn("message processing failed, retrying")
			if waitErr := sleepCtx(ctx, c.retryDelay); waitErr != nil {
				return waitErr
			}
		}
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ReconciliationSink получает попытки оформления, требующие ручной сверки.
type ReconciliationSink func(ctx context.Context, event *CheckoutEventMessage) error

// NewReconciliationHandler разбирает события и передает в sink только расхождения.
// Нечитаемые сообщения пропускаются с предупреждением, чтобы не блокировать partition.
func NewReconciliationHandler(sink ReconciliationSink, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "reconciliation-handler")
	}
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParseCheckoutEvent(message)
		if err != nil {
			logger.WithError(err).WithFields(log.Fields{
				"topic":  message.Topic,
				"offset": message.Offset,
			}).Warn("skipping malformed checkout event")
			return nil
		}
		if !event.RequiresReconciliation {
			return nil
		}
		return sink(ctx, event)
	}
}
