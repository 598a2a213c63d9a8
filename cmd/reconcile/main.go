package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultGroupID    = "storefront-reconcile"
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

type config struct {
	brokers    []string
	groupID    string
	topic      string
	fromOldest bool
	maxRetries int
	retryDelay time.Duration
}

// reconciliationCase — строка отчета для ручной сверки заказа и платежа.
type reconciliationCase struct {
	SessionID   string    `json:"session_id"`
	IdentityKey string    `json:"identity_key"`
	Kind        string    `json:"kind"`
	OrderID     int64     `json:"order_id,omitempty"`
	PaymentID   int64     `json:"payment_id,omitempty"`
	Amount      string    `json:"amount"`
	Message     string    `json:"message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stderr)

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fail("reconciliation consumer failed: %v", err)
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	var (
		brokersRaw string
		cfg        config
	)

	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: STOREFRONT_KAFKA_BROKERS)")
	fs.StringVar(&cfg.groupID, "group", defaultGroupID, "consumer group id")
	fs.StringVar(&cfg.topic, "topic", kafka.TopicReconciliation, "topic with checkout events to reconcile")
	fs.BoolVar(&cfg.fromOldest, "from-oldest", false, "start from the oldest offset when the group has no commits")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaultMaxRetries, "retries per message before it is left uncommitted")
	fs.DurationVar(&cfg.retryDelay, "retry-delay", defaultRetryDelay, "delay between retries")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv("STOREFRONT_KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or STOREFRONT_KAFKA_BROKERS)")
	}
	if strings.TrimSpace(cfg.groupID) == "" {
		return config{}, fmt.Errorf("group is required")
	}
	if strings.TrimSpace(cfg.topic) == "" {
		return config{}, fmt.Errorf("topic is required")
	}
	if cfg.maxRetries < 0 {
		return config{}, fmt.Errorf("max-retries must be >= 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

// jsonLinesSink печатает каждое расхождение отдельной JSON-строкой.
func jsonLinesSink(out io.Writer) kafka.ReconciliationSink {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	return func(_ context.Context, event *kafka.CheckoutEventMessage) error {
		row := reconciliationCase{
			SessionID:   event.SessionID,
			IdentityKey: event.IdentityKey,
			Kind:        event.Kind,
			OrderID:     event.OrderID,
			PaymentID:   event.PaymentID,
			Amount:      event.Amount.StringFixed(2),
			Message:     event.Message,
			OccurredAt:  event.OccurredAt,
		}
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(row)
	}
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	logger := log.WithField("component", "reconcile")
	logger.WithFields(log.Fields{
		"topic":       cfg.topic,
		"group":       cfg.groupID,
		"from_oldest": cfg.fromOldest,
	}).Info("starting reconciliation consumer")

	consumer, err := kafka.NewConsumer(
		cfg.brokers,
		cfg.groupID,
		[]string{cfg.topic},
		kafka.NewReconciliationHandler(jsonLinesSink(out), logger),
		kafka.WithMaxRetries(cfg.maxRetries),
		kafka.WithRetryDelay(cfg.retryDelay),
		kafka.WithFromOldest(cfg.fromOldest),
		kafka.WithConsumerLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer func() {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop consumer")
		}
	}()

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
