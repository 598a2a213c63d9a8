package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/client/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/client/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/client/identity"
	"github.com/vladislavdragonenkov/storefront/internal/client/orders"
	"github.com/vladislavdragonenkov/storefront/internal/client/payments"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// Dependencies содержит внешние зависимости BFF.
type Dependencies struct {
	CartStorage domain.CartStorage
	Catalog     *catalog.Client
	Orders      *orders.Client
	Payments    *payments.Client
	Identity    *identity.Client
	Pricing     *pricing.Engine
	// Publisher nil, если Kafka не настроена или недоступна.
	Publisher domain.CheckoutEventPublisher
	Health    *health.Handler
	Logger    *log.Entry

	closers []func() error
}

// NewDependencies создаёт клиентов, хранилище корзин и publisher.
// При ошибке уже открытые ресурсы закрываются.
func NewDependencies(ctx context.Context, cfg Config, healthHandler *health.Handler, logger *log.Entry) (_ *Dependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if healthHandler == nil {
		healthHandler = health.NewHandler("")
	}
	deps := &Dependencies{Health: healthHandler, Logger: logger}
	defer func() {
		if err != nil {
			_ = deps.Close()
		}
	}()

	if deps.Pricing, err = pricing.NewEngine(cfg.PricingConfig()); err != nil {
		return nil, err
	}

	clientOpts := []httpapi.Option{httpapi.WithTimeout(cfg.CallTimeout)}
	if deps.Catalog, err = catalog.New(cfg.ProductServiceURL, clientOpts...); err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	if deps.Orders, err = orders.New(cfg.OrderServiceURL, clientOpts...); err != nil {
		return nil, fmt.Errorf("orders client: %w", err)
	}
	if deps.Payments, err = payments.New(cfg.PaymentServiceURL, clientOpts...); err != nil {
		return nil, fmt.Errorf("payments client: %w", err)
	}
	if deps.Identity, err = identity.New(cfg.UserServiceURL, clientOpts...); err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}

	if err = deps.initCartStorage(ctx, cfg); err != nil {
		return nil, err
	}
	deps.initPublisher(cfg)
	return deps, nil
}

func (d *Dependencies) initCartStorage(ctx context.Context, cfg Config) error {
	logger := d.Logger.WithField("cart_backend", cfg.CartBackend)

	switch cfg.CartBackend {
	case CartBackendMemory, "":
		d.CartStorage = memory.NewCartStorage()

	case CartBackendRedis:
		client, err := redis.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		storage := redis.NewCartStorage(client, cfg.CartAnonymousTTL)
		d.CartStorage = storage
		d.closers = append(d.closers, client.Close)
		d.Health.RegisterChecker("cart-storage", health.NewPingChecker("cart-storage", storage.Ping))

	case CartBackendPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		d.closers = append(d.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		d.CartStorage = postgres.NewCartStorage(store)
		d.Health.RegisterChecker("cart-storage", health.NewPingChecker("cart-storage", store.Ping))

	default:
		return fmt.Errorf("unknown cart backend %q", cfg.CartBackend)
	}

	logger.Info("cart storage initialized")
	return nil
}

// initPublisher: без Kafka оформление работает, события только не уходят.
func (d *Dependencies) initPublisher(cfg Config) {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		return
	}
	producer, err := kafka.NewProducer(brokers, cfg.KafkaClientID)
	if err != nil {
		d.Logger.WithError(err).Warn("failed to create kafka producer, continuing without checkout events")
		d.Health.RegisterChecker("kafka", health.NewOptionalChecker("kafka", func(context.Context) error {
			return err
		}))
		return
	}
	d.Publisher = kafka.NewCheckoutPublisher(producer)
	d.closers = append(d.closers, producer.Close)
	d.Logger.WithField("brokers", brokers).Info("kafka producer initialized")
}

// Close освобождает ресурсы в обратном порядке.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
