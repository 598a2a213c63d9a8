package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

// EnvPrefix — префикс переменных окружения: STOREFRONT_HTTP_ADDR и т.д.
const EnvPrefix = "STOREFRONT"

// CartBackend — где хранятся корзины.
type CartBackend string

const (
	CartBackendMemory   CartBackend = "memory"
	CartBackendRedis    CartBackend = "redis"
	CartBackendPostgres CartBackend = "postgres"
)

// Config описывает настройки запуска BFF.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR"`
	LogLevel        string        `envconfig:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT"`

	ProductServiceURL string        `envconfig:"PRODUCT_SERVICE_URL"`
	OrderServiceURL   string        `envconfig:"ORDER_SERVICE_URL"`
	PaymentServiceURL string        `envconfig:"PAYMENT_SERVICE_URL"`
	UserServiceURL    string        `envconfig:"USER_SERVICE_URL"`
	CallTimeout       time.Duration `envconfig:"CALL_TIMEOUT"`
	HistoryTimeout    time.Duration `envconfig:"HISTORY_TIMEOUT"`

	CartBackend      CartBackend   `envconfig:"CART_BACKEND"`
	CartIdleTTL      time.Duration `envconfig:"CART_IDLE_TTL"`
	CartAnonymousTTL time.Duration `envconfig:"CART_ANONYMOUS_TTL"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`

	PostgresDSN         string `envconfig:"POSTGRES_DSN"`
	PostgresMaxConns    int    `envconfig:"POSTGRES_MAX_CONNS"`
	PostgresAutoMigrate bool   `envconfig:"POSTGRES_AUTO_MIGRATE"`

	// KafkaBrokers через запятую; без них события оформления не публикуются.
	KafkaBrokers  []string `envconfig:"KAFKA_BROKERS"`
	KafkaClientID string   `envconfig:"KAFKA_CLIENT_ID"`

	OTLPEndpoint     string  `envconfig:"OTLP_ENDPOINT"`
	OTLPInsecure     bool    `envconfig:"OTLP_INSECURE"`
	TraceSampleRatio float64 `envconfig:"TRACE_SAMPLE_RATIO"`

	TaxRate               decimal.Decimal `envconfig:"TAX_RATE"`
	FreeShippingThreshold decimal.Decimal `envconfig:"FREE_SHIPPING_THRESHOLD"`
	ShippingFee           decimal.Decimal `envconfig:"SHIPPING_FEE"`
}

// DefaultConfig возвращает настройки локального стенда.
func DefaultConfig() Config {
	p := pricing.DefaultConfig()
	return Config{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,

		ProductServiceURL: "http://localhost:8081/api",
		OrderServiceURL:   "http://localhost:8082/api",
		PaymentServiceURL: "http://localhost:8083/api",
		UserServiceURL:    "http://localhost:8085/api",
		CallTimeout:       15 * time.Second,
		HistoryTimeout:    15 * time.Second,

		CartBackend:      CartBackendMemory,
		CartIdleTTL:      30 * time.Minute,
		CartAnonymousTTL: 7 * 24 * time.Hour,
		RedisAddr:        "localhost:6379",

		PostgresMaxConns:    10,
		PostgresAutoMigrate: true,

		KafkaClientID: "storefront",

		OTLPInsecure:     true,
		TraceSampleRatio: 1,

		TaxRate:               p.TaxRate,
		FreeShippingThreshold: p.FreeShippingThreshold,
		ShippingFee:           p.ShippingFee,
	}
}

// LoadConfig накладывает переменные окружения на DefaultConfig и проверяет результат.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.CartBackend = CartBackend(strings.ToLower(strings.TrimSpace(string(cfg.CartBackend))))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	for name, raw := range map[string]string{
		"product service url": c.ProductServiceURL,
		"order service url":   c.OrderServiceURL,
		"payment service url": c.PaymentServiceURL,
		"user service url":    c.UserServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}
	if c.CallTimeout <= 0 || c.HistoryTimeout <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	switch c.CartBackend {
	case CartBackendMemory:
	case CartBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, errors.New("redis addr is required for redis cart backend"))
		}
	case CartBackendPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres cart backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cart backend %q", c.CartBackend))
	}

	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, errors.New("trace sample ratio must be within [0, 1]"))
	}
	if _, err := pricing.NewEngine(c.PricingConfig()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PricingConfig — параметры расчёта стоимости.
func (c Config) PricingConfig() pricing.Config {
	return pricing.Config{
		TaxRate:               c.TaxRate,
		FreeShippingThreshold: c.FreeShippingThreshold,
		ShippingFee:           c.ShippingFee,
	}
}

// Brokers возвращает непустые адреса брокеров.
func (c Config) Brokers() []string {
	out := make([]string, 0, len(c.KafkaBrokers))
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
