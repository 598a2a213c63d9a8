// Package checkout ведёт попытку оформления заказа: создание заказа, оплата,
// подтверждение. Координатора на стороне сервисов нет, последовательность
// целиком живёт здесь.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

const (
	defaultCallTimeout    = 15 * time.Second
	defaultPublishTimeout = 5 * time.Second
	tracerName            = "github.com/vladislavdragonenkov/storefront/internal/service/checkout"
)

// Cart — то, что оркестратору нужно от корзины.
type Cart interface {
	Lines() []domain.CartLine
	Clear()
}

// Result — итог успешного оформления.
type Result struct {
	SessionID string
	Order     domain.Order
	Payment   domain.Payment
	Breakdown domain.PricingBreakdown
}

// Options задаёт параметры Orchestrator.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.CheckoutMetrics
	Publisher      domain.CheckoutEventPublisher
	Tracer         trace.Tracer
	CallTimeout    time.Duration
	PublishTimeout time.Duration
	Clock          func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithPublisher задаёт публикацию итогов попыток.
func WithPublisher(publisher domain.CheckoutEventPublisher) Option {
	return func(opts *Options) {
		opts.Publisher = publisher
	}
}

// WithTracer подменяет tracer (по умолчанию глобальный provider).
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *Options) {
		opts.Tracer = tracer
	}
}

// WithCallTimeout ограничивает каждый удалённый вызов.
func WithCallTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.CallTimeout = timeout
	}
}

// WithPublishTimeout ограничивает публикацию события.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.PublishTimeout = timeout
	}
}

// WithClock подменяет время событий.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// Orchestrator создаёт сессии оформления. Сам состояния попыток не хранит.
type Orchestrator struct {
	orders         domain.OrderService
	payments       domain.PaymentService
	pricing        *pricing.Engine
	publisher      domain.CheckoutEventPublisher
	logger         *log.Entry
	metrics        *metrics.CheckoutMetrics
	tracer         trace.Tracer
	callTimeout    time.Duration
	publishTimeout time.Duration
	clock          func() time.Time
}

// NewOrchestrator создаёт оркестратор. Повторов удалённых вызовов нет:
// каждый шаг выполняется ровно один раз на попытку.
func NewOrchestrator(orders domain.OrderService, payments domain.PaymentService, engine *pricing.Engine, options ...Option) *Orchestrator {
	opts := Options{
		CallTimeout:    defaultCallTimeout,
		PublishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	if engine == nil {
		engine = pricing.MustNewEngine(pricing.DefaultConfig())
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Orchestrator{
		orders:         orders,
		payments:       payments,
		pricing:        engine,
		publisher:      opts.Publisher,
		logger:         logger,
		metrics:        opts.Metrics,
		tracer:         opts.Tracer,
		callTimeout:    opts.CallTimeout,
		publishTimeout: opts.PublishTimeout,
		clock:          opts.Clock,
	}
}

// Pricing возвращает движок расчёта, которым считается сумма оплаты.
func (o *Orchestrator) Pricing() *pricing.Engine {
	return o.pricing
}

// NewSession начинает новую попытку в фазе Idle со своим ключом идемпотентности.
func (o *Orchestrator) NewSession(identity domain.Identity) *Session {
	id := uuid.NewString()
	return &Session{
		id:             id,
		identity:       identity,
		idempotencyKey: uuid.NewString(),
		o:              o,
		logger: o.logger.WithFields(log.Fields{
			"session_id": id,
			"identity":   identity.Key(),
		}),
		phase: PhaseIdle,
		done:  make(chan struct{}),
	}
}

// Submit — одноразовая сессия: создать, оформить, забыть.
func (o *Orchestrator) Submit(ctx context.Context, identity domain.Identity, cart Cart, customer domain.CustomerInfo, choice domain.PaymentChoice) (Result, error) {
	return o.NewSession(identity).Submit(ctx, cart, customer, choice)
}
