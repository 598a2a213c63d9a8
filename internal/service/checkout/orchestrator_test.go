package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type stubOrders struct {
	mu        sync.Mutex
	orderID   int64
	createErr error
	attachErr error
	createFn  func(ctx context.Context) error

	createCnt int
	attachCnt int
	requests  []domain.CheckoutRequest
	attached  [][2]int64
}

func (s *stubOrders) Create(ctx context.Context, req domain.CheckoutRequest) (domain.Order, error) {
	s.mu.Lock()
	s.createCnt++
	s.requests = append(s.requests, req)
	fn, err, id := s.createFn, s.createErr, s.orderID
	s.mu.Unlock()

	if fn != nil {
		if fnErr := fn(ctx); fnErr != nil {
			return domain.Order{}, fnErr
		}
	}
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{ID: id, Status: domain.OrderStatusPending}, nil
}

func (s *stubOrders) AttachPayment(_ context.Context, orderID, paymentID int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachCnt++
	s.attached = append(s.attached, [2]int64{orderID, paymentID})
	if s.attachErr != nil {
		return domain.Order{}, s.attachErr
	}
	pid := paymentID
	return domain.Order{ID: orderID, Status: domain.OrderStatusPaid, PaymentID: &pid}, nil
}

func (s *stubOrders) ListByCustomer(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (s *stubOrders) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCnt, s.attachCnt
}

type stubPayments struct {
	mu        sync.Mutex
	status    domain.PaymentStatus
	err       error
	paymentID int64
	callCtxOK bool

	calls    int
	requests []domain.PaymentRequest
}

func (s *stubPayments) Process(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
	s.callCtxOK = ctx.Err() == nil
	if s.err != nil {
		return domain.Payment{}, s.err
	}
	return domain.Payment{ID: s.paymentID, OrderID: req.OrderID, Status: s.status, Amount: req.Amount}, nil
}

func (s *stubPayments) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubCart struct {
	mu       sync.Mutex
	lines    []domain.CartLine
	clearCnt int
}

func (c *stubCart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneLines(c.lines)
}

func (c *stubCart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearCnt++
	c.lines = nil
}

type stubPublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.CheckoutEvent
}

func (p *stubPublisher) Publish(_ context.Context, event domain.CheckoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *stubPublisher) all() []domain.CheckoutEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CheckoutEvent(nil), p.events...)
}

type fixture struct {
	orders    *stubOrders
	payments  *stubPayments
	publisher *stubPublisher
	cart      *stubCart
	orch      *Orchestrator
}

func twoItemCart() *stubCart {
	return &stubCart{lines: []domain.CartLine{
		{ProductID: 1, Name: "Mug", UnitPrice: decimal.NewFromInt(50), Quantity: 1},
		{ProductID: 2, Name: "Tee", UnitPrice: decimal.NewFromInt(60), Quantity: 1},
	}}
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	f := &fixture{
		orders:    &stubOrders{orderID: 42},
		payments:  &stubPayments{status: domain.PaymentStatusCompleted, paymentID: 7},
		publisher: &stubPublisher{},
		cart:      twoItemCart(),
	}
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	base := []Option{WithLogger(log.NewEntry(logger)), WithPublisher(f.publisher)}
	f.orch = NewOrchestrator(f.orders, f.payments, pricing.MustNewEngine(pricing.DefaultConfig()), append(base, options...)...)
	return f
}

var (
	customer = domain.CustomerInfo{Email: "ann@example.com", Name: "Ann", ShippingAddress: "Main st 1"}
	choice   = domain.PaymentChoice{Method: domain.PaymentMethodCreditCard, Details: "4111"}
	buyer    = domain.Identity{UserID: "5", Email: "ann@example.com", Token: "jwt"}
)

func TestSubmit_EmptyCartMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(context.Background(), &stubCart{}, customer, choice)

	require.ErrorIs(t, err, domain.ErrEmptyCart)
	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Retryable())
	assert.Equal(t, PhaseFailed, session.Phase())

	creates, attaches := f.orders.counts()
	assert.Zero(t, creates)
	assert.Zero(t, attaches)
	assert.Zero(t, f.payments.count())
}

func TestSubmit_HappyPath(t *testing.T) {
	f := newFixture(t)
	session := f.orch.NewSession(buyer)

	result, err := session.Submit(context.Background(), f.cart, customer, choice)
	require.NoError(t, err)

	assert.Equal(t, PhaseSucceeded, session.Phase())
	assert.Equal(t, 1, f.cart.clearCnt)
	assert.Equal(t, int64(42), result.Order.ID)
	assert.Equal(t, domain.OrderStatusPaid, result.Order.Status)
	assert.Equal(t, int64(7), result.Payment.ID)

	assert.Equal(t, "110.00", pricing.Display(result.Breakdown.Subtotal))
	assert.Equal(t, "11.00", pricing.Display(result.Breakdown.TaxAmount))
	assert.Equal(t, "0.00", pricing.Display(result.Breakdown.ShippingAmount))
	assert.Equal(t, "121.00", pricing.Display(result.Breakdown.Total))

	require.Len(t, f.payments.requests, 1)
	payReq := f.payments.requests[0]
	assert.Equal(t, int64(42), payReq.OrderID)
	assert.True(t, payReq.Amount.Equal(decimal.NewFromInt(121)))
	assert.Equal(t, domain.PaymentMethodCreditCard, payReq.Method)
	assert.Equal(t, "4111", payReq.Details)

	require.Len(t, f.orders.attached, 1)
	assert.Equal(t, [2]int64{42, 7}, f.orders.attached[0])

	require.Len(t, f.orders.requests, 1)
	req := f.orders.requests[0]
	assert.Equal(t, session.IdempotencyKey(), req.IdempotencyKey)
	assert.NotEmpty(t, req.IdempotencyKey)
	require.Len(t, req.Items, 2)
	assert.Equal(t, "Mug", req.Items[0].ProductName)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CheckoutOutcomeSucceeded, events[0].Outcome)
	assert.Equal(t, int64(42), events[0].OrderID)
	assert.Equal(t, "user:5", events[0].IdentityKey)

	select {
	case <-session.Done():
	default:
		t.Fatal("session must be done after terminal phase")
	}
}

func TestSubmit_OrderCreationFails(t *testing.T) {
	f := newFixture(t)
	f.orders.createErr = errors.New("dial tcp: connection refused")
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(context.Background(), f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrOrderCreation)
	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Retryable())
	assert.Zero(t, cerr.OrderID)

	assert.Equal(t, PhaseFailed, session.Phase())
	assert.Zero(t, f.payments.count())
	assert.Len(t, f.cart.Lines(), 2)
	assert.Zero(t, f.cart.clearCnt)
}

func TestSubmit_OrderCreationCarriesUpstreamMessage(t *testing.T) {
	f := newFixture(t)
	f.orders.createErr = &domain.RemoteError{Service: "orders", StatusCode: 400, Message: "Product 2 is out of stock"}

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)

	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, domain.KindOrderCreation, cerr.Kind)
	assert.Equal(t, "Product 2 is out of stock", cerr.Message)
}

func TestSubmit_PaymentStatusFailed(t *testing.T) {
	f := newFixture(t)
	f.payments.status = domain.PaymentStatusFailed
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(context.Background(), f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrPayment)
	require.ErrorIs(t, err, ErrPaymentNotCompleted)
	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, int64(42), cerr.OrderID)
	assert.True(t, cerr.UnpaidOrderLeft())
	assert.False(t, cerr.Retryable())

	assert.Equal(t, PhaseFailed, session.Phase())
	assert.Equal(t, int64(42), session.OrderID())
	_, attaches := f.orders.counts()
	assert.Zero(t, attaches)
	assert.Len(t, f.cart.Lines(), 2)
	assert.Zero(t, f.cart.clearCnt)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.True(t, events[0].NeedsReconciliation())
	assert.Equal(t, domain.KindPayment, events[0].Kind)
}

func TestSubmit_PaymentPendingIsNotSuccess(t *testing.T) {
	f := newFixture(t)
	f.payments.status = domain.PaymentStatusPending

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrPayment)
	_, attaches := f.orders.counts()
	assert.Zero(t, attaches)
}

func TestSubmit_PaymentTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.payments.err = errors.New("connection reset by peer")

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)

	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, domain.KindPayment, cerr.Kind)
	assert.Equal(t, int64(42), cerr.OrderID)
	assert.Zero(t, f.cart.clearCnt)
}

func TestSubmit_ConfirmationFails(t *testing.T) {
	f := newFixture(t)
	f.orders.attachErr = &domain.RemoteError{Service: "orders", StatusCode: 503, Message: "unavailable"}
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(context.Background(), f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrConfirmation)
	var cerr *domain.CheckoutError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.RequiresReconciliation())
	assert.Equal(t, int64(42), cerr.OrderID)
	assert.Equal(t, int64(7), cerr.PaymentID)
	assert.Equal(t, "unavailable", cerr.Message)

	assert.Equal(t, PhaseFailed, session.Phase())
	assert.Len(t, f.cart.Lines(), 2)
	assert.Zero(t, f.cart.clearCnt)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.KindConfirmation, events[0].Kind)
	assert.Equal(t, int64(7), events[0].PaymentID)
}

func TestSubmit_NoRetries(t *testing.T) {
	f := newFixture(t)
	f.orders.createErr = errors.New("boom")

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)
	require.Error(t, err)

	creates, _ := f.orders.counts()
	assert.Equal(t, 1, creates)
}

func TestSession_CancelBeforeSubmit(t *testing.T) {
	f := newFixture(t)
	session := f.orch.NewSession(buyer)

	require.NoError(t, session.Cancel())
	assert.Equal(t, PhaseCanceled, session.Phase())
	assert.ErrorIs(t, session.Err(), domain.ErrCheckoutCanceled)

	_, err := session.Submit(context.Background(), f.cart, customer, choice)
	require.ErrorIs(t, err, domain.ErrSessionClosed)

	creates, _ := f.orders.counts()
	assert.Zero(t, creates)
	assert.Zero(t, f.payments.count())
	require.ErrorIs(t, session.Cancel(), domain.ErrSessionClosed)
}

func TestSubmit_CanceledContextBeforeCreate(t *testing.T) {
	f := newFixture(t)
	session := f.orch.NewSession(buyer)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Submit(ctx, f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrCheckoutCanceled)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseCanceled, session.Phase())
	creates, _ := f.orders.counts()
	assert.Zero(t, creates)
	assert.Zero(t, f.payments.count())
	assert.Equal(t, 2, len(f.cart.Lines()))

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CheckoutOutcomeCanceled, events[0].Outcome)
}

func TestSubmit_CallerCancellationAfterCreateIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.orders.createFn = func(context.Context) error {
		cancel()
		return nil
	}
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(ctx, f.cart, customer, choice)
	require.NoError(t, err)

	assert.Equal(t, PhaseSucceeded, session.Phase())
	assert.True(t, f.payments.callCtxOK)
	assert.Equal(t, 1, f.cart.clearCnt)
}

func TestSession_CancelDuringCreateIsRejected(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.orders.createFn = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}
	session := f.orch.NewSession(buyer)

	errCh := make(chan error, 1)
	go func() {
		_, err := session.Submit(context.Background(), f.cart, customer, choice)
		errCh <- err
	}()

	<-entered
	require.ErrorIs(t, session.Cancel(), ErrCancelTooLate)
	_, err := session.Submit(context.Background(), f.cart, customer, choice)
	require.ErrorIs(t, err, domain.ErrCheckoutInProgress)

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, PhaseSucceeded, session.Phase())
}

func TestSubmit_SessionIsSingleUse(t *testing.T) {
	f := newFixture(t)
	session := f.orch.NewSession(buyer)

	_, err := session.Submit(context.Background(), f.cart, customer, choice)
	require.NoError(t, err)

	_, err = session.Submit(context.Background(), twoItemCart(), customer, choice)
	require.ErrorIs(t, err, domain.ErrSessionClosed)
	creates, _ := f.orders.counts()
	assert.Equal(t, 1, creates)
}

func TestSubmit_CallTimeoutIsOrderCreationFailure(t *testing.T) {
	f := newFixture(t, WithCallTimeout(20*time.Millisecond))
	f.orders.createFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)

	require.ErrorIs(t, err, domain.ErrOrderCreation)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.payments.count())
}

func TestSubmit_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cart.clearCnt)
}

func TestSubmit_IdempotencyKeyDiffersPerSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Submit(context.Background(), buyer, twoItemCart(), customer, choice)
	require.NoError(t, err)
	_, err = f.orch.Submit(context.Background(), buyer, twoItemCart(), customer, choice)
	require.NoError(t, err)

	require.Len(t, f.orders.requests, 2)
	assert.NotEqual(t, f.orders.requests[0].IdempotencyKey, f.orders.requests[1].IdempotencyKey)
}

func TestSubmit_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetricsWithRegisterer(reg)
	f := newFixture(t, WithMetrics(m))

	_, err := f.orch.Submit(context.Background(), buyer, f.cart, customer, choice)
	require.NoError(t, err)

	f.payments.status = domain.PaymentStatusFailed
	_, err = f.orch.Submit(context.Background(), buyer, twoItemCart(), customer, choice)
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if metric.GetCounter() != nil {
				values[family.GetName()] += metric.GetCounter().GetValue()
			}
			if metric.GetGauge() != nil {
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, values["storefront_checkout_started_total"])
	assert.Equal(t, 1.0, values["storefront_checkout_succeeded_total"])
	assert.Equal(t, 1.0, values["storefront_checkout_failed_total"])
	assert.Equal(t, 0.0, values["storefront_checkout_active"])
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "storefront_checkout_duration_seconds"))
}

func TestSubmit_ClearsRealCartStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := cart.NewStore(ctx, buyer, memory.NewCartStorage())
	defer store.Close()
	store.AddItem(domain.Product{ID: 1, Name: "Mug", Price: decimal.NewFromInt(50)}, 1)
	store.AddItem(domain.Product{ID: 2, Name: "Tee", Price: decimal.NewFromInt(60)}, 1)

	f.payments.status = domain.PaymentStatusFailed
	_, err := f.orch.Submit(ctx, buyer, store, customer, choice)
	require.ErrorIs(t, err, domain.ErrPayment)
	assert.Equal(t, 2, store.TotalItems())

	f.payments.status = domain.PaymentStatusCompleted
	_, err = f.orch.Submit(ctx, buyer, store, customer, choice)
	require.NoError(t, err)
	assert.True(t, store.IsEmpty())
}
