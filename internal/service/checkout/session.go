package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

var (
	// ErrPaymentNotCompleted — платёжный сервис ответил статусом, отличным от COMPLETED.
	ErrPaymentNotCompleted = errors.New("payment was not completed")
	// ErrCancelTooLate — создание заказа уже началось, попытка доводится до конца.
	ErrCancelTooLate = errors.New("checkout cannot be canceled after order creation started")
)

const (
	stepCreateOrder    = "create_order"
	stepProcessPayment = "process_payment"
	stepAttachPayment  = "attach_payment"
)

// Session — одна попытка оформления. Submit вызывается не более одного раза.
type Session struct {
	id             string
	identity       domain.Identity
	idempotencyKey string
	o              *Orchestrator

	mu            sync.Mutex
	logger        *log.Entry
	phase         Phase
	orderID       int64
	paymentID     int64
	amount        decimal.Decimal
	err           error
	createStarted bool
	startedAt     time.Time

	finishOnce sync.Once
	done       chan struct{}
	onFinish   []func()
}

// ID возвращает идентификатор сессии для логов и событий.
func (s *Session) ID() string {
	return s.id
}

// Identity возвращает владельца попытки.
func (s *Session) Identity() domain.Identity {
	return s.identity
}

// IdempotencyKey возвращает ключ, с которым создаётся заказ.
func (s *Session) IdempotencyKey() string {
	return s.idempotencyKey
}

// Phase возвращает текущую фазу.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// OrderID возвращает id созданного заказа или 0.
func (s *Session) OrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

// Err возвращает ошибку, которой закончилась попытка.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done закрывается, когда сессия достигла конечной фазы.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Submit проводит попытку: create order → pay → confirm. Корзина очищается
// только после подтверждения оплаты заказа.
func (s *Session) Submit(ctx context.Context, cart Cart, customer domain.CustomerInfo, choice domain.PaymentChoice) (Result, error) {
	result := Result{SessionID: s.id}

	s.mu.Lock()
	if s.phase != PhaseIdle {
		phase := s.phase
		s.mu.Unlock()
		if phase.Terminal() {
			return result, domain.ErrSessionClosed
		}
		return result, domain.ErrCheckoutInProgress
	}
	if err := s.apply(eventSubmit); err != nil {
		s.mu.Unlock()
		return result, err
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.o.metrics != nil {
		s.o.metrics.RecordStarted()
	}

	ctx, span := s.o.tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("checkout.session_id", s.id),
	))
	defer span.End()

	lines := cart.Lines()
	if len(lines) == 0 {
		return result, s.fail(ctx, span, eventCartEmpty, &domain.CheckoutError{Kind: domain.KindEmptyCart})
	}

	result.Breakdown = s.o.pricing.ForLines(lines)
	amount := pricing.Round(result.Breakdown.Total)
	req := domain.NewCheckoutRequest(lines, customer, choice)
	req.IdempotencyKey = s.idempotencyKey

	s.mu.Lock()
	s.amount = amount
	if s.phase == PhaseCanceled {
		s.mu.Unlock()
		return result, domain.ErrCheckoutCanceled
	}
	if err := ctx.Err(); err != nil {
		applyErr := s.apply(eventCanceled)
		s.err = domain.ErrCheckoutCanceled
		s.mu.Unlock()
		if applyErr != nil {
			return result, applyErr
		}
		s.finish(ctx, span, domain.CheckoutOutcomeCanceled, nil)
		return result, fmt.Errorf("%w: %w", domain.ErrCheckoutCanceled, err)
	}
	s.createStarted = true
	s.mu.Unlock()

	// С этого момента попытка доводится до конечной фазы независимо от вызывающего.
	ctx = context.WithoutCancel(ctx)

	var order domain.Order
	err := s.call(ctx, stepCreateOrder, func(callCtx context.Context) error {
		var callErr error
		order, callErr = s.o.orders.Create(callCtx, req)
		return callErr
	})
	if err != nil {
		return result, s.fail(ctx, span, eventOrderFailed, &domain.CheckoutError{
			Kind:    domain.KindOrderCreation,
			Message: domain.UpstreamMessage(err),
			Err:     err,
		})
	}
	if err := s.advance(eventOrderCreated, func() {
		s.orderID = order.ID
		s.logger = s.logger.WithField("order_id", order.ID)
	}); err != nil {
		return result, err
	}
	span.SetAttributes(attribute.Int64("checkout.order_id", order.ID))
	result.Order = order

	if err := s.advance(eventPaymentStarted, nil); err != nil {
		return result, err
	}
	var payment domain.Payment
	err = s.call(ctx, stepProcessPayment, func(callCtx context.Context) error {
		var callErr error
		payment, callErr = s.o.payments.Process(callCtx, domain.PaymentRequest{
			OrderID: order.ID,
			Amount:  amount,
			Method:  choice.Method,
			Details: choice.Details,
		})
		return callErr
	})
	if err != nil {
		return result, s.fail(ctx, span, eventPaymentFailed, &domain.CheckoutError{
			Kind:    domain.KindPayment,
			Message: domain.UpstreamMessage(err),
			Err:     err,
		})
	}
	if !payment.Succeeded() {
		return result, s.fail(ctx, span, eventPaymentFailed, &domain.CheckoutError{
			Kind:      domain.KindPayment,
			PaymentID: payment.ID,
			Message:   fmt.Sprintf("payment status %s", payment.Status),
			Err:       fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, payment.Status),
		})
	}
	if err := s.advance(eventPaymentCompleted, func() {
		s.paymentID = payment.ID
		s.logger = s.logger.WithField("payment_id", payment.ID)
	}); err != nil {
		return result, err
	}
	result.Payment = payment

	var confirmed domain.Order
	err = s.call(ctx, stepAttachPayment, func(callCtx context.Context) error {
		var callErr error
		confirmed, callErr = s.o.orders.AttachPayment(callCtx, order.ID, payment.ID)
		return callErr
	})
	if err != nil {
		return result, s.fail(ctx, span, eventConfirmFailed, &domain.CheckoutError{
			Kind:    domain.KindConfirmation,
			Message: domain.UpstreamMessage(err),
			Err:     err,
		})
	}
	if err := s.advance(eventConfirmed, nil); err != nil {
		return result, err
	}
	if confirmed.ID != 0 {
		result.Order = confirmed
	}

	cart.Clear()
	s.finish(ctx, span, domain.CheckoutOutcomeSucceeded, nil)
	return result, nil
}

// Cancel отменяет попытку, пока создание заказа не началось. Удалённых вызовов нет.
func (s *Session) Cancel() error {
	s.mu.Lock()
	switch {
	case s.phase.Terminal():
		s.mu.Unlock()
		return domain.ErrSessionClosed
	case s.phase == PhaseIdle || (s.phase == PhaseSubmitting && !s.createStarted):
		if err := s.apply(eventCanceled); err != nil {
			s.mu.Unlock()
			return err
		}
		s.err = domain.ErrCheckoutCanceled
		s.mu.Unlock()
		s.finish(context.Background(), nil, domain.CheckoutOutcomeCanceled, nil)
		return nil
	default:
		s.mu.Unlock()
		return ErrCancelTooLate
	}
}

// apply выполняет переход; вызывается под s.mu.
func (s *Session) apply(ev event) error {
	next, err := transition(s.phase, ev)
	if err != nil {
		s.logger.WithError(err).Error("checkout state machine rejected event")
		return err
	}
	s.logger.WithFields(log.Fields{"from": s.phase, "to": next}).Debug("checkout phase changed")
	s.phase = next
	return nil
}

func (s *Session) advance(ev event, update func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.apply(ev); err != nil {
		return err
	}
	if update != nil {
		update()
	}
	return nil
}

// call выполняет один удалённый шаг с таймаутом, span и метрикой.
func (s *Session) call(ctx context.Context, step string, fn func(context.Context) error) error {
	ctx, span := s.o.tracer.Start(ctx, "checkout."+step)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, s.o.callTimeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if s.o.metrics != nil {
		s.o.metrics.RecordStep(step, err == nil, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) fail(ctx context.Context, span trace.Span, ev event, cerr *domain.CheckoutError) error {
	s.mu.Lock()
	if s.phase == PhaseCanceled {
		s.mu.Unlock()
		return domain.ErrCheckoutCanceled
	}
	if err := s.apply(ev); err != nil {
		s.mu.Unlock()
		return err
	}
	cerr.OrderID = s.orderID
	if s.paymentID != 0 {
		cerr.PaymentID = s.paymentID
	}
	s.err = cerr
	s.mu.Unlock()

	s.finish(ctx, span, domain.CheckoutOutcomeFailed, cerr)
	return cerr
}

// finish фиксирует конечную фазу: метрики, лог, событие, освобождение слота.
func (s *Session) finish(ctx context.Context, span trace.Span, outcome domain.CheckoutOutcome, cerr *domain.CheckoutError) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		logger := s.logger
		startedAt := s.startedAt
		evt := domain.CheckoutEvent{
			SessionID:   s.id,
			IdentityKey: s.identity.Key(),
			Outcome:     outcome,
			OrderID:     s.orderID,
			PaymentID:   s.paymentID,
			Amount:      s.amount,
			OccurredAt:  s.o.clock().UTC(),
		}
		hooks := s.onFinish
		s.mu.Unlock()

		var elapsed time.Duration
		if !startedAt.IsZero() {
			elapsed = time.Since(startedAt)
		}

		switch outcome {
		case domain.CheckoutOutcomeSucceeded:
			if s.o.metrics != nil {
				s.o.metrics.RecordSucceeded(elapsed)
			}
			logger.Info("checkout succeeded")
		case domain.CheckoutOutcomeCanceled:
			if s.o.metrics != nil && !startedAt.IsZero() {
				s.o.metrics.RecordCanceled(elapsed)
			}
			logger.Info("checkout canceled before order creation")
		case domain.CheckoutOutcomeFailed:
			evt.Kind = cerr.Kind
			evt.Message = cerr.Message
			if s.o.metrics != nil {
				s.o.metrics.RecordFailed(string(cerr.Kind), elapsed)
			}
			entry := logger.WithError(cerr).WithField("kind", cerr.Kind)
			switch {
			case cerr.RequiresReconciliation():
				entry.Error("payment taken but order not confirmed, manual reconciliation required")
			case cerr.UnpaidOrderLeft():
				entry.Warn("order created but not paid")
			default:
				entry.Warn("checkout failed")
			}
			if span != nil {
				span.RecordError(cerr)
				span.SetStatus(codes.Error, string(cerr.Kind))
			}
		}
		if span != nil {
			span.SetAttributes(attribute.String("checkout.outcome", string(outcome)))
		}

		s.publish(ctx, logger, evt)

		close(s.done)
		for _, hook := range hooks {
			hook()
		}
	})
}

func (s *Session) publish(ctx context.Context, logger *log.Entry, evt domain.CheckoutEvent) {
	if s.o.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.o.publishTimeout)
	defer cancel()
	if err := s.o.publisher.Publish(pubCtx, evt); err != nil {
		logger.WithError(err).WithField("outcome", evt.Outcome).Warn("failed to publish checkout event")
	}
}

// addFinishHook регистрирует действие на завершение; если сессия уже
// завершена, действие выполняется сразу.
func (s *Session) addFinishHook(hook func()) {
	s.mu.Lock()
	if !s.phase.Terminal() {
		s.onFinish = append(s.onFinish, hook)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	hook()
}
