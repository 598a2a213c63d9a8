package checkout

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition — событие не допустимо в текущей фазе. Это ошибка программы,
// а не удалённого сервиса.
var ErrIllegalTransition = errors.New("illegal checkout transition")

// Phase — фаза попытки оформления.
type Phase string

const (
	PhaseIdle              Phase = "IDLE"
	PhaseSubmitting        Phase = "SUBMITTING"
	PhaseOrderCreated      Phase = "ORDER_CREATED"
	PhasePaymentProcessing Phase = "PAYMENT_PROCESSING"
	PhaseConfirming        Phase = "CONFIRMING"
	PhaseSucceeded         Phase = "SUCCEEDED"
	PhaseFailed            Phase = "FAILED"
	PhaseCanceled          Phase = "CANCELED"
)

// Terminal сообщает, что из фазы нет переходов.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseCanceled
}

// event — результат шага, который двигает машину состояний.
type event string

const (
	eventSubmit           event = "submit"
	eventCartEmpty        event = "cart_empty"
	eventCanceled         event = "canceled"
	eventOrderCreated     event = "order_created"
	eventOrderFailed      event = "order_failed"
	eventPaymentStarted   event = "payment_started"
	eventPaymentCompleted event = "payment_completed"
	eventPaymentFailed    event = "payment_failed"
	eventConfirmed        event = "confirmed"
	eventConfirmFailed    event = "confirm_failed"
)

var transitions = map[Phase]map[event]Phase{
	PhaseIdle: {
		eventSubmit:   PhaseSubmitting,
		eventCanceled: PhaseCanceled,
	},
	PhaseSubmitting: {
		eventCartEmpty:    PhaseFailed,
		eventCanceled:     PhaseCanceled,
		eventOrderCreated: PhaseOrderCreated,
		eventOrderFailed:  PhaseFailed,
	},
	PhaseOrderCreated: {
		eventPaymentStarted: PhasePaymentProcessing,
		eventPaymentFailed:  PhaseFailed,
	},
	PhasePaymentProcessing: {
		eventPaymentCompleted: PhaseConfirming,
		eventPaymentFailed:    PhaseFailed,
	},
	PhaseConfirming: {
		eventConfirmed:     PhaseSucceeded,
		eventConfirmFailed: PhaseFailed,
	},
}

// transition — чистая функция переходов. Конечные фазы событий не принимают.
func transition(from Phase, ev event) (Phase, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
}
