// Package history — чтение истории заказов покупателя. Только чтение, без оркестрации.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultTimeout = 15 * time.Second

// ErrEmailRequired — запрос истории без email.
var ErrEmailRequired = errors.New("customer email is required")

// State — что показывать пользователю.
type State string

const (
	StateLoaded     State = "LOADED"
	StateEmpty      State = "EMPTY"
	StateLoadFailed State = "LOAD_FAILED"
)

// View — готовое к отображению состояние истории.
type View struct {
	State  State
	Orders []domain.Order
	Err    error
}

// Query читает заказы покупателя из сервиса заказов. Одновременные
// одинаковые запросы объединяются в один удалённый вызов.
type Query struct {
	orders  domain.OrderService
	logger  *log.Entry
	timeout time.Duration
	group   singleflight.Group
}

// NewQuery создаёт запрос истории. timeout <= 0 означает значение по умолчанию.
func NewQuery(orders domain.OrderService, logger *log.Entry, timeout time.Duration) *Query {
	if logger == nil {
		logger = log.WithField("component", "order-history")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Query{orders: orders, logger: logger, timeout: timeout}
}

// FetchOrdersFor возвращает заказы покупателя, новые первыми. Пустой список
// не ошибка. Ошибки оборачивают domain.ErrLoadFailed.
func (q *Query) FetchOrdersFor(ctx context.Context, email string) ([]domain.Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrLoadFailed, ErrEmailRequired)
	}

	ch := q.group.DoChan(email, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), q.timeout)
		defer cancel()
		return q.orders.ListByCustomer(callCtx, email)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrLoadFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			q.logger.WithError(res.Err).WithField("email", email).Warn("failed to load order history")
			return nil, fmt.Errorf("%w: %w", domain.ErrLoadFailed, res.Err)
		}
		return sortNewestFirst(res.Val.([]domain.Order)), nil
	}
}

// Load возвращает View; ошибка загрузки становится состоянием LoadFailed.
func (q *Query) Load(ctx context.Context, email string) View {
	orders, err := q.FetchOrdersFor(ctx, email)
	switch {
	case err != nil:
		return View{State: StateLoadFailed, Orders: []domain.Order{}, Err: err}
	case len(orders) == 0:
		return View{State: StateEmpty, Orders: []domain.Order{}}
	default:
		return View{State: StateLoaded, Orders: orders}
	}
}

// sortNewestFirst копирует срез: результат singleflight общий для всех ожидающих.
func sortNewestFirst(orders []domain.Order) []domain.Order {
	out := make([]domain.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
