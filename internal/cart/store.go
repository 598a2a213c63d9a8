package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultLoadTimeout  = 3 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Options задаёт параметры Store.
type Options struct {
	Logger       *log.Entry
	Metrics      *metrics.CartMetrics
	Clock        func() time.Time
	LoadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Option настраивает Store.
type Option func(*Options)

// WithLogger задаёт logger корзины.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики сохранения.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени для savedAt.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// WithLoadTimeout ограничивает чтение корзины из хранилища.
func WithLoadTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.LoadTimeout = timeout
	}
}

// WithWriteTimeout ограничивает одну фоновую запись.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.WriteTimeout = timeout
	}
}

// Store — корзина одной сессии. Позиции принадлежат текущей identity и
// сохраняются под её ключом.
type Store struct {
	mu       sync.RWMutex
	identity domain.Identity
	lines    []domain.CartLine

	storage     domain.CartStorage
	persister   *persister
	logger      *log.Entry
	metrics     *metrics.CartMetrics
	clock       func() time.Time
	loadTimeout time.Duration
}

// NewStore создаёт корзину для identity и загружает её сохранённое состояние.
func NewStore(ctx context.Context, identity domain.Identity, storage domain.CartStorage, options ...Option) *Store {
	opts := Options{
		LoadTimeout:  defaultLoadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "cart-store")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	s := &Store{
		identity:    identity,
		storage:     storage,
		persister:   newPersister(storage, logger, opts.Metrics, opts.WriteTimeout),
		logger:      logger,
		metrics:     opts.Metrics,
		clock:       opts.Clock,
		loadTimeout: opts.LoadTimeout,
	}
	s.lines = s.load(ctx, identity)
	return s
}

// Identity возвращает владельца корзины.
func (s *Store) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// AddItem увеличивает количество товара или добавляет новую позицию.
// qty <= 0 считается единицей. Товар с нулевым id или неположительной ценой
// в корзину не попадает.
func (s *Store) AddItem(product domain.Product, qty int) {
	if qty <= 0 {
		qty = 1
	}
	line := product.Line(qty)
	if err := line.Validate(); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Warn("product cannot be added to cart")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(product.ID); i >= 0 {
		s.lines[i].Quantity += qty
	} else {
		s.lines = append(s.lines, line)
	}
	s.persistLocked()
}

// SetQuantity задаёт количество; qty <= 0 удаляет позицию. Отсутствующий товар игнорируется.
func (s *Store) SetQuantity(productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	if qty <= 0 {
		s.removeLocked(i)
	} else {
		s.lines[i].Quantity = qty
	}
	s.persistLocked()
}

// RemoveItem удаляет позицию, если она есть.
func (s *Store) RemoveItem(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.removeLocked(i)
	s.persistLocked()
}

// Clear очищает корзину.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = []domain.CartLine{}
	s.persistLocked()
}

// Lines возвращает копию позиций в порядке добавления.
func (s *Store) Lines() []domain.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneLines(s.lines)
}

// TotalItems — сколько единиц товара в корзине.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.LinesCount(s.lines)
}

// TotalAmount — Σ unitPrice × quantity.
func (s *Store) TotalAmount() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.LinesTotal(s.lines)
}

// IsEmpty сообщает, что в корзине нет позиций.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines) == 0
}

// SwitchIdentity переключает корзину на другую identity и загружает её позиции.
// Позиции прежней identity остаются под её ключом и не переносятся.
func (s *Store) SwitchIdentity(ctx context.Context, identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity.Key() == identity.Key() {
		s.identity = identity
		return
	}
	s.identity = identity
	s.lines = s.load(ctx, identity)
}

// Flush ждёт завершения фоновых записей.
func (s *Store) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}

// Close дописывает очередь и останавливает фоновую запись.
func (s *Store) Close() {
	s.persister.close()
}

func (s *Store) indexOf(productID int64) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(i int) {
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
}

func (s *Store) persistLocked() {
	key := s.identity.Key()
	data, err := Encode(key, s.lines, s.clock())
	if err != nil {
		s.logger.WithError(err).Error("failed to encode cart snapshot")
		return
	}
	s.persister.enqueue(StorageKey(s.identity), data)
}

// load никогда не возвращает ошибку: нечитаемая корзина считается пустой.
func (s *Store) load(ctx context.Context, identity domain.Identity) []domain.CartLine {
	storageKey := StorageKey(identity)
	logger := s.logger.WithField("identity", identity.Key())

	data, ok := s.persister.latest(storageKey)
	if !ok {
		loadCtx, cancel := context.WithTimeout(ctx, s.loadTimeout)
		defer cancel()

		var err error
		data, err = s.storage.Load(loadCtx, storageKey)
		if errors.Is(err, domain.ErrCartNotFound) {
			return []domain.CartLine{}
		}
		if err != nil {
			logger.WithError(err).Warn("failed to load cart, starting empty")
			return []domain.CartLine{}
		}
	}

	lines, err := Decode(identity.Key(), data)
	if err != nil {
		s.metrics.RecordDiscardedLoad()
		logger.WithError(err).Warn("stored cart discarded, starting empty")
		return []domain.CartLine{}
	}
	return lines
}
