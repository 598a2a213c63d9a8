package cart

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// persister пишет снимки корзин в фоне. Для каждого ключа хранится только
// последний снимок: промежуточные состояния не нужны.
type persister struct {
	storage      domain.CartStorage
	logger       *log.Entry
	metrics      *metrics.CartMetrics
	writeTimeout time.Duration

	mu       sync.Mutex
	pending  map[string][]byte
	inflight map[string][]byte
	waiters  []chan struct{}
	closed   bool

	wake    chan struct{}
	quit    chan struct{}
	stopped chan struct{}
}

func newPersister(storage domain.CartStorage, logger *log.Entry, m *metrics.CartMetrics, writeTimeout time.Duration) *persister {
	p := &persister{
		storage:      storage,
		logger:       logger,
		metrics:      m,
		writeTimeout: writeTimeout,
		pending:      make(map[string][]byte),
		inflight:     make(map[string][]byte),
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue ставит снимок в очередь и сразу возвращается.
func (p *persister) enqueue(key string, data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.WithField("key", key).Warn("cart persister is closed, snapshot dropped")
		return
	}
	p.pending[key] = data
	p.mu.Unlock()
	p.signal()
}

// latest возвращает ещё не записанный снимок ключа, если он есть.
func (p *persister) latest(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.pending[key]; ok {
		return data, true
	}
	data, ok := p.inflight[key]
	return data, ok
}

// flush ждёт, пока все поставленные снимки будут записаны.
func (p *persister) flush(ctx context.Context) error {
	done := make(chan struct{})
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.waiters = append(p.waiters, done)
	p.mu.Unlock()
	p.signal()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close дописывает очередь и останавливает горутину.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.stopped
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.quit)
	<-p.stopped
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.quit:
			p.drain()
			return
		}
	}
}

func (p *persister) drain() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			waiters := p.waiters
			p.waiters = nil
			p.mu.Unlock()
			for _, w := range waiters {
				close(w)
			}
			return
		}
		batch := p.pending
		p.pending = make(map[string][]byte)
		p.inflight = batch
		p.mu.Unlock()

		for key, data := range batch {
			p.write(key, data)
		}

		p.mu.Lock()
		p.inflight = make(map[string][]byte)
		p.mu.Unlock()
	}
}

func (p *persister) write(key string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()

	err := p.storage.Save(ctx, key, data)
	p.metrics.RecordWrite(err)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("failed to persist cart snapshot")
	}
}
