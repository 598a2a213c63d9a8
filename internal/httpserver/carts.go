package httpserver

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultCartIdleTTL = 30 * time.Minute

// CartFactory создаёт корзину посетителя и загружает её для identity.
type CartFactory func(ctx context.Context, identity domain.Identity) *cart.Store

type identityCart struct {
	store    *cart.Store
	lastSeen time.Time
	// holds — сколько операций сейчас держат корзину; такие корзины не выметаются.
	holds int
}

// Carts держит по одной корзине на identity. Корзина привязана к своей identity
// на всё время жизни: вход и выход выбирают другую корзину, а не переключают эту.
type Carts struct {
	factory CartFactory
	idleTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	stores map[string]*identityCart
}

// NewCarts создаёт реестр корзин. idleTTL <= 0 означает 30 минут.
func NewCarts(factory CartFactory, idleTTL time.Duration) *Carts {
	if idleTTL <= 0 {
		idleTTL = defaultCartIdleTTL
	}
	return &Carts{
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		stores:  make(map[string]*identityCart),
	}
}

// For возвращает корзину identity.
func (c *Carts) For(ctx context.Context, identity domain.Identity) *cart.Store {
	return c.acquire(ctx, identity, false).store
}

// Hold возвращает корзину identity и не даёт Sweep закрыть её до вызова release.
func (c *Carts) Hold(ctx context.Context, identity domain.Identity) (*cart.Store, func()) {
	ic := c.acquire(ctx, identity, true)
	var once sync.Once
	return ic.store, func() {
		once.Do(func() {
			c.mu.Lock()
			ic.holds--
			ic.lastSeen = c.now()
			c.mu.Unlock()
		})
	}
}

func (c *Carts) acquire(ctx context.Context, identity domain.Identity, hold bool) *identityCart {
	key := identity.Key()

	c.mu.Lock()
	if ic, ok := c.stores[key]; ok {
		c.touchLocked(ic, hold)
		c.mu.Unlock()
		return ic
	}
	c.mu.Unlock()

	// Загрузка идёт без блокировки реестра.
	store := c.factory(ctx, identity)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ic, ok := c.stores[key]; ok {
		store.Close()
		c.touchLocked(ic, hold)
		return ic
	}
	ic := &identityCart{store: store}
	c.touchLocked(ic, hold)
	c.stores[key] = ic
	return ic
}

func (c *Carts) touchLocked(ic *identityCart, hold bool) {
	ic.lastSeen = c.now()
	if hold {
		ic.holds++
	}
}

// Sweep закрывает корзины, к которым не обращались дольше idleTTL.
// Снимки остаются в хранилище и подхватятся при следующем обращении.
func (c *Carts) Sweep() int {
	deadline := c.now().Add(-c.idleTTL)

	c.mu.Lock()
	var idle []*cart.Store
	for key, ic := range c.stores {
		if ic.holds == 0 && ic.lastSeen.Before(deadline) {
			idle = append(idle, ic.store)
			delete(c.stores, key)
		}
	}
	c.mu.Unlock()

	for _, store := range idle {
		store.Close()
	}
	return len(idle)
}

// Run периодически вызывает Sweep, пока ctx не отменён.
func (c *Carts) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Close дописывает все отложенные снимки и закрывает корзины.
func (c *Carts) Close(ctx context.Context) error {
	c.mu.Lock()
	stores := make([]*cart.Store, 0, len(c.stores))
	for _, ic := range c.stores {
		stores = append(stores, ic.store)
	}
	c.stores = make(map[string]*identityCart)
	c.mu.Unlock()

	var firstErr error
	for _, store := range stores {
		if err := store.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		store.Close()
	}
	return firstErr
}

// Len — число открытых корзин.
func (c *Carts) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stores)
}
