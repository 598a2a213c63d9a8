package checkout

import (
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Sessions допускает не больше одной незавершённой попытки на identity.
type Sessions struct {
	orchestrator *Orchestrator

	mu     sync.Mutex
	active map[string]*Session
}

// NewSessions создаёт пул сессий поверх оркестратора.
func NewSessions(orchestrator *Orchestrator) *Sessions {
	return &Sessions{
		orchestrator: orchestrator,
		active:       make(map[string]*Session),
	}
}

// Begin открывает новую сессию или возвращает ErrCheckoutInProgress,
// если у identity уже есть незавершённая.
func (p *Sessions) Begin(identity domain.Identity) (*Session, error) {
	key := identity.Key()

	p.mu.Lock()
	if _, busy := p.active[key]; busy {
		p.mu.Unlock()
		return nil, domain.ErrCheckoutInProgress
	}
	session := p.orchestrator.NewSession(identity)
	p.active[key] = session
	p.mu.Unlock()

	session.addFinishHook(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.active[key] == session {
			delete(p.active, key)
		}
	})
	return session, nil
}

// Active возвращает незавершённую сессию identity.
func (p *Sessions) Active(identity domain.Identity) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.active[identity.Key()]
	return session, ok
}

// Len — число незавершённых сессий.
func (p *Sessions) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}
