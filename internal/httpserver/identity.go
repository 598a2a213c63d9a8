package httpserver

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// HeaderVisitorID различает браузеры анонимных посетителей.
	HeaderVisitorID = "X-Visitor-Id"
	// HeaderCustomerEmail — email покупателя для запросов с внешним токеном.
	HeaderCustomerEmail = "X-Customer-Email"
)

// Authenticator выполняет вход в сервисе пользователей.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (domain.Identity, error)
}

// Tokens — выданные через BFF токены и их identity.
type Tokens struct {
	mu     sync.RWMutex
	tokens map[string]domain.Identity
}

// NewTokens создаёт пустой реестр токенов.
func NewTokens() *Tokens {
	return &Tokens{tokens: make(map[string]domain.Identity)}
}

// Put запоминает identity под её токеном.
func (t *Tokens) Put(identity domain.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens[identity.Token] = identity
}

// Get возвращает identity по токену.
func (t *Tokens) Get(token string) (domain.Identity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	identity, ok := t.tokens[token]
	return identity, ok
}

// Delete забывает токен.
func (t *Tokens) Delete(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tokens, token)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// resolveIdentity: известный токен даёт identity из входа, неизвестный
// пропускается как есть вместе с X-Customer-Email, без токена посетитель анонимен.
func (s *Server) resolveIdentity(r *http.Request) domain.Identity {
	visitor := strings.TrimSpace(r.Header.Get(HeaderVisitorID))
	email := strings.TrimSpace(r.Header.Get(HeaderCustomerEmail))

	if token := bearerToken(r); token != "" {
		if identity, ok := s.tokens.Get(token); ok {
			identity.VisitorID = visitor
			return identity
		}
		return domain.Identity{VisitorID: visitor, Email: email, Token: token}
	}
	if email != "" {
		return domain.Identity{VisitorID: visitor, Email: email}
	}
	return domain.AnonymousVisitor(visitor)
}

func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := s.resolveIdentity(r)
		next.ServeHTTP(w, r.WithContext(domain.WithIdentity(r.Context(), identity)))
	})
}
