package domain

import (
	"context"
	"strings"
)

// AnonymousKey — ключ корзины для неавторизованного посетителя.
const AnonymousKey = "anonymous"

// Identity описывает владельца сессии: аноним или пользователь с bearer-токеном.
// Токен непрозрачен: ядро проверяет только его наличие.
type Identity struct {
	// VisitorID различает анонимных посетителей одного BFF.
	VisitorID string
	UserID    string
	Email     string
	Username  string
	Role      string
	Token     string
}

// Anonymous возвращает анонимную identity.
func Anonymous() Identity {
	return Identity{}
}

// AnonymousVisitor возвращает анонимную identity конкретного посетителя.
func AnonymousVisitor(visitorID string) Identity {
	return Identity{VisitorID: strings.TrimSpace(visitorID)}
}

// IsAnonymous сообщает, что у identity нет ни пользователя, ни email.
func (i Identity) IsAnonymous() bool {
	return strings.TrimSpace(i.UserID) == "" && strings.TrimSpace(i.Email) == ""
}

// HasToken проверяет наличие bearer-токена.
func (i Identity) HasToken() bool {
	return strings.TrimSpace(i.Token) != ""
}

// Key возвращает стабильный ключ identity для хранения корзины.
// Предпочитаем UserID, затем email в нижнем регистре.
func (i Identity) Key() string {
	if id := strings.TrimSpace(i.UserID); id != "" {
		return "user:" + id
	}
	if email := strings.ToLower(strings.TrimSpace(i.Email)); email != "" {
		return "email:" + email
	}
	if visitor := strings.TrimSpace(i.VisitorID); visitor != "" {
		return AnonymousKey + ":" + visitor
	}
	return AnonymousKey
}

// DisplayName возвращает имя покупателя для формы оформления.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Username); name != "" {
		return name
	}
	return strings.TrimSpace(i.Email)
}

type identityKey struct{}

// WithIdentity кладёт identity в контекст исходящих вызовов.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom достаёт identity из контекста; без неё считаем посетителя анонимом.
func IdentityFrom(ctx context.Context) Identity {
	if identity, ok := ctx.Value(identityKey{}).(Identity); ok {
		return identity
	}
	return Anonymous()
}
