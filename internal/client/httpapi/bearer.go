package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// BearerTransport добавляет Authorization: Bearer <token>, если identity из
// контекста запроса несёт токен. Токен не разбирается и не проверяется.
type BearerTransport struct {
	Base http.RoundTripper
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	identity := domain.IdentityFrom(req.Context())
	if !identity.HasToken() || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+identity.Token)
	return base.RoundTrip(clone)
}
