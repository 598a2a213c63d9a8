// Package identity — HTTP-клиент сервиса пользователей: выдаёт bearer-токен.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/client/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrNoToken — сервис ответил без токена.
var ErrNoToken = errors.New("identity: login response has no token")

// Client выполняет вход и возвращает Identity с токеном.
type Client struct {
	api *httpapi.Client
}

// New создаёт клиент сервиса пользователей.
func New(baseURL string, options ...httpapi.Option) (*Client, error) {
	api, err := httpapi.New("identity", baseURL, options...)
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Login — POST /auth/login.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	var out authResponse
	body := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.api.Do(ctx, httpapi.Request{Method: http.MethodPost, Path: "/auth/login", Body: body}, &out); err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(out.Token) == "" {
		return domain.Identity{}, ErrNoToken
	}

	identity := domain.Identity{
		Email:    out.Email,
		Username: out.Username,
		Role:     out.Role,
		Token:    out.Token,
	}
	if out.ID != 0 {
		identity.UserID = strconv.FormatInt(out.ID, 10)
	}
	return identity, nil
}
