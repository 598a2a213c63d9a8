package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	UserID   string `json:"userId,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	// DisplayName подставляется в форму оформления.
	DisplayName string `json:"displayName"`
}

// login выполняет вход и переключает корзину посетителя на пользователя.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "INVALID_CREDENTIALS", "email and password are required")
		return
	}

	identity, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var remote *domain.RemoteError
		if errors.As(err, &remote) && (remote.StatusCode == http.StatusUnauthorized || remote.StatusCode == http.StatusBadRequest) {
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", remote.Message)
			return
		}
		s.logger.WithError(err).Warn("login failed")
		respondError(w, http.StatusBadGateway, "IDENTITY_UNAVAILABLE", "could not sign in")
		return
	}

	visitor := domain.IdentityFrom(r.Context()).VisitorID
	identity.VisitorID = visitor
	s.tokens.Put(identity)
	s.carts.For(r.Context(), identity)

	respondJSON(w, http.StatusOK, loginResponse{
		Token:    identity.Token,
		Type:     "Bearer",
		UserID:   identity.UserID,
		Email:    identity.Email,
		Username: identity.Username,
		Role:     identity.Role,

		DisplayName: identity.DisplayName(),
	})
}

// logout забывает токен. Корзина пользователя остаётся в хранилище,
// следующие запросы посетителя без токена попадают в его анонимную корзину.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "bearer token is required")
		return
	}
	s.tokens.Delete(token)
	w.WriteHeader(http.StatusNoContent)
}
