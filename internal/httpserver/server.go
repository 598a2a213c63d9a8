// Package httpserver — BFF витрины: JSON поверх корзины, оформления и истории заказов.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/service/history"
)

const maxBodyBytes = 1 << 20

// Deps — всё, что нужно серверу.
type Deps struct {
	Catalog  domain.CatalogService
	Auth     Authenticator
	Carts    *Carts
	Checkout *checkout.Sessions
	History  *history.Query
	Pricing  *pricing.Engine
	Health   *health.Handler
	// Metrics отдаёт /metrics; nil отключает маршрут.
	Metrics http.Handler
	Logger  *log.Entry
}

// Server обслуживает HTTP API витрины.
type Server struct {
	catalog  domain.CatalogService
	auth     Authenticator
	tokens   *Tokens
	carts    *Carts
	checkout *checkout.Sessions
	history  *history.Query
	pricing  *pricing.Engine
	health   *health.Handler
	metrics  http.Handler
	logger   *log.Entry
}

// New проверяет зависимости и создаёт сервер.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("httpserver: catalog is required")
	case deps.Auth == nil:
		return nil, errors.New("httpserver: authenticator is required")
	case deps.Carts == nil:
		return nil, errors.New("httpserver: carts are required")
	case deps.Checkout == nil:
		return nil, errors.New("httpserver: checkout sessions are required")
	case deps.History == nil:
		return nil, errors.New("httpserver: history query is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	engine := deps.Pricing
	if engine == nil {
		engine = pricing.MustNewEngine(pricing.DefaultConfig())
	}
	healthHandler := deps.Health
	if healthHandler == nil {
		healthHandler = health.NewHandler("")
	}
	return &Server{
		catalog:  deps.Catalog,
		auth:     deps.Auth,
		tokens:   NewTokens(),
		carts:    deps.Carts,
		checkout: deps.Checkout,
		history:  deps.History,
		pricing:  engine,
		health:   healthHandler,
		metrics:  deps.Metrics,
		logger:   logger,
	}, nil
}

// Handler собирает маршруты.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/healthz", s.health.ServeHTTP)
	r.Get("/livez", health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/products", s.listProducts)
		r.Get("/products/{productId}", s.getProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Delete("/", s.clearCart)
			r.Post("/items", s.addItem)
			r.Put("/items/{productId}", s.setQuantity)
			r.Delete("/items/{productId}", s.removeItem)
		})

		r.Post("/auth/login", s.login)
		r.Post("/auth/logout", s.logout)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", s.submitCheckout)
			r.Get("/", s.checkoutStatus)
			r.Delete("/", s.cancelCheckout)
		})

		r.Get("/orders", s.listOrders)
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		entry := s.logger.WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body")
		return false
	}
	return true
}

// remoteStatus переводит ошибку удалённого сервиса в статус BFF.
func remoteStatus(err error) int {
	var remote *domain.RemoteError
	if errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}
