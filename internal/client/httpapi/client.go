// Package httpapi — общий JSON-клиент удалённых сервисов магазина.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultTimeout  = 15 * time.Second
	maxErrorBodyLen = 64 << 10
)

// Options задаёт параметры Client.
type Options struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Option настраивает Client.
type Option func(*Options)

// WithTimeout ограничивает один HTTP-запрос целиком.
func WithTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.Timeout = timeout
	}
}

// WithTransport подменяет базовый транспорт (тесты, кастомные пулы).
func WithTransport(rt http.RoundTripper) Option {
	return func(opts *Options) {
		opts.Transport = rt
	}
}

// Client выполняет JSON-запросы к одному сервису.
type Client struct {
	service string
	baseURL *url.URL
	http    *http.Client
}

// New создаёт клиент сервиса service с базовым адресом baseURL.
func New(service, baseURL string, options ...Option) (*Client, error) {
	opts := Options{Timeout: defaultTimeout}
	for _, option := range options {
		option(&opts)
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse %s base url: %w", service, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s base url must be absolute: %q", service, baseURL)
	}

	return &Client{
		service: service,
		baseURL: base,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: otelhttp.NewTransport(
				&BearerTransport{Base: opts.Transport},
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return service + " " + r.Method
				}),
			),
		},
	}, nil
}

// Service возвращает имя сервиса для логов и ошибок.
func (c *Client) Service() string {
	return c.service
}

// Request описывает один вызов.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Do выполняет запрос и декодирует JSON-ответ в out (если out != nil).
// Ответ со статусом >= 400 возвращается как *domain.RemoteError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL.String()+req.Path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", c.service, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.remoteError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: %s %s: empty response body", c.service, req.Method, req.Path)
		}
		return fmt.Errorf("%s: decode response: %w", c.service, err)
	}
	return nil
}

func (c *Client) remoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	message := ""
	if err := json.Unmarshal(raw, &payload); err == nil {
		message = payload.Message
		if message == "" {
			message = payload.Error
		}
	} else {
		message = strings.TrimSpace(string(raw))
	}

	return &domain.RemoteError{
		Service:    c.service,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
