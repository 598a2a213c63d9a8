package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultAnonymousTTL — сколько живёт корзина анонимного посетителя.
const DefaultAnonymousTTL = 7 * 24 * time.Hour

const anonymousMarker = ":" + domain.AnonymousKey

// CartStorage хранит снимки корзин в Redis. Корзины пользователей живут без
// срока, анонимные истекают через anonymousTTL.
type CartStorage struct {
	client       *goredis.Client
	anonymousTTL time.Duration
}

// NewCartStorage создаёт хранилище поверх готового клиента.
func NewCartStorage(client *goredis.Client, anonymousTTL time.Duration) *CartStorage {
	if anonymousTTL <= 0 {
		anonymousTTL = DefaultAnonymousTTL
	}
	return &CartStorage{client: client, anonymousTTL: anonymousTTL}
}

// Open подключается к Redis по URL (redis://…) или по host:port и проверяет соединение.
func Open(ctx context.Context, addr string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	opts, err := goredis.ParseURL(addr)
	if err != nil {
		opts = &goredis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		}
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *CartStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return data, nil
}

func (s *CartStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, s.ttlFor(key)).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (s *CartStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete cart: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (readiness).
func (s *CartStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *CartStorage) ttlFor(key string) time.Duration {
	if strings.HasSuffix(key, anonymousMarker) || strings.Contains(key, anonymousMarker+":") {
		return s.anonymousTTL
	}
	return 0
}
