package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartStorageInMemory struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewCartStorage создаёт in-memory реализацию CartStorage.
func NewCartStorage() domain.CartStorage {
	return &cartStorageInMemory{
		items: make(map[string][]byte),
	}
}

func (s *cartStorageInMemory) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.items[key]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	return cloneBytes(data), nil
}

func (s *cartStorageInMemory) Save(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = cloneBytes(data)
	return nil
}

func (s *cartStorageInMemory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

func cloneBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
