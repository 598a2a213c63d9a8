package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CartStorage хранит снимки корзин в таблице cart_snapshots.
type CartStorage struct {
	db *sql.DB
}

// NewCartStorage создаёт хранилище корзин поверх Store.
func NewCartStorage(store *Store) *CartStorage {
	return &CartStorage{db: store.DB()}
}

func (s *CartStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM cart_snapshots WHERE storage_key = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select cart snapshot: %w", err)
	}
	return payload, nil
}

func (s *CartStorage) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (storage_key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (storage_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, key, string(data))
	if err != nil {
		return fmt.Errorf("upsert cart snapshot: %w", err)
	}
	return nil
}

func (s *CartStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE storage_key = $1`, key); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}
