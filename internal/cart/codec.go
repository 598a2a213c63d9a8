package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SchemaVersion — версия формата сохранённой корзины.
const SchemaVersion = 1

const keyPrefix = "cart:v1:"

var (
	// ErrUnsupportedVersion — снимок записан в неизвестной версии формата.
	ErrUnsupportedVersion = errors.New("cart snapshot version is not supported")
	// ErrCorruptSnapshot — снимок не читается или нарушает инварианты корзины.
	ErrCorruptSnapshot = errors.New("cart snapshot is corrupt")
)

// StorageKey возвращает ключ хранилища для корзины identity.
func StorageKey(identity domain.Identity) string {
	return keyPrefix + identity.Key()
}

type envelope struct {
	Version  int               `json:"version"`
	Identity string            `json:"identity"`
	Lines    []domain.CartLine `json:"lines"`
	SavedAt  time.Time         `json:"savedAt"`
}

// Encode сериализует позиции корзины в версионированный конверт.
func Encode(identityKey string, lines []domain.CartLine, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(envelope{
		Version:  SchemaVersion,
		Identity: identityKey,
		Lines:    domain.CloneLines(lines),
		SavedAt:  savedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}
	return data, nil
}

// Decode читает конверт и проверяет, что он принадлежит identityKey.
func Decode(identityKey string, data []byte) ([]domain.CartLine, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if env.Identity != identityKey {
		return nil, fmt.Errorf("%w: snapshot belongs to %q", ErrCorruptSnapshot, env.Identity)
	}
	if err := domain.ValidateLines(env.Lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return domain.CloneLines(env.Lines), nil
}
