package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// RefreshTokenRepository интерфейс для работы с refresh-токенами
type RefreshTokenRepository interface {
	// Create сохраняет выданный refresh-токен
	Create(ctx context.Context, token *entity.RefreshToken) error

	// GetByJTI находит refresh-токен по идентификатору из claims
	GetByJTI(ctx context.Context, jti string) (*entity.RefreshToken, error)

	// Blacklist помечает токен как отозванный. ErrNotFound, если токен уже отозван или не существует.
	Blacklist(ctx context.Context, jti string, at time.Time) error

	// DeleteExpired удаляет токены, истекшие до указанного момента
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// BlacklistedTokenRepository хранит отозванные access-токены
type BlacklistedTokenRepository interface {
	// Add добавляет токен; повторное добавление возвращает ErrConflict
	Add(ctx context.Context, token *entity.BlacklistedAccessToken) error
	Exists(ctx context.Context, token string) (bool, error)
}
