package repository

import (
	"context"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// CacheRepository определяет методы для работы с кешем
type CacheRepository interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// GetJSON возвращает ErrNotFound, если ключа нет
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	// DeleteIfEquals удаляет ключ, только если его значение совпадает (освобождение блокировки)
	DeleteIfEquals(ctx context.Context, key string, value string) (bool, error)
}

// VerificationRepository хранит коды подтверждения email
type VerificationRepository interface {
	// Save заменяет предыдущий код для этого email
	Save(ctx context.Context, challenge *entity.VerificationChallenge) error
	// Get возвращает ErrNotFound, если кода нет
	Get(ctx context.Context, email string) (*entity.VerificationChallenge, error)
	Delete(ctx context.Context, email string) error
	// Update атомарно читает код и применяет fn. fn возвращает новое состояние
	// (nil - удалить код) или ошибку, при которой ничего не записывается.
	// Если кода нет, возвращает ErrNotFound.
	Update(ctx context.Context, email string, fn VerificationUpdateFunc) error
}

// VerificationUpdateFunc может вызываться повторно при конкурентной записи
type VerificationUpdateFunc func(challenge *entity.VerificationChallenge) (*entity.VerificationChallenge, error)
