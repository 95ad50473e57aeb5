package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id uint) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// MarkVerified выставляет is_verified без пересохранения пароля
	MarkVerified(ctx context.Context, userID uint) error
}
