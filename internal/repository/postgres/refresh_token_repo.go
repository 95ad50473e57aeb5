package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/pkg/database"
	"gorm.io/gorm"
)

// RefreshTokenRepo реализует интерфейс RefreshTokenRepository с использованием PostgreSQL и GORM
type RefreshTokenRepo struct {
	db *gorm.DB
}

// NewRefreshTokenRepo создает новый экземпляр RefreshTokenRepo
func NewRefreshTokenRepo(gormDB *gorm.DB) (*RefreshTokenRepo, error) {
	if gormDB == nil {
		return nil, fmt.Errorf("GORM DB instance is required for RefreshTokenRepo")
	}
	return &RefreshTokenRepo{db: gormDB}, nil
}

// Create сохраняет новый refresh токен
func (r *RefreshTokenRepo) Create(ctx context.Context, token *entity.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("ошибка создания refresh токена: %w", err)
	}
	return nil
}

// GetByJTI находит refresh токен по jti
func (r *RefreshTokenRepo) GetByJTI(ctx context.Context, jti string) (*entity.RefreshToken, error) {
	var token entity.RefreshToken
	err := r.db.WithContext(ctx).Where("jti = ?", jti).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения refresh токена: %w", err)
	}
	return &token, nil
}

// Blacklist помечает токен как отозванный одним условным UPDATE
func (r *RefreshTokenRepo) Blacklist(ctx context.Context, jti string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&entity.RefreshToken{}).
		Where("jti = ? AND blacklisted_at IS NULL", jti).
		Updates(map[string]interface{}{"blacklisted_at": at, "updated_at": at})
	if result.Error != nil {
		return fmt.Errorf("ошибка отзыва refresh токена: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// DeleteExpired удаляет истекшие токены
func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&entity.RefreshToken{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("[RefreshTokenRepo] Удалено %d истекших refresh токенов", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// BlacklistedTokenRepo реализует repository.BlacklistedTokenRepository
type BlacklistedTokenRepo struct {
	db *gorm.DB
}

// NewBlacklistedTokenRepo создает репозиторий отозванных access-токенов
func NewBlacklistedTokenRepo(db *gorm.DB) *BlacklistedTokenRepo {
	return &BlacklistedTokenRepo{db: db}
}

// Add добавляет токен в черный список
func (r *BlacklistedTokenRepo) Add(ctx context.Context, token *entity.BlacklistedAccessToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: access token already blacklisted", apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

// Exists проверяет наличие токена в черном списке
func (r *BlacklistedTokenRepo) Exists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BlacklistedAccessToken{}).
		Where("token = ?", token).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
