package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/pkg/auth"
)

// TokenErrorType определяет тип ошибки токена
type TokenErrorType string

const (
	TokenGenerationFailed TokenErrorType = "TOKEN_GENERATION_FAILED"
	InvalidRefreshToken   TokenErrorType = "INVALID_REFRESH_TOKEN"
	InvalidAccessToken    TokenErrorType = "INVALID_ACCESS_TOKEN"
	TokenRevoked          TokenErrorType = "TOKEN_REVOKED"
	DatabaseError         TokenErrorType = "DATABASE_ERROR"
)

// TokenError представляет ошибку при работе с токенами
type TokenError struct {
	Type    TokenErrorType
	Message string
	Err     error
}

// Error возвращает строковое представление ошибки
func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap: ошибки проверки токена сводятся к apperrors.ErrTokenInvalid
func (e *TokenError) Unwrap() error {
	switch e.Type {
	case InvalidRefreshToken, InvalidAccessToken, TokenRevoked:
		return apperrors.ErrTokenInvalid
	}
	return e.Err
}

// NewTokenError создает новую ошибку токена
func NewTokenError(tokenType TokenErrorType, message string, err error) *TokenError {
	return &TokenError{Type: tokenType, Message: message, Err: err}
}

// TokenPair - пара токенов, выдаваемая при входе
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager управляет выдачей, проверкой и отзывом токенов
type TokenManager struct {
	jwtService       *auth.JWTService
	refreshTokenRepo repository.RefreshTokenRepository
	blacklistRepo    repository.BlacklistedTokenRepository
	now              func() time.Time
}

// NewTokenManager создает новый менеджер токенов
func NewTokenManager(
	jwtService *auth.JWTService,
	refreshTokenRepo repository.RefreshTokenRepository,
	blacklistRepo repository.BlacklistedTokenRepository,
) (*TokenManager, error) {
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for TokenManager")
	}
	if refreshTokenRepo == nil {
		return nil, fmt.Errorf("RefreshTokenRepository is required for TokenManager")
	}
	if blacklistRepo == nil {
		return nil, fmt.Errorf("BlacklistedTokenRepository is required for TokenManager")
	}
	return &TokenManager{
		jwtService:       jwtService,
		refreshTokenRepo: refreshTokenRepo,
		blacklistRepo:    blacklistRepo,
		now:              time.Now,
	}, nil
}

// HashToken возвращает SHA-256 хеш токена в hex
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueTokenPair выдает access и refresh токены и сохраняет refresh в БД
func (m *TokenManager) IssueTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	access, accessClaims, err := m.jwtService.GenerateToken(user, auth.AccessToken)
	if err != nil {
		return nil, NewTokenError(TokenGenerationFailed, "failed to generate access token", err)
	}
	refresh, refreshClaims, err := m.jwtService.GenerateToken(user, auth.RefreshToken)
	if err != nil {
		return nil, NewTokenError(TokenGenerationFailed, "failed to generate refresh token", err)
	}

	record := entity.NewRefreshToken(user.ID, refreshClaims.ID, HashToken(refresh), refreshClaims.ExpiresAt.Time)
	if err := m.refreshTokenRepo.Create(ctx, record); err != nil {
		return nil, NewTokenError(DatabaseError, "failed to store refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// ParseAccessToken проверяет структуру и подпись access-токена, не обращаясь к черному списку
func (m *TokenManager) ParseAccessToken(token string) (*auth.JWTCustomClaims, error) {
	claims, err := m.jwtService.ParseToken(token, auth.AccessToken)
	if err != nil {
		return nil, NewTokenError(InvalidAccessToken, "access token is invalid or expired", err)
	}
	return claims, nil
}

// ParseRefreshToken проверяет структуру и подпись refresh-токена
func (m *TokenManager) ParseRefreshToken(token string) (*auth.JWTCustomClaims, error) {
	claims, err := m.jwtService.ParseToken(token, auth.RefreshToken)
	if err != nil {
		return nil, NewTokenError(InvalidRefreshToken, "refresh token is invalid or expired", err)
	}
	return claims, nil
}

// ValidateAccessToken проверяет access-токен и его отсутствие в черном списке
func (m *TokenManager) ValidateAccessToken(ctx context.Context, token string) (*auth.JWTCustomClaims, error) {
	claims, err := m.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	blacklisted, err := m.IsAccessTokenBlacklisted(ctx, token)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, NewTokenError(TokenRevoked, "access token is blacklisted", nil)
	}
	return claims, nil
}

// IsAccessTokenBlacklisted проверяет черный список access-токенов
func (m *TokenManager) IsAccessTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	exists, err := m.blacklistRepo.Exists(ctx, token)
	if err != nil {
		return false, NewTokenError(DatabaseError, "failed to check access token blacklist", err)
	}
	return exists, nil
}

// IsRefreshTokenBlacklisted: неизвестный сервису refresh-токен тоже считается отозванным
func (m *TokenManager) IsRefreshTokenBlacklisted(ctx context.Context, claims *auth.JWTCustomClaims) (bool, error) {
	record, err := m.refreshTokenRepo.GetByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return true, nil
		}
		return false, NewTokenError(DatabaseError, "failed to load refresh token", err)
	}
	return record.IsBlacklisted(), nil
}

// BlacklistRefreshToken отзывает refresh-токен
func (m *TokenManager) BlacklistRefreshToken(ctx context.Context, claims *auth.JWTCustomClaims) error {
	if err := m.refreshTokenRepo.Blacklist(ctx, claims.ID, m.now()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return NewTokenError(TokenRevoked, "refresh token is already blacklisted", err)
		}
		return NewTokenError(DatabaseError, "failed to blacklist refresh token", err)
	}
	return nil
}

// BlacklistAccessToken добавляет access-токен в черный список
func (m *TokenManager) BlacklistAccessToken(ctx context.Context, token string, claims *auth.JWTCustomClaims) error {
	record := &entity.BlacklistedAccessToken{
		Token:     token,
		UserID:    claims.UserID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := m.blacklistRepo.Add(ctx, record); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return NewTokenError(TokenRevoked, "access token is already blacklisted", err)
		}
		return NewTokenError(DatabaseError, "failed to blacklist access token", err)
	}
	return nil
}

// RotateRefreshToken отзывает refresh-токен и выдает новую пару
func (m *TokenManager) RotateRefreshToken(ctx context.Context, refreshToken string, user *entity.User) (*TokenPair, error) {
	claims, err := m.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.UserID != user.ID {
		return nil, NewTokenError(InvalidRefreshToken, "refresh token belongs to another user", nil)
	}
	if err := m.BlacklistRefreshToken(ctx, claims); err != nil {
		return nil, err
	}
	return m.IssueTokenPair(ctx, user)
}

// CleanupExpiredTokens удаляет истекшие refresh-токены
func (m *TokenManager) CleanupExpiredTokens(ctx context.Context) error {
	n, err := m.refreshTokenRepo.DeleteExpired(ctx, m.now())
	if err != nil {
		return fmt.Errorf("failed to cleanup refresh tokens: %w", err)
	}
	log.Printf("[TokenManager] Очистка завершена, удалено refresh токенов: %d", n)
	return nil
}
