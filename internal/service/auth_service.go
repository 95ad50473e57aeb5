package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/pkg/auth/manager"
)

// Сообщения об ошибках входа, которые видит клиент
const (
	msgInvalidCredentials = "Invalid email or password."
	msgEmailNotVerified   = "Email is not verified."
	msgTokensInvalid      = "Access token or Refresh token is invalid or expired"
	msgTokensBlacklisted  = "Tokens are already blacklisted"
)

// CodeSender отправляет код подтверждения на email
type CodeSender interface {
	SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error
}

// AuthService предоставляет методы регистрации, подтверждения и входа
type AuthService struct {
	userRepo            repository.UserRepository
	verification        *VerificationService
	tokenManager        *manager.TokenManager
	codeSender          CodeSender
	verificationEnabled bool
}

// LoginResult содержит пару токенов и пользователя
type LoginResult struct {
	Tokens *manager.TokenPair
	User   *entity.User
}

// NewAuthService создает новый сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(
	userRepo repository.UserRepository,
	verification *VerificationService,
	tokenManager *manager.TokenManager,
	codeSender CodeSender,
	verificationEnabled bool,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if verification == nil {
		return nil, fmt.Errorf("VerificationService is required for AuthService")
	}
	if tokenManager == nil {
		return nil, fmt.Errorf("TokenManager is required for AuthService")
	}
	if codeSender == nil {
		return nil, fmt.Errorf("CodeSender is required for AuthService")
	}
	return &AuthService{
		userRepo:            userRepo,
		verification:        verification,
		tokenManager:        tokenManager,
		codeSender:          codeSender,
		verificationEnabled: verificationEnabled,
	}, nil
}

// Register создает неподтвержденного пользователя и отправляет код подтверждения
func (s *AuthService) Register(ctx context.Context, email, password, passwordConfirm string) (*entity.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password, passwordConfirm); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	user := &entity.User{
		Email:      email,
		Password:   password,
		IsVerified: !s.verificationEnabled,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.verificationEnabled {
		// регистрация не откатывается, код можно запросить повторно
		if err := s.sendCode(ctx, user); err != nil {
			log.Printf("[AuthService] Не удалось отправить код подтверждения пользователю ID=%d: %v", user.ID, err)
		}
	}

	log.Printf("[AuthService] Зарегистрирован пользователь ID=%d (%s)", user.ID, user.Email)
	return user, nil
}

// VerifyRegistration подтверждает email по коду
func (s *AuthService) VerifyRegistration(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.verification.Check(ctx, email, code); err != nil {
		return err
	}

	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	log.Printf("[AuthService] Email пользователя ID=%d подтвержден", user.ID)
	return nil
}

// ResendCode выдает новый код, если пользователь еще не подтвержден и не заблокирован
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.IsVerified {
		return fmt.Errorf("%w: email is already verified", apperrors.ErrConflict)
	}
	return s.sendCode(ctx, user)
}

func (s *AuthService) sendCode(ctx context.Context, user *entity.User) error {
	code, err := s.verification.Issue(ctx, user.Email)
	if err != nil {
		return err
	}
	idempotencyKey := fmt.Sprintf("email-verify:%d:%s", user.ID, code)
	if err := s.codeSender.SendVerificationCode(ctx, user.Email, code, idempotencyKey); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

// Login проверяет учетные данные и выдает пару токенов
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, msgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(password) {
		log.Printf("[AuthService] Неверный пароль для пользователя ID=%d", user.ID)
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, msgInvalidCredentials)
	}
	if !user.CanLogin() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAuthenticationFailed, msgEmailNotVerified)
	}

	tokens, err := s.tokenManager.IssueTokenPair(ctx, user)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации токенов для пользователя ID=%d: %v", user.ID, err)
		return nil, err
	}

	log.Printf("[AuthService] Пользователь ID=%d (%s) успешно вошел в систему", user.ID, user.Email)
	return &LoginResult{Tokens: tokens, User: user}, nil
}

// Logout заносит оба токена в черный список. Повторный вызов завершается ошибкой.
func (s *AuthService) Logout(ctx context.Context, refreshToken, accessToken string) error {
	refreshClaims, err := s.tokenManager.ParseRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, msgTokensInvalid)
	}
	accessClaims, err := s.tokenManager.ParseAccessToken(accessToken)
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, msgTokensInvalid)
	}

	refreshBlacklisted, err := s.tokenManager.IsRefreshTokenBlacklisted(ctx, refreshClaims)
	if err != nil {
		return err
	}
	accessBlacklisted, err := s.tokenManager.IsAccessTokenBlacklisted(ctx, accessToken)
	if err != nil {
		return err
	}
	if refreshBlacklisted || accessBlacklisted {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, msgTokensBlacklisted)
	}

	if err := s.tokenManager.BlacklistRefreshToken(ctx, refreshClaims); err != nil {
		return mapBlacklistError(err)
	}
	if err := s.tokenManager.BlacklistAccessToken(ctx, accessToken, accessClaims); err != nil {
		return mapBlacklistError(err)
	}

	log.Printf("[AuthService] Пользователь ID=%d вышел из системы", accessClaims.UserID)
	return nil
}

// гонка двух logout: второй увидит уже отозванный токен
func mapBlacklistError(err error) error {
	var tokenErr *manager.TokenError
	if errors.As(err, &tokenErr) && tokenErr.Type == manager.TokenRevoked {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, msgTokensBlacklisted)
	}
	return err
}

// Refresh отзывает предъявленный refresh-токен и выдает новую пару
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*manager.TokenPair, error) {
	claims, err := s.tokenManager.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	blacklisted, err := s.tokenManager.IsRefreshTokenBlacklisted(ctx, claims)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, manager.NewTokenError(manager.TokenRevoked, "refresh token is blacklisted", nil)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, manager.NewTokenError(manager.InvalidRefreshToken, "user no longer exists", err)
		}
		return nil, err
	}
	return s.tokenManager.RotateRefreshToken(ctx, refreshToken, user)
}

// GetUserByID возвращает пользователя по ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
