package dto

import "github.com/yourusername/quiz-api/internal/domain/entity"

// RegisterRequest - запрос на регистрацию
type RegisterRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// VerifyRegisterRequest: code принимается и строкой, и числом
type VerifyRegisterRequest struct {
	Email string      `json:"email" binding:"required"`
	Code  interface{} `json:"code" binding:"required"`
}

// ResendCodeRequest - повторная отправка кода
type ResendCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

// LoginRequest - запрос на вход
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LogoutRequest - оба токена для черного списка
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	AccessToken  string `json:"access_token" binding:"required"`
}

// RefreshRequest - обмен refresh-токена на новую пару
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// UserResponse - публичные данные пользователя
type UserResponse struct {
	ID         uint   `json:"id,omitempty"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

// TokenPairResponse - пара токенов
type TokenPairResponse struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

// LoginResponse - ответ на успешный вход
type LoginResponse struct {
	Refresh string       `json:"refresh"`
	Access  string       `json:"access"`
	User    UserResponse `json:"user"`
}

func NewUserResponse(u *entity.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, IsVerified: u.IsVerified}
}
