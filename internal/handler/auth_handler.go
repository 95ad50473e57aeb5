package handler

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/internal/handler/dto"
	"github.com/yourusername/quiz-api/internal/middleware"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/internal/service"
)

// AuthHandler обрабатывает запросы, связанные с аутентификацией
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register обрабатывает запрос на регистрацию
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	log.Printf("[AuthHandler] Пользователь ID=%d (%s) успешно зарегистрирован", user.ID, user.Email)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully. A verification code has been sent to your email.",
		"email":   user.Email,
	})
}

// VerifyRegister подтверждает email кодом из письма
func (h *AuthHandler) VerifyRegister(c *gin.Context) {
	var req dto.VerifyRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	err := h.authService.VerifyRegistration(c.Request.Context(), req.Email, codeString(req.Code))
	if err != nil {
		// неизвестный email отдается как ошибка запроса, а не 404
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found.", "error_type": "user_not_found"})
			return
		}
		respondError(c, "AuthHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully."})
}

// ResendCode выдает новый код подтверждения
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req dto.ResendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.authService.ResendCode(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found.", "error_type": "user_not_found"})
			return
		}
		respondError(c, "AuthHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "A new verification code has been sent to your email."})
}

// Login обрабатывает запрос на вход
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Refresh: result.Tokens.RefreshToken,
		Access:  result.Tokens.AccessToken,
		User:    dto.UserResponse{Email: result.User.Email, IsVerified: result.User.IsVerified},
	})
}

// RefreshToken меняет refresh-токен на новую пару
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.TokenPairResponse{Refresh: pair.RefreshToken, Access: pair.AccessToken})
}

// Logout заносит оба токена в черный список
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error", "ok": false})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken, req.AccessToken); err != nil {
		respondError(c, "AuthHandler", err)
		return
	}

	if userID, ok := middleware.UserID(c); ok {
		log.Printf("[AuthHandler] Пользователь ID=%d вышел из системы", userID)
	}
	c.JSON(http.StatusResetContent, gin.H{"message": "Logged out successfully", "ok": true})
}

// Me возвращает данные текущего пользователя
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, "AuthHandler", apperrors.ErrUnauthorized)
		return
	}

	user, err := h.authService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "AuthHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// codeString приводит код из JSON (строка или число) к строке
func codeString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == math.Trunc(v) && v >= 0 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
