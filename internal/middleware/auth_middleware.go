package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/pkg/auth/manager"
)

// Ключи контекста Gin, которые выставляет RequireAuth
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	tokenManager *manager.TokenManager
}

// NewAuthMiddleware создает middleware поверх TokenManager
func NewAuthMiddleware(tokenManager *manager.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tokenManager}
}

// RequireAuth проверяет Bearer access-токен и его отсутствие в черном списке
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided", "error_type": "token_missing"})
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		claims, err := m.tokenManager.ValidateAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			var tokenErr *manager.TokenError
			if errors.As(err, &tokenErr) {
				switch tokenErr.Type {
				case manager.TokenRevoked:
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is blacklisted", "error_type": "token_revoked"})
					return
				case manager.InvalidAccessToken:
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
					return
				}
			}
			log.Printf("[AuthMiddleware] Ошибка проверки токена: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate token", "error_type": "internal_server_error"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// UserID возвращает ID пользователя, выставленный RequireAuth
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
