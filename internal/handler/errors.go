package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/pkg/auth/manager"
)

// errorRule сопоставляет sentinel с HTTP-ответом
type errorRule struct {
	target    error
	status    int
	errorType string
	// message используется, если ошибка не несет уточнения после "sentinel: "
	message string
}

var errorRules = []errorRule{
	{apperrors.ErrVerificationNotFound, http.StatusBadRequest, "verification_not_found", "Verification code not found."},
	{apperrors.ErrVerificationExpired, http.StatusBadRequest, "verification_expired", "The verification code has expired."},
	{apperrors.ErrVerificationIncorrect, http.StatusBadRequest, "verification_incorrect", "The verification code is incorrect."},
	{apperrors.ErrTimeLimitExceeded, http.StatusBadRequest, "time_limit", "Time limit ended"},
	{apperrors.ErrAlreadyCompleted, http.StatusBadRequest, "already_completed", "Quiz already completed"},
	{apperrors.ErrInvalidQuestion, http.StatusBadRequest, "invalid_question", "Invalid question for this session"},
	{apperrors.ErrDuplicateAnswer, http.StatusBadRequest, "duplicate_answer", "You have already answered this question"},
	{apperrors.ErrTokenInvalid, http.StatusBadRequest, "token_error", "Token is invalid or expired"},
	{apperrors.ErrValidation, http.StatusBadRequest, "validation_error", "Invalid request data"},
	{apperrors.ErrAuthenticationFailed, http.StatusUnauthorized, "authentication_failed", "Authentication failed"},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication credentials were not provided"},
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "Conflict"},
}

// respondError переводит ошибку сервиса в JSON-ответ {"error", "error_type"}
func respondError(c *gin.Context, component string, err error) {
	var locked *apperrors.LockedError
	if errors.As(err, &locked) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      fmt.Sprintf("You have exceeded the maximum attempts. Try again after %d minutes.", locked.RemainingMinutes),
			"error_type": "verification_locked",
		})
		return
	}

	var tokenErr *manager.TokenError
	if errors.As(err, &tokenErr) {
		switch tokenErr.Type {
		case manager.InvalidRefreshToken, manager.InvalidAccessToken, manager.TokenRevoked:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is invalid or expired", "error_type": "token_error"})
			return
		}
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			c.JSON(rule.status, gin.H{"error": errorMessage(err, rule.target, rule.message), "error_type": rule.errorType})
			return
		}
	}

	log.Printf("[%s] Внутренняя ошибка: %v", component, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
}

// errorMessage возвращает уточнение после "sentinel: " или сообщение по умолчанию
func errorMessage(err, sentinel error, fallback string) string {
	prefix := sentinel.Error() + ": "
	msg := err.Error()
	if idx := strings.Index(msg, prefix); idx >= 0 {
		if detail := msg[idx+len(prefix):]; detail != "" {
			return detail
		}
	}
	return fallback
}

// respondBindError отвечает 400 на неразобранное тело запроса
func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
}
