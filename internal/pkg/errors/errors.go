package errors

import (
	"errors"
	"fmt"
)

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется, когда запрос не аутентифицирован.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation используется для ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния (занятый email, занятая сессия).
	ErrConflict = errors.New("resource state conflict")

	// ErrAuthenticationFailed: неверные учетные данные или неподтвержденный аккаунт.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTokenInvalid: токен не прошел проверку или уже в черном списке.
	ErrTokenInvalid = errors.New("token is invalid")
)

// Ошибки подтверждения email
var (
	ErrVerificationNotFound  = errors.New("verification code not found")
	ErrVerificationLocked    = errors.New("verification temporarily locked")
	ErrVerificationExpired   = errors.New("verification code expired")
	ErrVerificationIncorrect = errors.New("incorrect verification code")
)

// Ошибки сессии викторины
var (
	ErrAlreadyCompleted  = errors.New("quiz already completed")
	ErrInvalidQuestion   = errors.New("invalid question for this session")
	ErrDuplicateAnswer   = errors.New("you have already answered this question")
	ErrTimeLimitExceeded = errors.New("time limit ended")
)

// LockedError несет оставшееся время блокировки
type LockedError struct {
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: try again after %d minutes", ErrVerificationLocked, e.RemainingMinutes)
}

// Unwrap позволяет errors.Is(err, ErrVerificationLocked)
func (e *LockedError) Unwrap() error {
	return ErrVerificationLocked
}
