package service

import (
	"fmt"
	"unicode"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

const minPasswordLength = 8

var fieldValidator = validator.New()

// validateEmail проверяет формат адреса тем же валидатором, что и gin binding
func validateEmail(email string) error {
	if err := fieldValidator.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: enter a valid email address", apperrors.ErrValidation)
	}
	return nil
}

// ValidatePassword проверяет пароль при регистрации
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return fmt.Errorf("%w: passwords don't match", apperrors.ErrValidation)
	}
	if len([]rune(password)) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters long", apperrors.ErrValidation, minPasswordLength)
	}

	hasUpper := false
	allDigits := true
	for _, r := range password {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if !unicode.IsDigit(r) {
			allDigits = false
		}
	}
	if allDigits {
		return fmt.Errorf("%w: this password is entirely numeric", apperrors.ErrValidation)
	}
	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", apperrors.ErrValidation)
	}
	return nil
}
