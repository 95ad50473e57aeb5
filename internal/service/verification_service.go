package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

const (
	verificationCodeMin = 100000
	verificationCodeMax = 999999
)

// VerificationService выдает и проверяет одноразовые коды подтверждения email
type VerificationService struct {
	repo        repository.VerificationRepository
	ttl         time.Duration
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

func NewVerificationService(
	repo repository.VerificationRepository,
	ttl time.Duration,
	maxAttempts int,
	lockout time.Duration,
) (*VerificationService, error) {
	if repo == nil {
		return nil, fmt.Errorf("verification repository is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if lockout <= 0 {
		lockout = 30 * time.Minute
	}
	return &VerificationService{
		repo:        repo,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}, nil
}

// TTL возвращает срок действия кода
func (s *VerificationService) TTL() time.Duration {
	return s.ttl
}

// Issue создает новый код и заменяет предыдущий.
// Пока действует блокировка, новый код не выдается.
func (s *VerificationService) Issue(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	now := s.now()

	existing, err := s.repo.Get(ctx, email)
	switch {
	case err == nil && existing.IsLocked(now):
		return "", &apperrors.LockedError{RemainingMinutes: existing.RemainingLockMinutes(now)}
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return "", fmt.Errorf("failed to load verification challenge: %w", err)
	}

	code, err := generateVerificationCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	challenge := &entity.VerificationChallenge{
		Email:     email,
		Code:      code,
		Attempts:  0,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Save(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to save verification challenge: %w", err)
	}
	return code, nil
}

// Check проверяет код. nil означает, что код принят и удален.
// Счетчик неверных попыток меняется атомарно, параллельные попытки не обходят лимит.
func (s *VerificationService) Check(ctx context.Context, email, submitted string) error {
	email = normalizeEmail(email)
	// нечисловой код считается обычным несовпадением
	submitted = strings.TrimSpace(submitted)

	var (
		outcome error
		locked  *time.Time
	)
	err := s.repo.Update(ctx, email, func(challenge *entity.VerificationChallenge) (*entity.VerificationChallenge, error) {
		outcome, locked = nil, nil
		now := s.now()

		if challenge.IsLocked(now) {
			return nil, &apperrors.LockedError{RemainingMinutes: challenge.RemainingLockMinutes(now)}
		}
		if challenge.IsExpired(now) {
			return nil, apperrors.ErrVerificationExpired
		}
		if subtle.ConstantTimeCompare([]byte(submitted), []byte(challenge.Code)) != 1 {
			if challenge.RegisterFailure(now, s.maxAttempts, s.lockout) {
				locked = challenge.BlockUntil
			}
			outcome = apperrors.ErrVerificationIncorrect
			return challenge, nil
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrVerificationNotFound
		}
		var lockedErr *apperrors.LockedError
		if errors.As(err, &lockedErr) || errors.Is(err, apperrors.ErrVerificationExpired) {
			return err
		}
		return fmt.Errorf("failed to check verification code: %w", err)
	}
	if locked != nil {
		log.Printf("[VerificationService] Код для %s заблокирован до %s", email, locked.Format(time.RFC3339))
	}
	return outcome
}

func generateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(verificationCodeMax-verificationCodeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+verificationCodeMin), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
