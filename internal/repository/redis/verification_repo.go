package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

const (
	verificationKeyPrefix = "email_verification:"
	// повторы WATCH при конкурентном изменении ключа
	maxUpdateRetries = 10
)

// VerificationRepo хранит коды подтверждения как JSON-значения с TTL
type VerificationRepo struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewVerificationRepo создает репозиторий кодов подтверждения
func NewVerificationRepo(client redis.UniversalClient) (*VerificationRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for VerificationRepo")
	}
	return &VerificationRepo{client: client, now: time.Now}, nil
}

func verificationKey(email string) string {
	return verificationKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

// Save перезаписывает код. TTL покрывает и срок кода, и блокировку.
func (r *VerificationRepo) Save(ctx context.Context, challenge *entity.VerificationChallenge) error {
	return r.write(ctx, r.client, verificationKey(challenge.Email), challenge)
}

// write сохраняет код через cmd (клиент или конвейер транзакции)
func (r *VerificationRepo) write(ctx context.Context, cmd redis.Cmdable, key string, challenge *entity.VerificationChallenge) error {
	ttl := challenge.RetainUntil().Sub(r.now())
	if ttl <= 0 {
		return cmd.Del(ctx, key).Err()
	}
	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal verification challenge: %w", err)
	}
	return cmd.Set(ctx, key, data, ttl).Err()
}

// Update выполняет чтение-изменение-запись под WATCH; при конфликте повторяет fn
func (r *VerificationRepo) Update(ctx context.Context, email string, fn repository.VerificationUpdateFunc) error {
	key := verificationKey(email)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.ErrNotFound
			}
			return err
		}
		var challenge entity.VerificationChallenge
		if err := json.Unmarshal(data, &challenge); err != nil {
			return fmt.Errorf("failed to unmarshal verification challenge: %w", err)
		}

		updated, err := fn(&challenge)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if updated == nil {
				return pipe.Del(ctx, key).Err()
			}
			return r.write(ctx, pipe, key, updated)
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("verification challenge for %s is busy: %w", email, redis.TxFailedErr)
}

// Get возвращает код или ErrNotFound
func (r *VerificationRepo) Get(ctx context.Context, email string) (*entity.VerificationChallenge, error) {
	data, err := r.client.Get(ctx, verificationKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	var challenge entity.VerificationChallenge
	if err := json.Unmarshal(data, &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification challenge: %w", err)
	}
	return &challenge, nil
}

// Delete удаляет код
func (r *VerificationRepo) Delete(ctx context.Context, email string) error {
	return r.client.Del(ctx, verificationKey(email)).Err()
}
