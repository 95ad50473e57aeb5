package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// Удаляет ключ, только если значение совпадает с владельцем блокировки
var deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CacheRepo реализует repository.CacheRepository
type CacheRepo struct {
	client redis.UniversalClient
}

// NewCacheRepo создает новый репозиторий кеша
func NewCacheRepo(client redis.UniversalClient) (*CacheRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("Redis client cannot be nil for CacheRepo")
	}
	return &CacheRepo{client: client}, nil
}

// SetJSON сохраняет структуру JSON в кеше
func (r *CacheRepo) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON получает структуру JSON из кеша
func (r *CacheRepo) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperrors.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete удаляет значение из кеша
func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// SetNX устанавливает значение ключа, только если ключ не существует.
func (r *CacheRepo) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, expiration).Result()
}

// DeleteIfEquals атомарно удаляет ключ при совпадении значения
func (r *CacheRepo) DeleteIfEquals(ctx context.Context, key string, value string) (bool, error) {
	n, err := deleteIfEqualsScript.Run(ctx, r.client, []string{key}, value).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
