package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig содержит настройки rate limiting
type RateLimitConfig struct {
	// MaxRequests - максимальное количество запросов за Window
	MaxRequests int
	// Window - временное окно для подсчёта запросов
	Window time.Duration
	// KeyPrefix - префикс для ключей в Redis
	KeyPrefix string
}

// AuthRateLimitConfig - лимит на группу /auth по IP
func AuthRateLimitConfig(perMinute int) RateLimitConfig {
	if perMinute <= 0 {
		perMinute = 20
	}
	return RateLimitConfig{
		MaxRequests: perMinute,
		Window:      time.Minute,
		KeyPrefix:   "rl:auth",
	}
}

// StrictAuthRateLimitConfig - строгий лимит для login/register/verify (защита от перебора кода)
func StrictAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      time.Minute,
		KeyPrefix:   "rl:auth:strict",
	}
}

// RateLimiter создаёт middleware для rate limiting на основе Redis
type RateLimiter struct {
	redisClient redis.UniversalClient
}

// NewRateLimiter создает новый RateLimiter
func NewRateLimiter(redisClient redis.UniversalClient) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit считает запросы по IP + шаблону маршрута
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		rl.apply(c, cfg, fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, c.ClientIP(), path))
	}
}

// LimitByIP ограничивает количество запросов по IP для всей группы маршрутов
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		rl.apply(c, cfg, fmt.Sprintf("%s:%s", cfg.KeyPrefix, c.ClientIP()))
	}
}

func (rl *RateLimiter) apply(c *gin.Context, cfg RateLimitConfig, key string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	count, err := rl.redisClient.Incr(ctx, key).Result()
	if err != nil {
		// При ошибке Redis пропускаем запрос (fail-open), но логируем
		log.Printf("[RateLimiter] Redis error for key %s: %v. Allowing request (fail-open).", key, err)
		c.Next()
		return
	}

	// Если это первый запрос в окне - устанавливаем TTL
	if count == 1 {
		if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
			log.Printf("[RateLimiter] Failed to set TTL for key %s: %v", key, err)
		}
	}

	remaining := cfg.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}

	ttl, _ := rl.redisClient.TTL(ctx, key).Result()
	retryAfter := int(ttl.Seconds())
	if retryAfter < 0 {
		retryAfter = int(cfg.Window.Seconds())
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

	if int(count) > cfg.MaxRequests {
		log.Printf("[RateLimiter] Rate limit exceeded for key=%s. Count=%d, Limit=%d", key, count, cfg.MaxRequests)

		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       "Too many requests. Please try again later.",
			"error_type":  "rate_limited",
			"retry_after": retryAfter,
		})
		return
	}

	c.Next()
}
