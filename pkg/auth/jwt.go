package auth

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// TokenType различает access и refresh токены в claims
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrTokenMalformed   = errors.New("token is malformed")
	ErrTokenExpired     = errors.New("token is expired")
	ErrTokenSignature   = errors.New("token signature is invalid")
	ErrTokenWrongType   = errors.New("token has wrong type")
	ErrTokenUnavailable = errors.New("token is not valid")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID    uint      `json:"user_id"`
	Email     string    `json:"email"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// JWTService подписывает и проверяет токены общим HMAC-секретом
type JWTService struct {
	secret          []byte
	issuer          string
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	now             func() time.Time
}

// NewJWTService создает новый сервис JWT
func NewJWTService(secret, issuer string, accessLifetime, refreshLifetime time.Duration) (*JWTService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required for JWTService")
	}
	if accessLifetime <= 0 {
		accessLifetime = 5 * time.Minute
	}
	if refreshLifetime <= 0 {
		refreshLifetime = 24 * time.Hour
	}
	if issuer == "" {
		issuer = "quiz-api"
	}
	return &JWTService{
		secret:          []byte(secret),
		issuer:          issuer,
		accessLifetime:  accessLifetime,
		refreshLifetime: refreshLifetime,
		now:             time.Now,
	}, nil
}

// AccessLifetime возвращает время жизни access-токена
func (s *JWTService) AccessLifetime() time.Duration {
	return s.accessLifetime
}

// GenerateToken создает подписанный токен указанного типа
func (s *JWTService) GenerateToken(user *entity.User, tokenType TokenType) (string, *JWTCustomClaims, error) {
	if user == nil || user.ID == 0 {
		return "", nil, errors.New("user is required for token generation")
	}
	lifetime := s.accessLifetime
	if tokenType == RefreshToken {
		lifetime = s.refreshLifetime
	}

	now := s.now()
	claims := &JWTCustomClaims{
		UserID:    user.ID,
		Email:     user.Email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации %s токена для пользователя ID=%d: %v", tokenType, user.ID, err)
		return "", nil, err
	}
	return tokenString, claims, nil
}

// ParseToken проверяет подпись, срок и тип токена
func (s *JWTService) ParseToken(tokenString string, expected TokenType) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}

	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				return nil, ErrTokenSignature
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	if !token.Valid {
		return nil, ErrTokenUnavailable
	}
	if claims.TokenType != expected {
		return nil, ErrTokenWrongType
	}
	if claims.ID == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
