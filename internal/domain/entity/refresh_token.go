package entity

import "time"

// RefreshToken хранит выданный refresh-токен (только SHA-256 хеш) и отметку о блокировке.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	JTI           string     `gorm:"column:jti;size:64;not null;uniqueIndex" json:"jti"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	TokenHash     string     `gorm:"column:token_hash;type:text;not null;uniqueIndex" json:"-"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	BlacklistedAt *time.Time `gorm:"index" json:"blacklisted_at,omitempty"`
	Timestamps
}

// NewRefreshToken creates a refresh token record from a precomputed hash.
func NewRefreshToken(userID uint, jti, tokenHash string, expiresAt time.Time) *RefreshToken {
	return &RefreshToken{
		JTI:       jti,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
}

// IsBlacklisted reports whether the token was revoked.
func (rt *RefreshToken) IsBlacklisted() bool {
	return rt.BlacklistedAt != nil
}

// IsValid checks that the token is neither revoked nor expired.
func (rt *RefreshToken) IsValid(now time.Time) bool {
	return !rt.IsBlacklisted() && rt.ExpiresAt.After(now)
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// BlacklistedAccessToken - access-токен, отозванный при выходе. Записи только добавляются.
type BlacklistedAccessToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"type:text;not null;uniqueIndex" json:"-"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (BlacklistedAccessToken) TableName() string {
	return "blacklisted_access_tokens"
}
