package entity

import "time"

// VerificationChallenge - одноразовый код подтверждения email, хранится в Redis
type VerificationChallenge struct {
	Email      string     `json:"email"`
	Code       string     `json:"code"`
	Attempts   int        `json:"attempts"`
	ExpiresAt  time.Time  `json:"expires_at"`
	BlockUntil *time.Time `json:"block_until,omitempty"`
}

// IsLocked проверяет, действует ли блокировка после серии неверных попыток
func (c *VerificationChallenge) IsLocked(now time.Time) bool {
	return c.BlockUntil != nil && now.Before(*c.BlockUntil)
}

// RemainingLockMinutes округляет остаток блокировки вверх до целых минут
func (c *VerificationChallenge) RemainingLockMinutes(now time.Time) int {
	if !c.IsLocked(now) {
		return 0
	}
	left := c.BlockUntil.Sub(now)
	minutes := int(left / time.Minute)
	if left%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// IsExpired проверяет срок действия кода
func (c *VerificationChallenge) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RetainUntil: ключ живет, пока действует код или блокировка
func (c *VerificationChallenge) RetainUntil() time.Time {
	if c.BlockUntil != nil && c.BlockUntil.After(c.ExpiresAt) {
		return *c.BlockUntil
	}
	return c.ExpiresAt
}

// RegisterFailure увеличивает счетчик; при достижении лимита блокирует и сбрасывает счетчик.
// Возвращает true, если блокировка установлена.
func (c *VerificationChallenge) RegisterFailure(now time.Time, maxAttempts int, lockout time.Duration) bool {
	c.Attempts++
	if c.Attempts >= maxAttempts {
		until := now.Add(lockout)
		c.BlockUntil = &until
		c.Attempts = 0
		return true
	}
	return false
}
