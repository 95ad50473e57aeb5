package entity

import (
	"log"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User представляет зарегистрированного пользователя
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"size:254;not null;uniqueIndex" json:"email"`
	Password    string `gorm:"size:100;not null" json:"-"`
	IsVerified  bool   `gorm:"not null;default:false" json:"is_verified"`
	IsSuperuser bool   `gorm:"not null;default:false" json:"-"`
	Timestamps
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !isBcryptHash(u.Password) {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] Ошибка при хешировании пароля для email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// CanLogin: суперпользователь входит без подтверждения email
func (u *User) CanLogin() bool {
	return u.IsVerified || u.IsSuperuser
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
