package entity

import "time"

// Timestamps встраивается во все сущности вместо общей базовой модели
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
