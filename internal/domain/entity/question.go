package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// AnswerChoices - допустимые варианты ответа
var AnswerChoices = []string{"A", "B", "C", "D"}

// IsValidAnswerChoice проверяет, что ответ - одна из букв A-D
func IsValidAnswerChoice(choice string) bool {
	for _, c := range AnswerChoices {
		if c == choice {
			return true
		}
	}
	return false
}

// UintArray - пользовательский тип для хранения списка ID в JSONB
type UintArray []uint

// Scan реализует интерфейс sql.Scanner для UintArray
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	if len(bytes) == 0 {
		*a = UintArray{}
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Value реализует интерфейс driver.Valuer для UintArray
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Contains проверяет наличие ID в списке
func (a UintArray) Contains(id uint) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}

// Ограничения длины колонок subjects.name и questions.image
const (
	MaxSubjectNameLength = 100
	MaxImagePathLength   = 255
)

// Subject - тема викторины
type Subject struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Timestamps
}

func (Subject) TableName() string {
	return "subjects"
}

// Question - вопрос с четырьмя вариантами ответа
type Question struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	SubjectID     uint   `gorm:"not null;index" json:"subject_id"`
	Text          string `gorm:"type:text;not null" json:"question"`
	OptionA       string `gorm:"type:text;not null" json:"option_a"`
	OptionB       string `gorm:"type:text;not null" json:"option_b"`
	OptionC       string `gorm:"type:text;not null" json:"option_c"`
	OptionD       string `gorm:"type:text;not null" json:"option_d"`
	CorrectAnswer string `gorm:"size:1;not null" json:"-"` // Скрыто от клиента
	Image         string `gorm:"size:255;not null;default:''" json:"image,omitempty"`
	Timestamps
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// IsCorrect сравнивает выбранную букву с правильной
func (q *Question) IsCorrect(choice string) bool {
	return strings.EqualFold(strings.TrimSpace(choice), q.CorrectAnswer)
}
