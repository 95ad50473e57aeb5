package entity

import "time"

// SessionState - состояние сессии викторины
type SessionState string

const (
	SessionNotStarted SessionState = "not_started"
	SessionActive     SessionState = "active"
	SessionCompleted  SessionState = "completed"
)

// QuizSession - попытка пользователя пройти викторину по одной теме
type QuizSession struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	SubjectID uint       `gorm:"not null;index" json:"subject_id"`
	StartTime time.Time  `gorm:"not null" json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	Score     int        `gorm:"not null;default:0" json:"score"`
	Questions UintArray  `gorm:"type:jsonb;not null" json:"questions"`
	Completed bool       `gorm:"not null;default:false" json:"completed"`

	User    *User    `gorm:"foreignKey:UserID" json:"-"`
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Timestamps
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

// State возвращает текущее состояние сессии
func (s *QuizSession) State() SessionState {
	switch {
	case s.ID == 0:
		return SessionNotStarted
	case s.Completed:
		return SessionCompleted
	default:
		return SessionActive
	}
}

// Deadline - момент окончания отведенного времени
func (s *QuizSession) Deadline(limit time.Duration) time.Time {
	return s.StartTime.Add(limit)
}

// IsTimeUp проверяет, истекло ли время
func (s *QuizSession) IsTimeUp(now time.Time, limit time.Duration) bool {
	return now.After(s.Deadline(limit))
}

// Complete переводит сессию в конечное состояние
func (s *QuizSession) Complete(now time.Time) {
	s.Completed = true
	s.EndTime = &now
}

// Answer - ответ пользователя на вопрос. Одна запись на пару (user, question).
type Answer struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	UserID         uint   `gorm:"not null;uniqueIndex:idx_answers_user_question" json:"user_id"`
	QuestionID     uint   `gorm:"not null;uniqueIndex:idx_answers_user_question" json:"question_id"`
	SessionID      uint   `gorm:"not null;index" json:"session_id"`
	SelectedAnswer string `gorm:"size:1;not null" json:"selected_answer"`
	IsCorrect      bool   `gorm:"not null" json:"is_correct"`
	Timestamps
}

func (Answer) TableName() string {
	return "answers"
}
