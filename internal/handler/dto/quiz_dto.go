package dto

import (
	"strings"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// SubjectResponse - тема в списке
type SubjectResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// QuestionResponse - вопрос без правильного ответа
type QuestionResponse struct {
	ID       uint   `json:"id"`
	Subject  uint   `json:"subject"`
	Question string `json:"question"`
	OptionA  string `json:"option_a"`
	OptionB  string `json:"option_b"`
	OptionC  string `json:"option_c"`
	OptionD  string `json:"option_d"`
	Image    string `json:"image,omitempty"`
}

// SessionResponse - снимок сессии
type SessionResponse struct {
	ID        uint       `json:"id"`
	User      uint       `json:"user"`
	Subject   uint       `json:"subject"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Attempts  int        `json:"attempts"`
	Score     int        `json:"score"`
	Completed bool       `json:"completed"`
}

// AssignQuestionsRequest принимает subject_name или name
type AssignQuestionsRequest struct {
	SubjectName string `json:"subject_name"`
	Name        string `json:"name"`
	SessionID   uint   `json:"session_id"`
}

// Subject возвращает имя темы с учетом псевдонима name
func (r AssignQuestionsRequest) Subject() string {
	if s := strings.TrimSpace(r.SubjectName); s != "" {
		return s
	}
	return strings.TrimSpace(r.Name)
}

// StartSessionRequest - запрос на начало сессии
type StartSessionRequest struct {
	SubjectName string `json:"subject_name"`
}

// SubmitAnswerRequest - ответ на вопрос
type SubmitAnswerRequest struct {
	SessionID  uint   `json:"session_id" binding:"required"`
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

// EmailResultRequest - отправка итогов на email
type EmailResultRequest struct {
	Email     string `json:"email" binding:"required"`
	SessionID uint   `json:"session_id" binding:"required"`
}

func NewSubjectResponse(s entity.Subject) SubjectResponse {
	return SubjectResponse{ID: s.ID, Name: s.Name}
}

func NewListSubjectResponse(subjects []entity.Subject) []SubjectResponse {
	out := make([]SubjectResponse, len(subjects))
	for i, s := range subjects {
		out[i] = NewSubjectResponse(s)
	}
	return out
}

// NewQuestionResponse копирует поля вопроса, кроме CorrectAnswer
func NewQuestionResponse(q entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:       q.ID,
		Subject:  q.SubjectID,
		Question: q.Text,
		OptionA:  q.OptionA,
		OptionB:  q.OptionB,
		OptionC:  q.OptionC,
		OptionD:  q.OptionD,
		Image:    q.Image,
	}
}

func NewListQuestionResponse(questions []entity.Question) []QuestionResponse {
	out := make([]QuestionResponse, len(questions))
	for i, q := range questions {
		out[i] = NewQuestionResponse(q)
	}
	return out
}

func NewSessionResponse(s *entity.QuizSession) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		User:      s.UserID,
		Subject:   s.SubjectID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Attempts:  s.Attempts,
		Score:     s.Score,
		Completed: s.Completed,
	}
}
