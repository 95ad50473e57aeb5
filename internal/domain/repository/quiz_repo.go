package repository

import (
	"context"

	"github.com/yourusername/quiz-api/internal/domain/entity"
)

// SubjectRepository определяет методы для работы с темами
type SubjectRepository interface {
	List(ctx context.Context) ([]entity.Subject, error)
	GetByName(ctx context.Context, name string) (*entity.Subject, error)
	// GetOrCreate используется при импорте вопросов
	GetOrCreate(ctx context.Context, name string) (*entity.Subject, error)
}

// QuestionRepository определяет методы для работы с вопросами
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Question, error)
	ListBySubject(ctx context.Context, subjectID uint) ([]entity.Question, error)
	CreateBatch(ctx context.Context, questions []entity.Question) error
}

// SessionRepository определяет методы для работы с сессиями и ответами
type SessionRepository interface {
	Create(ctx context.Context, session *entity.QuizSession) error
	// GetByID подгружает Subject
	GetByID(ctx context.Context, id uint) (*entity.QuizSession, error)
	// GetForUpdate блокирует строку сессии до конца транзакции
	GetForUpdate(ctx context.Context, id uint) (*entity.QuizSession, error)
	Update(ctx context.Context, session *entity.QuizSession) error
	SetQuestions(ctx context.Context, sessionID uint, questionIDs entity.UintArray) error

	AnswerExists(ctx context.Context, userID, questionID uint) (bool, error)
	// CreateAnswer возвращает ErrConflict при нарушении уникальности (user, question)
	CreateAnswer(ctx context.Context, answer *entity.Answer) error

	// WithTx выполняет fn в транзакции; репозиторий внутри fn привязан к ней
	WithTx(ctx context.Context, fn func(repo SessionRepository) error) error
}
