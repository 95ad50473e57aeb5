package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/pkg/database"
)

// SubjectRepo реализует repository.SubjectRepository
type SubjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo создает новый репозиторий тем
func NewSubjectRepo(db *gorm.DB) *SubjectRepo {
	return &SubjectRepo{db: db}
}

// List возвращает все темы по алфавиту
func (r *SubjectRepo) List(ctx context.Context) ([]entity.Subject, error) {
	var subjects []entity.Subject
	if err := r.db.WithContext(ctx).Order("name").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}

// GetByName возвращает тему по точному имени
func (r *SubjectRepo) GetByName(ctx context.Context, name string) (*entity.Subject, error) {
	var subject entity.Subject
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &subject, nil
}

// GetOrCreate создает тему, если ее нет
func (r *SubjectRepo) GetOrCreate(ctx context.Context, name string) (*entity.Subject, error) {
	subject := entity.Subject{Name: name}
	err := r.db.WithContext(ctx).
		Where(entity.Subject{Name: name}).
		FirstOrCreate(&subject).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get or create subject %q: %w", name, err)
	}
	return &subject, nil
}

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.WithContext(ctx).First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// ListBySubject возвращает все вопросы темы
func (r *QuestionRepo) ListBySubject(ctx context.Context, subjectID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).Where("subject_id = ?", subjectID).Order("id").Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// CreateBatch создает пакет вопросов в одной транзакции
func (r *QuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&questions, 100).Error
	})
}

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create создает новую сессию
func (r *SessionRepo) Create(ctx context.Context, session *entity.QuizSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID возвращает сессию вместе с темой
func (r *SessionRepo) GetByID(ctx context.Context, id uint) (*entity.QuizSession, error) {
	var session entity.QuizSession
	err := r.db.WithContext(ctx).Preload("Subject").First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// GetForUpdate читает сессию с SELECT ... FOR UPDATE
func (r *SessionRepo) GetForUpdate(ctx context.Context, id uint) (*entity.QuizSession, error) {
	var session entity.QuizSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

// Update сохраняет счетчики и состояние сессии
func (r *SessionRepo) Update(ctx context.Context, session *entity.QuizSession) error {
	return r.db.WithContext(ctx).Model(session).
		Select("attempts", "score", "completed", "end_time", "updated_at").
		Updates(session).Error
}

// SetQuestions сохраняет список выданных вопросов
func (r *SessionRepo) SetQuestions(ctx context.Context, sessionID uint, questionIDs entity.UintArray) error {
	result := r.db.WithContext(ctx).Model(&entity.QuizSession{}).
		Where("id = ?", sessionID).
		Update("questions", questionIDs)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AnswerExists проверяет, отвечал ли пользователь на вопрос
func (r *SessionRepo) AnswerExists(ctx context.Context, userID, questionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Answer{}).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Count(&count).Error
	return count > 0, err
}

// CreateAnswer сохраняет ответ
func (r *SessionRepo) CreateAnswer(ctx context.Context, answer *entity.Answer) error {
	if err := r.db.WithContext(ctx).Create(answer).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: answer for question %d", apperrors.ErrConflict, answer.QuestionID)
		}
		return err
	}
	return nil
}

// WithTx выполняет fn в транзакции
func (r *SessionRepo) WithTx(ctx context.Context, fn func(repo repository.SessionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SessionRepo{db: tx})
	})
}
