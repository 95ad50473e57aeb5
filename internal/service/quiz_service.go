package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

const subjectsCacheKey = "quiz:subjects"

// ImportedQuestion - строка файла импорта
type ImportedQuestion struct {
	Subject       string
	Text          string
	OptionA       string
	OptionB       string
	OptionC       string
	OptionD       string
	CorrectAnswer string
	Image         string
}

// QuizService предоставляет методы для работы с темами и вопросами
type QuizService struct {
	subjectRepo  repository.SubjectRepository
	questionRepo repository.QuestionRepository
	cacheRepo    repository.CacheRepository
	cacheTTL     time.Duration
}

// NewQuizService создает новый сервис каталога
func NewQuizService(
	subjectRepo repository.SubjectRepository,
	questionRepo repository.QuestionRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
) (*QuizService, error) {
	if subjectRepo == nil {
		return nil, fmt.Errorf("SubjectRepository is required for QuizService")
	}
	if questionRepo == nil {
		return nil, fmt.Errorf("QuestionRepository is required for QuizService")
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &QuizService{
		subjectRepo:  subjectRepo,
		questionRepo: questionRepo,
		cacheRepo:    cacheRepo,
		cacheTTL:     cacheTTL,
	}, nil
}

// ListSubjects возвращает все темы. Ошибка кеша не мешает чтению из БД.
func (s *QuizService) ListSubjects(ctx context.Context) ([]entity.Subject, error) {
	if s.cacheRepo != nil {
		var cached []entity.Subject
		err := s.cacheRepo.GetJSON(ctx, subjectsCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[QuizService] Ошибка чтения кеша тем: %v", err)
		}
	}

	subjects, err := s.subjectRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, subjectsCacheKey, subjects, s.cacheTTL); err != nil {
			log.Printf("[QuizService] Ошибка записи кеша тем: %v", err)
		}
	}
	return subjects, nil
}

// GetSubjectByName возвращает тему по имени
func (s *QuizService) GetSubjectByName(ctx context.Context, name string) (*entity.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject_name is required", apperrors.ErrValidation)
	}
	subject, err := s.subjectRepo.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: subject %q does not exist", apperrors.ErrNotFound, name)
		}
		return nil, err
	}
	return subject, nil
}

// CreateSubject создает тему, если ее еще нет
func (s *QuizService) CreateSubject(ctx context.Context, name string) (*entity.Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: subject name is required", apperrors.ErrValidation)
	}
	subject, err := s.subjectRepo.GetOrCreate(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}
	s.invalidateSubjects(ctx)
	return subject, nil
}

// ImportQuestions создает недостающие темы и вставляет вопросы одной транзакцией.
// Возвращает число вставленных вопросов.
func (s *QuizService) ImportQuestions(ctx context.Context, rows []ImportedQuestion) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	subjects := make(map[string]uint)
	questions := make([]entity.Question, 0, len(rows))
	for i, row := range rows {
		q, err := row.toQuestion()
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
		name := strings.TrimSpace(row.Subject)
		subjectID, ok := subjects[name]
		if !ok {
			subject, err := s.subjectRepo.GetOrCreate(ctx, name)
			if err != nil {
				return 0, fmt.Errorf("row %d: failed to resolve subject %q: %w", i+1, name, err)
			}
			subjectID = subject.ID
			subjects[name] = subjectID
		}
		q.SubjectID = subjectID
		questions = append(questions, q)
	}

	if err := s.questionRepo.CreateBatch(ctx, questions); err != nil {
		return 0, fmt.Errorf("failed to insert questions: %w", err)
	}
	s.invalidateSubjects(ctx)

	log.Printf("[QuizService] Импортировано вопросов: %d, тем: %d", len(questions), len(subjects))
	return len(questions), nil
}

func (s *QuizService) invalidateSubjects(ctx context.Context) {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(ctx, subjectsCacheKey); err != nil {
		log.Printf("[QuizService] Ошибка сброса кеша тем: %v", err)
	}
}

func (r ImportedQuestion) toQuestion() (entity.Question, error) {
	if strings.TrimSpace(r.Subject) == "" {
		return entity.Question{}, fmt.Errorf("%w: subject is empty", apperrors.ErrValidation)
	}
	if strings.TrimSpace(r.Text) == "" {
		return entity.Question{}, fmt.Errorf("%w: question text is empty", apperrors.ErrValidation)
	}
	if n := len([]rune(strings.TrimSpace(r.Subject))); n > entity.MaxSubjectNameLength {
		return entity.Question{}, fmt.Errorf("%w: subject is longer than %d characters", apperrors.ErrValidation, entity.MaxSubjectNameLength)
	}
	if n := len([]rune(strings.TrimSpace(r.Image))); n > entity.MaxImagePathLength {
		return entity.Question{}, fmt.Errorf("%w: image path is longer than %d characters", apperrors.ErrValidation, entity.MaxImagePathLength)
	}
	correct := strings.ToUpper(strings.TrimSpace(r.CorrectAnswer))
	if !entity.IsValidAnswerChoice(correct) {
		return entity.Question{}, fmt.Errorf("%w: correct answer must be one of A, B, C, D", apperrors.ErrValidation)
	}
	return entity.Question{
		Text:          strings.TrimSpace(r.Text),
		OptionA:       strings.TrimSpace(r.OptionA),
		OptionB:       strings.TrimSpace(r.OptionB),
		OptionC:       strings.TrimSpace(r.OptionC),
		OptionD:       strings.TrimSpace(r.OptionD),
		CorrectAnswer: correct,
		Image:         strings.TrimSpace(r.Image),
	}, nil
}
