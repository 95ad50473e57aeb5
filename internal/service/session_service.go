package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/notifier"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// SessionConfig содержит параметры прохождения викторины
type SessionConfig struct {
	MaxAttempts      int
	QuestionsPerQuiz int
	TimeLimit        time.Duration
	LockTTL          time.Duration
	Project          string
}

// SummarySender отправляет итоги сессии на email
type SummarySender interface {
	SendSessionSummary(ctx context.Context, toEmail string, snapshot notifier.SessionSnapshot) error
}

// SubmitResult - результат отправки ответа
type SubmitResult struct {
	IsCorrect bool
	// Finished: лимит попыток исчерпан, ответ не засчитан
	Finished bool
}

type submitOutcome int

const (
	outcomeGraded submitOutcome = iota
	outcomeFinished
	outcomeTimeUp
)

// SessionService управляет жизненным циклом сессии викторины
type SessionService struct {
	quizService  *QuizService
	questionRepo repository.QuestionRepository
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository
	cacheRepo    repository.CacheRepository
	notifier     notifier.Notifier
	mailer       SummarySender
	cfg          SessionConfig
	now          func() time.Time
	intn         func(n int) int
}

// NewSessionService создает сервис сессий
func NewSessionService(
	quizService *QuizService,
	questionRepo repository.QuestionRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	cacheRepo repository.CacheRepository,
	n notifier.Notifier,
	mailer SummarySender,
	cfg SessionConfig,
) (*SessionService, error) {
	if quizService == nil {
		return nil, fmt.Errorf("QuizService is required for SessionService")
	}
	if questionRepo == nil {
		return nil, fmt.Errorf("QuestionRepository is required for SessionService")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("SessionRepository is required for SessionService")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for SessionService")
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	if mailer == nil {
		mailer = notifier.NoopMailer{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.QuestionsPerQuiz <= 0 {
		cfg.QuestionsPerQuiz = 10
	}
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = 3 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	return &SessionService{
		quizService:  quizService,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		cacheRepo:    cacheRepo,
		notifier:     n,
		mailer:       mailer,
		cfg:          cfg,
		now:          time.Now,
		intn:         rand.Intn,
	}, nil
}

// Start создает активную сессию по теме
func (s *SessionService) Start(ctx context.Context, userID uint, subjectName string) (*entity.QuizSession, error) {
	subject, err := s.quizService.GetSubjectByName(ctx, subjectName)
	if err != nil {
		return nil, err
	}

	session := &entity.QuizSession{
		UserID:    userID,
		SubjectID: subject.ID,
		StartTime: s.now(),
		Questions: entity.UintArray{},
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Subject = subject

	log.Printf("[SessionService] Пользователь ID=%d начал сессию ID=%d по теме %q", userID, session.ID, subject.Name)
	return session, nil
}

// AssignQuestions выбирает случайные вопросы темы и закрепляет их за сессией
func (s *SessionService) AssignQuestions(ctx context.Context, userID, sessionID uint, subjectName string) ([]entity.Question, error) {
	subject, err := s.quizService.GetSubjectByName(ctx, subjectName)
	if err != nil {
		return nil, err
	}
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListBySubject(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	selected := s.shuffleWithLimit(questions, s.cfg.QuestionsPerQuiz)

	ids := make(entity.UintArray, 0, len(selected))
	for _, q := range selected {
		ids = append(ids, q.ID)
	}
	if err := s.sessionRepo.SetQuestions(ctx, session.ID, ids); err != nil {
		return nil, fmt.Errorf("failed to assign questions: %w", err)
	}
	return selected, nil
}

// shuffleWithLimit перемешивает копию вопросов (Фишер-Йейтс) и берет первые limit
func (s *SessionService) shuffleWithLimit(questions []entity.Question, limit int) []entity.Question {
	shuffled := make([]entity.Question, len(questions))
	copy(shuffled, questions)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	if limit <= 0 || limit > len(shuffled) {
		limit = len(shuffled)
	}
	return shuffled[:limit]
}

// SubmitAnswer оценивает ответ. Запросы по одной сессии выполняются последовательно.
func (s *SessionService) SubmitAnswer(ctx context.Context, userID, sessionID, questionID uint, choice string) (*SubmitResult, error) {
	release, err := s.acquireLock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		outcome submitOutcome
		result  SubmitResult
		updated *entity.QuizSession
	)
	err = s.sessionRepo.WithTx(ctx, func(tx repository.SessionRepository) error {
		session, err := tx.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.UserID != userID {
			return fmt.Errorf("%w: session does not exist", apperrors.ErrNotFound)
		}
		if !session.Questions.Contains(questionID) {
			return apperrors.ErrInvalidQuestion
		}
		question, err := s.questionRepo.GetByID(ctx, questionID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: question does not exist", apperrors.ErrNotFound)
			}
			return err
		}

		now := s.now()
		if session.Attempts >= s.cfg.MaxAttempts {
			outcome = outcomeFinished
			return s.finish(ctx, tx, session, now, false)
		}
		if session.IsTimeUp(now, s.cfg.TimeLimit) {
			outcome = outcomeTimeUp
			return s.finish(ctx, tx, session, now, true)
		}
		if session.Completed {
			return apperrors.ErrAlreadyCompleted
		}

		choice = strings.TrimSpace(choice)
		if !entity.IsValidAnswerChoice(choice) {
			return fmt.Errorf("%w: 'A', 'B', 'C', or 'D' answers only", apperrors.ErrValidation)
		}

		exists, err := tx.AnswerExists(ctx, userID, questionID)
		if err != nil {
			return fmt.Errorf("failed to check answer: %w", err)
		}
		if exists {
			return apperrors.ErrDuplicateAnswer
		}

		isCorrect := question.IsCorrect(choice)
		answer := &entity.Answer{
			UserID:         userID,
			QuestionID:     questionID,
			SessionID:      session.ID,
			SelectedAnswer: choice,
			IsCorrect:      isCorrect,
		}
		if err := tx.CreateAnswer(ctx, answer); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				return apperrors.ErrDuplicateAnswer
			}
			return fmt.Errorf("failed to save answer: %w", err)
		}

		session.Attempts++
		if isCorrect {
			session.Score++
		}
		if err := tx.Update(ctx, session); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}

		outcome = outcomeGraded
		result.IsCorrect = isCorrect
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case outcomeFinished:
		return &SubmitResult{Finished: true}, nil
	case outcomeTimeUp:
		// завершение сессии уже зафиксировано
		return nil, apperrors.ErrTimeLimitExceeded
	}

	s.dispatch(ctx, updated)
	return &result, nil
}

// finish завершает сессию. Ответы остаются: пара (user, question) занята навсегда
func (s *SessionService) finish(ctx context.Context, tx repository.SessionRepository, session *entity.QuizSession, now time.Time, resetScore bool) error {
	if resetScore {
		session.Score = 0
	}
	if !session.Completed {
		session.Complete(now)
	}
	if err := tx.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	log.Printf("[SessionService] Сессия ID=%d завершена (score=%d, attempts=%d)", session.ID, session.Score, session.Attempts)
	return nil
}

func (s *SessionService) acquireLock(ctx context.Context, sessionID uint) (func(), error) {
	if s.cacheRepo == nil {
		return func() {}, nil
	}
	key := fmt.Sprintf("quiz:session:%d:lock", sessionID)
	owner := uuid.NewString()

	ok, err := s.cacheRepo.SetNX(ctx, key, owner, s.cfg.LockTTL)
	if err != nil {
		// остается блокировка строки в транзакции
		log.Printf("[SessionService] Redis недоступен для блокировки сессии ID=%d: %v", sessionID, err)
		return func() {}, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: session is busy", apperrors.ErrConflict)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := s.cacheRepo.DeleteIfEquals(releaseCtx, key, owner); err != nil {
			log.Printf("[SessionService] Ошибка снятия блокировки сессии ID=%d: %v", sessionID, err)
		}
	}, nil
}

func (s *SessionService) dispatch(ctx context.Context, session *entity.QuizSession) {
	snapshot, err := s.snapshot(ctx, session)
	if err != nil {
		log.Printf("[SessionService] Не удалось собрать уведомление для сессии ID=%d: %v", session.ID, err)
		return
	}
	if err := s.notifier.NotifySession(ctx, *snapshot); err != nil {
		log.Printf("[SessionService] Ошибка уведомления для сессии ID=%d: %v", session.ID, err)
	}
}

func (s *SessionService) snapshot(ctx context.Context, session *entity.QuizSession) (*notifier.SessionSnapshot, error) {
	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if session.Subject == nil {
		// строка, прочитанная под блокировкой, загружена без темы
		if full, err := s.sessionRepo.GetByID(ctx, session.ID); err == nil {
			session.Subject = full.Subject
		}
	}
	subject := ""
	if session.Subject != nil {
		subject = session.Subject.Name
	}
	return &notifier.SessionSnapshot{
		Project:   s.cfg.Project,
		SessionID: session.ID,
		UserID:    session.UserID,
		UserEmail: user.Email,
		Subject:   subject,
		Score:     session.Score,
		Attempts:  session.Attempts,
		Completed: session.Completed,
		StartTime: session.StartTime,
		EndTime:   session.EndTime,
	}, nil
}

// GetSession возвращает сессию, только если она принадлежит пользователю
func (s *SessionService) GetSession(ctx context.Context, userID, sessionID uint) (*entity.QuizSession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: session does not exist", apperrors.ErrNotFound)
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, fmt.Errorf("%w: session does not exist", apperrors.ErrNotFound)
	}
	return session, nil
}

// EmailResult отправляет итоги сессии на указанный адрес. Ошибка отправки возвращается вызывающему.
func (s *SessionService) EmailResult(ctx context.Context, userID, sessionID uint, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	session, err := s.GetSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	snapshot, err := s.snapshot(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to build session summary: %w", err)
	}
	if err := s.mailer.SendSessionSummary(ctx, email, *snapshot); err != nil {
		return fmt.Errorf("failed to send session summary: %w", err)
	}
	log.Printf("[SessionService] Итоги сессии ID=%d отправлены на %s", sessionID, email)
	return nil
}
