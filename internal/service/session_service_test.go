package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/notifier"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
)

// ============================================================================
// Хранилища в памяти
// ============================================================================

type memorySubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]*entity.Subject
	nextID   uint
	listErr  error
	listHits int
}

func newMemorySubjectRepo(names ...string) *memorySubjectRepo {
	r := &memorySubjectRepo{subjects: map[string]*entity.Subject{}}
	for _, n := range names {
		_, _ = r.GetOrCreate(context.Background(), n)
	}
	return r
}

func (r *memorySubjectRepo) List(ctx context.Context) ([]entity.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listHits++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]entity.Subject, 0, len(r.subjects))
	for i := uint(1); i <= r.nextID; i++ {
		for _, s := range r.subjects {
			if s.ID == i {
				out = append(out, *s)
			}
		}
	}
	return out, nil
}

func (r *memorySubjectRepo) GetByName(ctx context.Context, name string) (*entity.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subjects[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *memorySubjectRepo) GetOrCreate(ctx context.Context, name string) (*entity.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.subjects[name]; ok {
		return s, nil
	}
	r.nextID++
	s := &entity.Subject{ID: r.nextID, Name: name}
	r.subjects[name] = s
	return s, nil
}

func (r *memorySubjectRepo) byID(id uint) *entity.Subject {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.ID == id {
			c := *s
			return &c
		}
	}
	return nil
}

type memoryQuestionRepo struct {
	mu        sync.Mutex
	questions map[uint]entity.Question
	nextID    uint
}

func newMemoryQuestionRepo() *memoryQuestionRepo {
	return &memoryQuestionRepo{questions: map[uint]entity.Question{}}
}

func (r *memoryQuestionRepo) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &q, nil
}

func (r *memoryQuestionRepo) ListBySubject(ctx context.Context, subjectID uint) ([]entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Question
	for i := uint(1); i <= r.nextID; i++ {
		if q, ok := r.questions[i]; ok && q.SubjectID == subjectID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *memoryQuestionRepo) CreateBatch(ctx context.Context, questions []entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range questions {
		r.nextID++
		q.ID = r.nextID
		r.questions[q.ID] = q
	}
	return nil
}

type memorySessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]entity.QuizSession
	answers  []entity.Answer
	nextID   uint
	subjects *memorySubjectRepo
}

func newMemorySessionRepo(subjects *memorySubjectRepo) *memorySessionRepo {
	return &memorySessionRepo{sessions: map[uint]entity.QuizSession{}, subjects: subjects}
}

func cloneSession(s entity.QuizSession) entity.QuizSession {
	s.Questions = append(entity.UintArray{}, s.Questions...)
	s.Subject = nil
	return s
}

func (r *memorySessionRepo) Create(ctx context.Context, session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	r.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (r *memorySessionRepo) GetByID(ctx context.Context, id uint) (*entity.QuizSession, error) {
	s, err := r.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Subject = r.subjects.byID(s.SubjectID)
	return s, nil
}

func (r *memorySessionRepo) GetForUpdate(ctx context.Context, id uint) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := cloneSession(s)
	return &c, nil
}

func (r *memorySessionRepo) Update(ctx context.Context, session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[session.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Attempts = session.Attempts
	stored.Score = session.Score
	stored.Completed = session.Completed
	stored.EndTime = session.EndTime
	r.sessions[session.ID] = stored
	return nil
}

func (r *memorySessionRepo) SetQuestions(ctx context.Context, sessionID uint, ids entity.UintArray) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[sessionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.Questions = append(entity.UintArray{}, ids...)
	r.sessions[sessionID] = stored
	return nil
}

func (r *memorySessionRepo) AnswerExists(ctx context.Context, userID, questionID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.UserID == userID && a.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memorySessionRepo) CreateAnswer(ctx context.Context, answer *entity.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.UserID == answer.UserID && a.QuestionID == answer.QuestionID {
			return apperrors.ErrConflict
		}
	}
	answer.ID = uint(len(r.answers) + 1)
	r.answers = append(r.answers, *answer)
	return nil
}

// WithTx откатывает изменения, если fn вернула ошибку
func (r *memorySessionRepo) WithTx(ctx context.Context, fn func(repo repository.SessionRepository) error) error {
	r.mu.Lock()
	sessions := make(map[uint]entity.QuizSession, len(r.sessions))
	for k, v := range r.sessions {
		sessions[k] = cloneSession(v)
	}
	answers := append([]entity.Answer{}, r.answers...)
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.sessions = sessions
		r.answers = answers
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memorySessionRepo) answersFor(sessionID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, a := range r.answers {
		if a.SessionID == sessionID {
			n++
		}
	}
	return n
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	json   map[string]interface{}
	err    error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, json: map[string]interface{}{}}
}

func (c *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, exp time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.json[key] = value
	return nil
}

func (c *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	v, ok := c.json[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	if out, ok := dest.(*[]entity.Subject); ok {
		*out = append([]entity.Subject{}, v.([]entity.Subject)...)
	}
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.json, key)
	delete(c.values, key)
	return nil
}

func (c *memoryCache) SetNX(ctx context.Context, key string, value interface{}, exp time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = fmt.Sprint(value)
	return true, nil
}

func (c *memoryCache) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.values[key] != value {
		return false, nil
	}
	delete(c.values, key)
	return true, nil
}

type recordingMailer struct {
	to        string
	snapshots []notifier.SessionSnapshot
	err       error
}

func (m *recordingMailer) SendSessionSummary(ctx context.Context, toEmail string, s notifier.SessionSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.to = toEmail
	m.snapshots = append(m.snapshots, s)
	return nil
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []notifier.SessionSnapshot
}

func (r *recordingSink) NotifySession(ctx context.Context, s notifier.SessionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
	return errors.New("channel unavailable")
}

// ============================================================================
// Фикстура
// ============================================================================

type sessionFixture struct {
	service   *SessionService
	subjects  *memorySubjectRepo
	questions *memoryQuestionRepo
	sessions  *memorySessionRepo
	cache     *memoryCache
	sink      *recordingSink
	mailer    *recordingMailer
	clock     *testClock
}

const testUserID uint = 7

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	subjects := newMemorySubjectRepo("Math", "History")
	questions := newMemoryQuestionRepo()
	math, _ := subjects.GetByName(context.Background(), "Math")
	history, _ := subjects.GetByName(context.Background(), "History")

	batch := make([]entity.Question, 0, 17)
	for i := 0; i < 15; i++ {
		batch = append(batch, entity.Question{SubjectID: math.ID, Text: fmt.Sprintf("q%d", i), CorrectAnswer: "A"})
	}
	batch = append(batch, entity.Question{SubjectID: history.ID, Text: "h1", CorrectAnswer: "B"})
	require.NoError(t, questions.CreateBatch(context.Background(), batch))

	sessions := newMemorySessionRepo(subjects)
	cache := newMemoryCache()
	users := &MockUserRepository{}
	users.On("GetByID", testUserID).Return(&entity.User{ID: testUserID, Email: "player@example.com"}, nil)

	quiz, err := NewQuizService(subjects, questions, cache, time.Minute)
	require.NoError(t, err)

	sink := &recordingSink{}
	mailer := &recordingMailer{}
	s, err := NewSessionService(quiz, questions, sessions, users, cache, sink, mailer, SessionConfig{
		MaxAttempts:      10,
		QuestionsPerQuiz: 10,
		TimeLimit:        3 * time.Minute,
		Project:          "quiz-api",
	})
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.now

	return &sessionFixture{
		service:   s,
		subjects:  subjects,
		questions: questions,
		sessions:  sessions,
		cache:     cache,
		sink:      sink,
		mailer:    mailer,
		clock:     clock,
	}
}

// startWithQuestions создает сессию и выдает вопросы
func (f *sessionFixture) startWithQuestions(t *testing.T) (*entity.QuizSession, []entity.Question) {
	t.Helper()
	ctx := context.Background()
	session, err := f.service.Start(ctx, testUserID, "Math")
	require.NoError(t, err)
	questions, err := f.service.AssignQuestions(ctx, testUserID, session.ID, "Math")
	require.NoError(t, err)
	return session, questions
}

// ============================================================================
// Тесты
// ============================================================================

func TestSessionService_Start(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, testUserID, "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.service.Start(ctx, testUserID, "Physics")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	session, err := f.service.Start(ctx, testUserID, "Math")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionActive, session.State())
	assert.Equal(t, 0, session.Attempts)
	assert.Equal(t, 0, session.Score)
	assert.Empty(t, session.Questions)
	assert.Equal(t, f.clock.t, session.StartTime)
}

func TestSessionService_AssignQuestions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	require.Len(t, questions, 10)
	seen := map[uint]bool{}
	for _, q := range questions {
		assert.False(t, seen[q.ID], "question %d assigned twice", q.ID)
		seen[q.ID] = true
		assert.Equal(t, uint(1), q.SubjectID)
	}

	stored, err := f.sessions.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Questions, 10)
	for _, q := range questions {
		assert.True(t, stored.Questions.Contains(q.ID))
	}

	_, err = f.service.AssignQuestions(ctx, testUserID+1, session.ID, "Math")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.AssignQuestions(ctx, testUserID, 999, "Math")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.AssignQuestions(ctx, testUserID, session.ID, "Physics")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_AssignQuestions_FewerThanLimit(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, err := f.service.Start(ctx, testUserID, "History")
	require.NoError(t, err)

	questions, err := f.service.AssignQuestions(ctx, testUserID, session.ID, "History")
	require.NoError(t, err)
	assert.Len(t, questions, 1)
}

func TestSessionService_ShuffleKeepsInput(t *testing.T) {
	f := newSessionFixture(t)
	in := []entity.Question{{ID: 1}, {ID: 2}, {ID: 3}}
	f.service.intn = func(n int) int { return 0 }

	out := f.service.shuffleWithLimit(in, 2)

	assert.Len(t, out, 2)
	assert.Equal(t, uint(1), in[0].ID)
	assert.Equal(t, uint(2), out[0].ID)
}

func TestSessionService_SubmitAnswer_Grades(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	res, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.False(t, res.Finished)

	res, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[1].ID, "C")
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	assert.Equal(t, 2, stored.Attempts)
	assert.Equal(t, 1, stored.Score)
	assert.Equal(t, 2, f.sessions.answersFor(session.ID))

	// ошибка канала уведомлений не влияет на результат
	require.Len(t, f.sink.snapshots, 2)
	last := f.sink.snapshots[1]
	assert.Equal(t, "player@example.com", last.UserEmail)
	assert.Equal(t, "Math", last.Subject)
	assert.Equal(t, "quiz-api", last.Project)
	assert.Equal(t, 1, last.Score)
	assert.Equal(t, 2, last.Attempts)

	// блокировка снята
	assert.Empty(t, f.cache.values)
}

func TestSessionService_SubmitAnswer_Rejections(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	_, err := f.service.SubmitAnswer(ctx, testUserID, 999, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.SubmitAnswer(ctx, testUserID+1, session.ID, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, 16, "A")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuestion)

	_, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "E")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)
	_, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "B")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	assert.Equal(t, 1, stored.Attempts)
}

func TestSessionService_SubmitAnswer_MissingQuestionRecord(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	f.questions.mu.Lock()
	delete(f.questions.questions, questions[0].ID)
	f.questions.mu.Unlock()

	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_SubmitAnswer_AttemptCap(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	for i := 0; i < 10; i++ {
		_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[i].ID, "A")
		require.NoError(t, err)
	}

	res, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)
	assert.True(t, res.Finished)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	assert.True(t, stored.Completed)
	require.NotNil(t, stored.EndTime)
	assert.Equal(t, 10, stored.Attempts)
	assert.Equal(t, 10, f.sessions.answersFor(session.ID))
}

func TestSessionService_SubmitAnswer_TimeLimitCommitsCompletion(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)

	f.clock.advance(3*time.Minute + time.Second)
	_, err = f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[1].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrTimeLimitExceeded)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	assert.True(t, stored.Completed)
	assert.Equal(t, 0, stored.Score)
	require.NotNil(t, stored.EndTime)
	assert.Equal(t, f.clock.t, *stored.EndTime)
	assert.Equal(t, 1, f.sessions.answersFor(session.ID))
}

func TestSessionService_SubmitAnswer_AnswerKeptAcrossSessions(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.service.intn = func(n int) int { return n - 1 }

	first, questions := f.startWithQuestions(t)
	_, err := f.service.SubmitAnswer(ctx, testUserID, first.ID, questions[0].ID, "A")
	require.NoError(t, err)

	f.clock.advance(4 * time.Minute)
	_, err = f.service.SubmitAnswer(ctx, testUserID, first.ID, questions[1].ID, "A")
	require.ErrorIs(t, err, apperrors.ErrTimeLimitExceeded)

	second, again := f.startWithQuestions(t)
	require.Equal(t, questions[0].ID, again[0].ID)

	_, err = f.service.SubmitAnswer(ctx, testUserID, second.ID, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateAnswer)
	assert.Equal(t, 1, f.sessions.answersFor(first.ID))
	assert.Equal(t, 0, f.sessions.answersFor(second.ID))
}

func TestSessionService_SubmitAnswer_ExactDeadlineStillAccepted(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	f.clock.advance(3 * time.Minute)
	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	assert.NoError(t, err)
}

func TestSessionService_SubmitAnswer_CapCheckedBeforeDeadline(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	for i := 0; i < 10; i++ {
		_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[i].ID, "A")
		require.NoError(t, err)
	}
	f.clock.advance(10 * time.Minute)

	res, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)
	assert.True(t, res.Finished)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	assert.Equal(t, 10, stored.Score)
}

func TestSessionService_SubmitAnswer_AlreadyCompleted(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	stored, _ := f.sessions.GetByID(ctx, session.ID)
	stored.Complete(f.clock.t)
	require.NoError(t, f.sessions.Update(ctx, stored))

	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCompleted)
}

func TestSessionService_SubmitAnswer_SessionBusy(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	f.cache.values[fmt.Sprintf("quiz:session:%d:lock", session.ID)] = "other"

	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "other", f.cache.values[fmt.Sprintf("quiz:session:%d:lock", session.ID)])
}

func TestSessionService_SubmitAnswer_CacheDownFallsBackToRowLock(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)
	f.cache.err = errors.New("redis down")

	res, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
}

func TestSessionService_SubmitAnswer_ConcurrentSameQuestion(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, apperrors.ErrConflict) || errors.Is(err, apperrors.ErrDuplicateAnswer), err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.sessions.answersFor(session.ID))
}

func TestSessionService_EmailResult(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	session, questions := f.startWithQuestions(t)
	_, err := f.service.SubmitAnswer(ctx, testUserID, session.ID, questions[0].ID, "A")
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.EmailResult(ctx, testUserID, session.ID, "bad"), apperrors.ErrValidation)
	assert.ErrorIs(t, f.service.EmailResult(ctx, testUserID, 999, "me@example.com"), apperrors.ErrNotFound)
	assert.ErrorIs(t, f.service.EmailResult(ctx, testUserID+1, session.ID, "me@example.com"), apperrors.ErrNotFound)

	require.NoError(t, f.service.EmailResult(ctx, testUserID, session.ID, "me@example.com"))
	assert.Equal(t, "me@example.com", f.mailer.to)
	require.Len(t, f.mailer.snapshots, 1)
	assert.Equal(t, 1, f.mailer.snapshots[0].Score)
	assert.Equal(t, "Math", f.mailer.snapshots[0].Subject)

	f.mailer.err = errors.New("provider rejected")
	err = f.service.EmailResult(ctx, testUserID, session.ID, "me@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrValidation)
}
