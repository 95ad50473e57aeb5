package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/quiz-api/internal/domain/entity"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/middleware"
	"github.com/yourusername/quiz-api/internal/notifier"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	redisRepo "github.com/yourusername/quiz-api/internal/repository/redis"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/pkg/auth"
	"github.com/yourusername/quiz-api/pkg/auth/manager"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- in-memory репозитории ---

type memUsers struct {
	mu     sync.Mutex
	byID   map[uint]*entity.User
	nextID uint
}

func (r *memUsers) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	if err := user.BeforeSave(nil); err != nil {
		return err
	}
	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.byID[user.ID] = &stored
	return nil
}

func (r *memUsers) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUsers) MarkVerified(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]*entity.RefreshToken
}

func (r *memRefreshTokens) Create(ctx context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.JTI] = token
	return nil
}

func (r *memRefreshTokens) GetByJTI(ctx context.Context, jti string) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[jti]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

func (r *memRefreshTokens) Blacklist(ctx context.Context, jti string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[jti]
	if !ok || t.BlacklistedAt != nil {
		return apperrors.ErrNotFound
	}
	t.BlacklistedAt = &at
	return nil
}

func (r *memRefreshTokens) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type memAccessBlacklist struct {
	mu     sync.Mutex
	tokens map[string]bool
}

func (r *memAccessBlacklist) Add(ctx context.Context, token *entity.BlacklistedAccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tokens[token.Token] {
		return apperrors.ErrConflict
	}
	r.tokens[token.Token] = true
	return nil
}

func (r *memAccessBlacklist) Exists(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[token], nil
}

type memSubjects struct {
	mu     sync.Mutex
	byID   map[uint]*entity.Subject
	nextID uint
}

func (r *memSubjects) List(ctx context.Context) ([]entity.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.Subject, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memSubjects) GetByName(ctx context.Context, name string) (*entity.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memSubjects) GetOrCreate(ctx context.Context, name string) (*entity.Subject, error) {
	if s, err := r.GetByName(ctx, name); err == nil {
		return s, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := &entity.Subject{ID: r.nextID, Name: name}
	r.byID[s.ID] = s
	cp := *s
	return &cp, nil
}

func (r *memSubjects) byIDCopy(id uint) *entity.Subject {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

type memQuestions struct {
	mu     sync.Mutex
	byID   map[uint]entity.Question
	nextID uint
}

func (r *memQuestions) GetByID(ctx context.Context, id uint) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &q, nil
}

func (r *memQuestions) ListBySubject(ctx context.Context, subjectID uint) ([]entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Question
	for _, q := range r.byID {
		if q.SubjectID == subjectID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memQuestions) CreateBatch(ctx context.Context, questions []entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range questions {
		r.nextID++
		questions[i].ID = r.nextID
		r.byID[r.nextID] = questions[i]
	}
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	subjects *memSubjects
	byID     map[uint]entity.QuizSession
	answers  []entity.Answer
	nextID   uint
}

func (r *memSessions) Create(ctx context.Context, session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	stored := *session
	stored.Subject = nil
	r.byID[session.ID] = stored
	return nil
}

func (r *memSessions) GetByID(ctx context.Context, id uint) (*entity.QuizSession, error) {
	s, err := r.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Subject = r.subjects.byIDCopy(s.SubjectID)
	return s, nil
}

func (r *memSessions) GetForUpdate(ctx context.Context, id uint) (*entity.QuizSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	s.Questions = append(entity.UintArray{}, s.Questions...)
	return &s, nil
}

func (r *memSessions) Update(ctx context.Context, session *entity.QuizSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *session
	stored.Subject = nil
	r.byID[session.ID] = stored
	return nil
}

func (r *memSessions) SetQuestions(ctx context.Context, sessionID uint, questionIDs entity.UintArray) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	s.Questions = append(entity.UintArray{}, questionIDs...)
	r.byID[sessionID] = s
	return nil
}

func (r *memSessions) AnswerExists(ctx context.Context, userID, questionID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.UserID == userID && a.QuestionID == questionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessions) CreateAnswer(ctx context.Context, answer *entity.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.answers {
		if a.UserID == answer.UserID && a.QuestionID == answer.QuestionID {
			return apperrors.ErrConflict
		}
	}
	r.answers = append(r.answers, *answer)
	return nil
}

func (r *memSessions) WithTx(ctx context.Context, fn func(repo repository.SessionRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// --- отправители писем ---

type capturedCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *capturedCodes) SendVerificationCode(ctx context.Context, toEmail, code, idempotencyKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[toEmail] = code
	return nil
}

func (s *capturedCodes) get(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[email]
}

type capturedSummaries struct {
	mu   sync.Mutex
	sent map[string]notifier.SessionSnapshot
}

func (s *capturedSummaries) SendSessionSummary(ctx context.Context, toEmail string, snapshot notifier.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[toEmail] = snapshot
	return nil
}

// --- тестовое приложение ---

type testApp struct {
	router    *gin.Engine
	users     *memUsers
	codes     *capturedCodes
	summaries *capturedSummaries
	subjects  *memSubjects
	questions *memQuestions
	sessions  *memSessions
	quiz      *service.QuizService
	mr        *miniredis.Miniredis
}

type appOption func(*Routes, redis.UniversalClient)

func withRateLimit(perMinute int) appOption {
	return func(r *Routes, client redis.UniversalClient) {
		r.RateLimiter = middleware.NewRateLimiter(client)
		r.AuthRatePerMinute = perMinute
	}
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	app := &testApp{
		users:     &memUsers{byID: map[uint]*entity.User{}},
		codes:     &capturedCodes{codes: map[string]string{}},
		summaries: &capturedSummaries{sent: map[string]notifier.SessionSnapshot{}},
		subjects:  &memSubjects{byID: map[uint]*entity.Subject{}},
		questions: &memQuestions{byID: map[uint]entity.Question{}},
		mr:        mr,
	}
	app.sessions = &memSessions{subjects: app.subjects, byID: map[uint]entity.QuizSession{}}

	verificationRepo, err := redisRepo.NewVerificationRepo(client)
	require.NoError(t, err)
	cacheRepo, err := redisRepo.NewCacheRepo(client)
	require.NoError(t, err)

	jwtService, err := auth.NewJWTService("handler-secret", "quiz-api", 5*time.Minute, time.Hour)
	require.NoError(t, err)
	tokenManager, err := manager.NewTokenManager(jwtService,
		&memRefreshTokens{tokens: map[string]*entity.RefreshToken{}},
		&memAccessBlacklist{tokens: map[string]bool{}})
	require.NoError(t, err)

	verification, err := service.NewVerificationService(verificationRepo, 10*time.Minute, 3, 30*time.Minute)
	require.NoError(t, err)
	authService, err := service.NewAuthService(app.users, verification, tokenManager, app.codes, true)
	require.NoError(t, err)

	app.quiz, err = service.NewQuizService(app.subjects, app.questions, cacheRepo, time.Minute)
	require.NoError(t, err)
	sessionService, err := service.NewSessionService(app.quiz, app.questions, app.sessions, app.users, cacheRepo,
		nil, app.summaries, service.SessionConfig{Project: "quiz-api"})
	require.NoError(t, err)

	routes := Routes{
		Auth:           NewAuthHandler(authService),
		Quiz:           NewQuizHandler(app.quiz, sessionService),
		AuthMiddleware: middleware.NewAuthMiddleware(tokenManager),
	}
	for _, opt := range opts {
		opt(&routes, client)
	}

	app.router = gin.New()
	routes.Register(app.router)
	return app
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// registerAndLogin создает подтвержденного пользователя и возвращает access и refresh токены
func (a *testApp) registerAndLogin(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/auth/register", gin.H{"email": email, "password": "Password1", "password_confirm": "Password1"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/auth/verify-register", gin.H{"email": email, "code": a.codes.get(email)}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/auth/login", gin.H{"email": email, "password": "Password1"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	return body["access"].(string), body["refresh"].(string)
}
