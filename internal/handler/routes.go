package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/internal/middleware"
)

// Routes - зависимости для регистрации маршрутов
type Routes struct {
	Auth              *AuthHandler
	Quiz              *QuizHandler
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter // nil - лимиты отключены
	AuthRatePerMinute int
}

// Register вешает все маршруты на роутер. Каждый путь доступен со слешем на конце и без него.
func (r Routes) Register(router *gin.Engine) {
	router.RedirectTrailingSlash = false

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	if r.RateLimiter != nil {
		authGroup.Use(r.RateLimiter.LimitByIP(middleware.AuthRateLimitConfig(r.AuthRatePerMinute)))
	}
	{
		post(authGroup, "/register", r.strict(r.Auth.Register)...)
		post(authGroup, "/verify-register", r.strict(r.Auth.VerifyRegister)...)
		post(authGroup, "/resend-code", r.strict(r.Auth.ResendCode)...)
		post(authGroup, "/login", r.strict(r.Auth.Login)...)
		post(authGroup, "/token/refresh", r.Auth.RefreshToken)

		authed := authGroup.Group("", r.AuthMiddleware.RequireAuth())
		post(authed, "/logout", r.Auth.Logout)
		get(authed, "/me", r.Auth.Me)
	}

	quizzes := router.Group("/quizzes", r.AuthMiddleware.RequireAuth())
	{
		get(quizzes, "/subjects", r.Quiz.ListSubjects)
		post(quizzes, "/subjects/questions", r.Quiz.AssignQuestions)
		post(quizzes, "/questions/answers/start", r.Quiz.StartSession)
		post(quizzes, "/questions/answers", r.Quiz.SubmitAnswer)
		get(quizzes, "/sessions/:id", middleware.ExtractUintParam("id", ContextSessionID), r.Quiz.GetSession)
		post(quizzes, "/emails", r.Quiz.EmailResult)
	}
}

// strict добавляет строгий лимит перед обработчиком
func (r Routes) strict(h gin.HandlerFunc) []gin.HandlerFunc {
	if r.RateLimiter == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{r.RateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), h}
}

func post(g *gin.RouterGroup, path string, handlers ...gin.HandlerFunc) {
	path = strings.TrimSuffix(path, "/")
	g.POST(path, handlers...)
	g.POST(path+"/", handlers...)
}

func get(g *gin.RouterGroup, path string, handlers ...gin.HandlerFunc) {
	path = strings.TrimSuffix(path, "/")
	g.GET(path, handlers...)
	g.GET(path+"/", handlers...)
}
