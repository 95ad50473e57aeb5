package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/internal/handler/dto"
	"github.com/yourusername/quiz-api/internal/middleware"
	apperrors "github.com/yourusername/quiz-api/internal/pkg/errors"
	"github.com/yourusername/quiz-api/internal/service"
)

// ContextSessionID - ключ контекста для :id сессии
const ContextSessionID = "sessionID"

// QuizHandler обрабатывает запросы, связанные с викторинами
type QuizHandler struct {
	quizService    *service.QuizService
	sessionService *service.SessionService
}

// NewQuizHandler создает новый обработчик викторин
func NewQuizHandler(quizService *service.QuizService, sessionService *service.SessionService) *QuizHandler {
	return &QuizHandler{
		quizService:    quizService,
		sessionService: sessionService,
	}
}

// ListSubjects возвращает все темы
func (h *QuizHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.quizService.ListSubjects(c.Request.Context())
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListSubjectResponse(subjects))
}

// AssignQuestions выдает случайные вопросы темы и закрепляет их за сессией
func (h *QuizHandler) AssignQuestions(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.AssignQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	subject := req.Subject()
	if subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject field is required", "error_type": "validation_error"})
		return
	}
	if req.SessionID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required", "error_type": "validation_error"})
		return
	}

	questions, err := h.sessionService.AssignQuestions(c.Request.Context(), userID, req.SessionID, subject)
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListQuestionResponse(questions))
}

// StartSession открывает новую сессию по теме
func (h *QuizHandler) StartSession(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if strings.TrimSpace(req.SubjectName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject field is required", "error_type": "validation_error"})
		return
	}

	session, err := h.sessionService.Start(c.Request.Context(), userID, req.SubjectName)
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quiz started successfully", "session_id": session.ID})
}

// SubmitAnswer принимает ответ на вопрос сессии
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.sessionService.SubmitAnswer(c.Request.Context(), userID, req.SessionID, req.QuestionID, req.Answer)
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	if result.Finished {
		c.JSON(http.StatusOK, gin.H{"message": "You finished test"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_correct": result.IsCorrect})
}

// GetSession возвращает снимок сессии владельцу
func (h *QuizHandler) GetSession(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), userID, c.GetUint(ContextSessionID))
	if err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSessionResponse(session))
}

// EmailResult отправляет итоги сессии на email
func (h *QuizHandler) EmailResult(c *gin.Context) {
	userID, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req dto.EmailResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.sessionService.EmailResult(c.Request.Context(), userID, req.SessionID, req.Email); err != nil {
		respondError(c, "QuizHandler", err)
		return
	}
	log.Printf("[QuizHandler] Пользователь ID=%d запросил итоги сессии ID=%d на email", userID, req.SessionID)
	c.JSON(http.StatusOK, gin.H{"message": "Email sent!"})
}

func (h *QuizHandler) currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, "QuizHandler", apperrors.ErrUnauthorized)
		return 0, false
	}
	return userID, true
}
