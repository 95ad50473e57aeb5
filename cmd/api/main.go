package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/internal/config"
	"github.com/yourusername/quiz-api/internal/handler"
	"github.com/yourusername/quiz-api/internal/middleware"
	"github.com/yourusername/quiz-api/internal/notifier"
	pgRepo "github.com/yourusername/quiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-api/internal/repository/redis"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/pkg/auth"
	"github.com/yourusername/quiz-api/pkg/auth/manager"
	"github.com/yourusername/quiz-api/pkg/database"
	"github.com/yourusername/quiz-api/pkg/logger"
)

func main() {
	logger.Setup(gin.Mode())

	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}
	isProduction := gin.Mode() == gin.ReleaseMode

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), !isProduction)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db, os.Getenv("MIGRATIONS_SOURCE")); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Создаем контекст с отменой для фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	subjectRepo := pgRepo.NewSubjectRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	sessionRepo := pgRepo.NewSessionRepo(db)
	blacklistRepo := pgRepo.NewBlacklistedTokenRepo(db)
	refreshTokenRepo, err := pgRepo.NewRefreshTokenRepo(db)
	if err != nil {
		log.Printf("Failed to initialize RefreshTokenRepo: %v", err)
		os.Exit(1)
	}
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}
	verificationRepo, err := redisRepo.NewVerificationRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize VerificationRepo: %v", err)
		os.Exit(1)
	}

	// --- Токены ---
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessLifetime, cfg.JWT.RefreshLifetime)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}
	tokenManager, err := manager.NewTokenManager(jwtService, refreshTokenRepo, blacklistRepo)
	if err != nil {
		log.Printf("Failed to initialize TokenManager: %v", err)
		os.Exit(1)
	}

	// --- Уведомления ---
	project := cfg.Telegram.ProjectName
	var mailer interface {
		service.CodeSender
		service.SummarySender
	} = notifier.NoopMailer{}
	var channels []notifier.Notifier

	if cfg.Email.Enabled {
		emailNotifier, err := notifier.NewEmailNotifier(notifier.EmailConfig{
			APIKey:  cfg.Email.ResendAPIKey,
			From:    cfg.Email.From,
			Project: project,
			CodeTTL: cfg.Auth.VerificationTTL,
		})
		if err != nil {
			log.Printf("Failed to initialize EmailNotifier: %v", err)
			os.Exit(1)
		}
		// письма: код подтверждения и итоги по запросу (/quizzes/emails)
		mailer = emailNotifier
	} else {
		log.Println("Email disabled: письма только логируются")
	}

	if cfg.Telegram.Enabled {
		telegramNotifier, err := notifier.NewTelegramNotifier(notifier.TelegramConfig{
			BotToken:    cfg.Telegram.BotToken,
			ChatID:      cfg.Telegram.ChatID,
			APIEndpoint: cfg.Telegram.APIEndpoint,
			Project:     project,
		}, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			// без Telegram сервис продолжает работу
			log.Printf("Warning: Telegram notifier disabled: %v", err)
		} else {
			channels = append(channels, telegramNotifier)
		}
	}

	sessionSink := notifier.NewSessionSink(15*time.Second, nil, channels...)

	// --- Сервисы ---
	verificationService, err := service.NewVerificationService(verificationRepo, cfg.Auth.VerificationTTL, cfg.Auth.MaxCodeAttempts, cfg.Auth.LockoutDuration)
	if err != nil {
		log.Printf("Failed to initialize VerificationService: %v", err)
		os.Exit(1)
	}
	authService, err := service.NewAuthService(userRepo, verificationService, tokenManager, mailer, cfg.Auth.VerificationEnabled)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	quizService, err := service.NewQuizService(subjectRepo, questionRepo, cacheRepo, cfg.Quiz.SubjectsCacheTTL)
	if err != nil {
		log.Printf("Failed to initialize QuizService: %v", err)
		os.Exit(1)
	}
	sessionService, err := service.NewSessionService(quizService, questionRepo, sessionRepo, userRepo, cacheRepo, sessionSink, mailer, service.SessionConfig{
		MaxAttempts:      cfg.Quiz.MaxAttempts,
		QuestionsPerQuiz: cfg.Quiz.QuestionsPerQuiz,
		TimeLimit:        cfg.Quiz.TimeLimit,
		LockTTL:          cfg.Quiz.SubmitLockTTL,
		Project:          project,
	})
	if err != nil {
		log.Printf("Failed to initialize SessionService: %v", err)
		os.Exit(1)
	}

	// Инициализируем роутер Gin
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// В production не доверяем прокси-заголовкам (защита от подмены IP для rate limit)
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.Routes{
		Auth:              handler.NewAuthHandler(authService),
		Quiz:              handler.NewQuizHandler(quizService, sessionService),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenManager),
		RateLimiter:       middleware.NewRateLimiter(redisClient),
		AuthRatePerMinute: cfg.Auth.RateLimitPerMinute,
	}.Register(router)

	// Периодическая очистка истекших refresh-токенов
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := tokenManager.CleanupExpiredTokens(ctx); err != nil {
					log.Printf("Failed to cleanup expired tokens: %v", err)
				}
			}
		}
	}()

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exited properly")
}
