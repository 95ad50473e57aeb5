package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/quiz-api/internal/config"
	"github.com/yourusername/quiz-api/internal/domain/repository"
	"github.com/yourusername/quiz-api/internal/importer"
	pgRepo "github.com/yourusername/quiz-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/quiz-api/internal/repository/redis"
	"github.com/yourusername/quiz-api/internal/service"
	"github.com/yourusername/quiz-api/pkg/database"
	"github.com/yourusername/quiz-api/pkg/logger"
)

// Импорт вопросов из xlsx:
//
//	import-questions -file questions.xlsx [-sheet Sheet1]
//
// Заголовок: subject, question, option_a..option_d (или A..D), correct_answer (или correct; A-D или 1-4), image.
// Строки проверяются до записи: одна неверная строка отменяет весь импорт.
func main() {
	file := flag.String("file", "", "путь к xlsx-файлу")
	sheet := flag.String("sheet", "", "имя листа (по умолчанию первый)")
	flag.Parse()

	logger.Setup(gin.Mode())

	if *file == "" {
		log.Fatal("-file is required")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	rows, err := importer.ReadQuestions(f, *sheet)
	if err != nil {
		log.Fatalf("Failed to read questions: %v", err)
	}
	log.Printf("Прочитано строк с вопросами: %d", len(rows))

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), false)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// кеш тем нужен только для сброса после импорта; без Redis импорт все равно выполняется
	var cacheRepo repository.CacheRepository
	if redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis); err != nil {
		log.Printf("Warning: Redis unavailable, subjects cache will expire by TTL: %v", err)
	} else {
		defer redisClient.Close()
		if repo, err := redisRepo.NewCacheRepo(redisClient); err == nil {
			cacheRepo = repo
		}
	}

	quizService, err := service.NewQuizService(pgRepo.NewSubjectRepo(db), pgRepo.NewQuestionRepo(db), cacheRepo, cfg.Quiz.SubjectsCacheTTL)
	if err != nil {
		log.Fatalf("Failed to initialize QuizService: %v", err)
	}

	n, err := quizService.ImportQuestions(ctx, rows)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	log.Printf("Импорт завершен, добавлено вопросов: %d", n)
}
