package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Quiz     QuizConfig
	Email    EmailConfig
	Telegram TelegramConfig
	CORS     CORSConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: "single", "sentinel" или "cluster". По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: список адресов Redis (хост:порт). Для 'single' используется первый.
	Addrs []string `mapstructure:"addrs"`

	// Addr используется, если Addrs пустой.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName нужен только для режима "sentinel"
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig содержит настройки подписи и времени жизни токенов
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessLifetime  time.Duration `mapstructure:"access_lifetime"`
	RefreshLifetime time.Duration `mapstructure:"refresh_lifetime"`
}

// AuthConfig содержит настройки подтверждения email
type AuthConfig struct {
	VerificationTTL     time.Duration `mapstructure:"verification_ttl"`
	MaxCodeAttempts     int           `mapstructure:"max_code_attempts"`
	LockoutDuration     time.Duration `mapstructure:"lockout_duration"`
	RateLimitPerMinute  int           `mapstructure:"rate_limit_per_minute"`
	VerificationEnabled bool          `mapstructure:"verification_enabled"`
}

// QuizConfig содержит лимиты сессии викторины
type QuizConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	QuestionsPerQuiz int           `mapstructure:"questions_per_quiz"`
	TimeLimit        time.Duration `mapstructure:"time_limit"`
	SubjectsCacheTTL time.Duration `mapstructure:"subjects_cache_ttl"`
	SubmitLockTTL    time.Duration `mapstructure:"submit_lock_ttl"`
}

// EmailConfig содержит настройки отправки писем через Resend
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// TelegramConfig содержит настройки уведомлений о результатах
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BotToken    string `mapstructure:"bot_token"`
	ChatID      int64  `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
	ProjectName string `mapstructure:"project_name"`
}

// CORSConfig содержит список разрешенных origin
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// PostgresURL формирует URL для golang-migrate
func (d *DatabaseConfig) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")

	vip.SetDefault("jwt.issuer", "quiz-api")
	vip.SetDefault("jwt.access_lifetime", 5*time.Minute)
	vip.SetDefault("jwt.refresh_lifetime", 24*time.Hour)

	vip.SetDefault("auth.verification_ttl", 10*time.Minute)
	vip.SetDefault("auth.max_code_attempts", 3)
	vip.SetDefault("auth.lockout_duration", 30*time.Minute)
	vip.SetDefault("auth.rate_limit_per_minute", 10)
	vip.SetDefault("auth.verification_enabled", true)

	vip.SetDefault("quiz.max_attempts", 10)
	vip.SetDefault("quiz.questions_per_quiz", 10)
	vip.SetDefault("quiz.time_limit", 3*time.Minute)
	vip.SetDefault("quiz.subjects_cache_ttl", 5*time.Minute)
	vip.SetDefault("quiz.submit_lock_ttl", 5*time.Second)

	vip.SetDefault("telegram.project_name", "quiz-api")

	vip.SetDefault("cors.allow_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	setDefaults(vip)

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для секции JWT
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.access_lifetime", "JWT_ACCESS_LIFETIME")
	vip.BindEnv("jwt.refresh_lifetime", "JWT_REFRESH_LIFETIME")

	// Привязка для секции Auth
	vip.BindEnv("auth.verification_ttl", "AUTH_VERIFICATION_TTL")
	vip.BindEnv("auth.max_code_attempts", "AUTH_MAX_CODE_ATTEMPTS")
	vip.BindEnv("auth.lockout_duration", "AUTH_LOCKOUT_DURATION")
	vip.BindEnv("auth.verification_enabled", "AUTH_VERIFICATION_ENABLED")

	// Привязка для секции Quiz
	vip.BindEnv("quiz.max_attempts", "QUIZ_MAX_ATTEMPTS")
	vip.BindEnv("quiz.questions_per_quiz", "QUIZ_QUESTIONS_PER_QUIZ")
	vip.BindEnv("quiz.time_limit", "QUIZ_TIME_LIMIT")

	// Email и Telegram
	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("telegram.enabled", "TELEGRAM_ENABLED")
	vip.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	vip.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
	vip.BindEnv("telegram.project_name", "PROJECT_NAME")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database: %s@%s:%s/%s (sslmode=%s)", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, cfg.Database.SSLMode)
		log.Printf("Redis: mode=%s addr=%s", cfg.Redis.Mode, cfg.Redis.Addr)
		log.Printf("JWT: access=%v refresh=%v secret set=%t", cfg.JWT.AccessLifetime, cfg.JWT.RefreshLifetime, cfg.JWT.Secret != "")
		log.Printf("Quiz: max_attempts=%d questions=%d time_limit=%v", cfg.Quiz.MaxAttempts, cfg.Quiz.QuestionsPerQuiz, cfg.Quiz.TimeLimit)
		log.Printf("Email enabled: %t, Telegram enabled: %t", cfg.Email.Enabled, cfg.Telegram.Enabled)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required in config (check JWT_SECRET env var)")
	}
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if c.Email.Enabled && (c.Email.ResendAPIKey == "" || c.Email.From == "") {
		return fmt.Errorf("email is enabled but RESEND_API_KEY or EMAIL_FROM is missing")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram is enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is missing")
	}
	if c.Quiz.MaxAttempts <= 0 || c.Quiz.QuestionsPerQuiz <= 0 || c.Quiz.TimeLimit <= 0 {
		return fmt.Errorf("quiz limits must be positive")
	}
	return nil
}
