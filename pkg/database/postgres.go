package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultMigrationsSource указывает на папку migrations в рабочем каталоге
const DefaultMigrationsSource = "file://migrations"

const uniqueViolationCode = "23505"

// NewPostgresDB создает новое подключение к PostgreSQL
func NewPostgresDB(dsn string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// NewMigrator создает экземпляр migrate поверх открытого подключения gorm
func NewMigrator(db *gorm.DB, source string) (*migrateV4.Migrate, error) {
	if source == "" {
		source = DefaultMigrationsSource
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить *sql.DB из *gorm.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось проверить подключение к БД перед миграцией: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}
	m, err := migrateV4.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}
	return m, nil
}

// MigrateDB применяет все SQL-миграции "вверх"
func MigrateDB(db *gorm.DB, source string) error {
	log.Println("[Database] Применяем миграции 'up'...")

	m, err := NewMigrator(db, source)
	if err != nil {
		return err
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrateV4.ErrNoChange):
		log.Println("[Database] Изменений в миграциях не найдено, база данных уже актуальна.")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	default:
		log.Println("[Database] Миграции успешно применены.")
	}
	return nil
}

// IsUniqueViolation распознает нарушение уникального индекса от pgx и lib/pq
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationCode
	}
	return false
}
