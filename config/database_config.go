package config

import (
	"context"
	"fmt"
	"time"

	"fund-directory/internal/migrations"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

type Database struct {
	*sqlx.DB
}

// NewDatabaseConnection : подключается к БД с ограниченным числом попыток
func NewDatabaseConnection(dbDriver string, cfg *DatabaseConfig) (*Database, error) {
	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}
	delay := parseDurationOr(cfg.RetryDelay, 2*time.Second)

	var (
		database *sqlx.DB
		err      error
	)
	for attempt := 1; attempt <= retries; attempt++ {
		database, err = sqlx.Connect(dbDriver, cfg.DSN)
		if err == nil {
			break
		}
		log.WithFields(log.Fields{
			"attempt": attempt,
			"retries": retries,
		}).Warnf("не удалось подключиться к БД: %v", err)
		if attempt < retries {
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД после %d попыток: %w", retries, err)
	}

	if cfg.MaxOpenConns > 0 {
		database.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		database.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	database.SetConnMaxLifetime(parseDurationOr(cfg.ConnMaxLifetime, 5*time.Minute))

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("ошибка пинга БД: %w", err)
	}

	log.Info("подключение к БД успешно выполнено")
	return &Database{
		database,
	}, nil
}

// RunMigrations : применяет встроенные миграции (таблица refresh_tokens)
func (db *Database) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("ошибка выбора диалекта goose: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB.DB, "."); err != nil {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}
	return nil
}

func (db *Database) Close() error {
	err := db.DB.Close()
	if err != nil {
		return fmt.Errorf("ошибка закрытия соединения с БД: %w", err)
	}

	return nil
}
