// Package database opens the engine's gorm connection and migrates its tables.
package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"reward-engine/logger"
	"reward-engine/models"
)

// Pool limits for the postgres connection.
const (
	MaxOpenConns    = 25
	MaxIdleConns    = 10
	ConnMaxLifetime = 30 * time.Minute
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(dsn string, log *logger.Logger) (*PostgresService, error) {
	log = logger.OrNop(log)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)
	sqlDB.SetConnMaxLifetime(ConnMaxLifetime)

	return &PostgresService{db: db, log: log.With("service", "PostgresService")}, nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrate(s.db, s.log)
}

// AutoMigrate creates or updates every engine table on db.
func AutoMigrate(db *gorm.DB, log *logger.Logger) error {
	log = logger.OrNop(log)
	log.Info("Auto migrating tables...")
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Error("Auto migration failed", "error", err)
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("Auto migration complete")
	return nil
}
