package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"caisse-system/internal/database/models"
)

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		LogLevel:        logger.Warn,
	}
}

// NewConnection opens the production PostgreSQL store.
func NewConnection(dsn string, opts Options) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DSN is required")
	}
	return open(postgres.Open(dsn), opts)
}

// NewSQLiteConnection opens a SQLite store, used for local runs and tests.
// SQLite serialises writers, so the pool is pinned to one connection.
func NewSQLiteConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("DSN is required")
	}
	opts := DefaultOptions()
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	opts.LogLevel = logger.Silent
	return open(sqlite.Open(dsn), opts)
}

func Open(driver, dsn string, opts Options) (*gorm.DB, error) {
	switch driver {
	case "postgres", "":
		return NewConnection(dsn, opts)
	case "sqlite":
		return NewSQLiteConnection(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func open(dialector gorm.Dialector, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Category{},
		&models.Product{},
		&models.StockMovement{},
		&models.Sale{},
		&models.SaleLineItem{},
		&models.Payment{},
		&models.Setting{},
	)
}
