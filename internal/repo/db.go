// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, query tracing, and schema
// migrations.
package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-sufi-platform/internal/domain"
)

// Options selects and tunes the backing store.
type Options struct {
	// DatabaseURL, when it starts with postgres:// or postgresql://, selects
	// PostgreSQL. Anything else falls back to SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string
	// LogLevel follows LOG_LEVEL and is mapped to GORM's logger levels.
	LogLevel string
	// Tracing installs the OpenTelemetry GORM plugin.
	Tracing bool
}

// Open connects to PostgreSQL or SQLite depending on opts.DatabaseURL.
func Open(opts Options) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	if IsPostgresURL(opts.DatabaseURL) {
		db, err = OpenPostgres(opts.DatabaseURL, opts.LogLevel)
	} else {
		db, err = OpenSQLite(opts.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if opts.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// IsPostgresURL reports whether u points at a PostgreSQL server.
func IsPostgresURL(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{NowFunc: utcNow})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres connects to PostgreSQL, routes GORM logs through zerolog, and
// verifies the connection with a ping.
func OpenPostgres(dsn, logLevel string) (*gorm.DB, error) {
	gl := logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormLevel(logLevel),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl, NowFunc: utcNow})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	log.Info().Msg("database connection established")
	return db, nil
}

// Ping checks that the database answers within ctx.
func Ping(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("nil db")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Profile{},
		&domain.EmailVerification{},
		&domain.Content{},
		&domain.Comment{},
		&domain.Like{},
		&domain.Follow{},
		&domain.Notification{},
		&domain.Message{},
		&domain.Idempotency{},
	)
}

func utcNow() time.Time { return time.Now().UTC() }

// zerologWriter adapts the global zerolog logger to GORM's logger.Writer.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	log.Info().Str("component", "gorm").Msgf(format, args...)
}

// gormLevel maps LOG_LEVEL to a GORM log level; SQL statements are only
// logged at debug.
func gormLevel(lvl string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return logger.Info
	case "info", "":
		return logger.Warn
	case "warn", "warning":
		return logger.Error
	default:
		return logger.Silent
	}
}
