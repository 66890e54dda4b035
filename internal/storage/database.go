// Package storage provides gorm-backed persistence for challenges,
// trades and risk assessments. It supports postgres in production and
// sqlite for development and tests.
package storage

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrVersionConflict reports an optimistic-lock failure on save. The
// caller retries the whole transaction with back-off.
var ErrVersionConflict = errors.New("challenge version conflict")

// Database wraps the gorm connection
type Database struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens the database and migrates the schema. DSN is either a
// postgres:// URL or a sqlite file path.
func New(zlog *zap.Logger, dsn string, logQueries bool) (*Database, error) {
	logLevel := logger.Silent
	if logQueries {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var db *gorm.DB
	var err error
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(
		&ChallengeRecord{},
		&TradeRecord{},
		&RiskAssessmentRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	zlog.Info("database ready", zap.String("dialect", db.Dialector.Name()))

	return &Database{db: db, logger: zlog.Named("storage")}, nil
}

// DB exposes the underlying gorm handle for transaction management.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Transaction runs fn inside one database transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.db.Transaction(fn)
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
