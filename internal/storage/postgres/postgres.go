// Package postgres records sessions into PostgreSQL through the queued
// gorm backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/physbridge/internal/database"
	gormstorage "github.com/OCAP2/physbridge/internal/storage/gorm"
	"gorm.io/gorm"
)

// Backend wraps the gorm backend. It connects lazily in Init.
type Backend struct {
	*gormstorage.Backend
	dsn string
	db  *gorm.DB
	log *slog.Logger
}

func New(dsn string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{dsn: dsn, log: logger}
}

// NewWithDB uses an existing connection instead of dialing dsn.
func NewWithDB(db *gorm.DB, logger *slog.Logger) *Backend {
	b := New("", logger)
	b.db = db
	return b
}

// Init connects, validates the connection and starts the writer.
func (b *Backend) Init() error {
	if b.db == nil {
		db, err := database.OpenPostgres(b.dsn)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.db = db
		b.log.Info("Connected to database")
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.db, Logger: b.log})
	return b.Backend.Init()
}

func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
