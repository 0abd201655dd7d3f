// Package sqlitestorage records into an in-memory SQLite database and
// periodically dumps it to disk with VACUUM INTO.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/internal/database"
	gormstorage "github.com/OCAP2/physbridge/internal/storage/gorm"
)

// Backend wraps the gorm backend. The only SQLite-specific concerns are
// creating the in-memory DB and the dump loop.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func New(cfg config.SQLiteConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, log: logger}
}

// Init opens the database, migrates it and starts the dump goroutine.
func (b *Backend) Init() error {
	db, err := database.OpenSQLite("")
	if err != nil {
		return fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.log.Info("Using local SQLite DB in memory with periodic disk dump", "path", b.cfg.DumpPath)

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	} else {
		close(b.done)
	}
	return nil
}

// EndSession flushes the session and dumps it right away.
func (b *Backend) EndSession() error {
	if b.Backend == nil {
		return nil
	}
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine, closes the gorm backend and writes a
// final dump.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes the current database to DumpPath. Without a path it does
// nothing.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.DB(), b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "duration", time.Since(start))
	return nil
}

func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Backend.Flush(); err != nil {
				b.log.Error("Error flushing before dump", "error", err)
			}
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
