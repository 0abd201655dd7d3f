package storage

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/physbridge/internal/config"
	"github.com/OCAP2/physbridge/internal/database"
	"github.com/OCAP2/physbridge/internal/storage/memory"
	"github.com/OCAP2/physbridge/internal/storage/postgres"
	sqlite "github.com/OCAP2/physbridge/internal/storage/sqlite"
	"github.com/OCAP2/physbridge/internal/storage/websocket"
)

// NewBackend creates a recorder backend based on configuration.
func NewBackend(cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlite.New(cfg.SQLite, logger), nil
	case "postgres":
		return postgres.New(database.PostgresDSN(cfg.DB), logger), nil
	case "websocket":
		return websocket.New(cfg.WebSocket, logger), nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
