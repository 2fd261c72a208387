package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hrsync/internal/config"
	"hrsync/internal/hrsync"
)

// NewDatabaseFromConfig creates a database based on the database config type.
// In-memory databases are migrated immediately; file and server databases
// are migrated explicitly with `hrsync db migrate`.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig, clock hrsync.Clock) (*SQLDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, "hrsync.db"), clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	case "postgres":
		pool := PoolSettings{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime.Duration,
		}
		return NewPostgresDatabase(ctx, cfg.ConnectionString(), pool, clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
