package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/shiori/internal/config"
)

// Open returns the storage backend selected by cfg.
func Open(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite, "":
		return NewSQLiteStorage(cfg.DatabasePath)
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres driver requires database_url or %s", config.DatabaseURLEnv)
		}
		return NewPostgresStorage(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}
}
