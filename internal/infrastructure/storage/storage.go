package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"SOTAWatch/internal/config"
	"SOTAWatch/internal/ports"
)

const tableName = "sota_items"

var recordColumns = []string{"id", "title", "url", "summary", "score", "tags", "source", "publish_date", "created_at"}

// Store is an item repository that can create its own schema.
type Store interface {
	ports.ItemRepository
	Migrate(ctx context.Context, dimensions int) error
	Close() error
}

// Open connects to the configured database driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewPostgresRepository(db), nil
	case "", "sqlite":
		return OpenSQLite(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func closeRows(rows *sql.Rows, err error) error {
	if rowsErr := rows.Err(); rowsErr != nil && err == nil {
		err = fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close rows: %w", closeErr)
	}
	return err
}
