package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLite applies the embedded schema to the SQLite database at path and opens it.
//
// The handle is limited to one connection: SQLite has a single writer, and serializing at the pool
// keeps conditional updates from failing with SQLITE_BUSY under load.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := MigrateSQLite(path, logger); err != nil {
		return nil, err
	}

	dsn := "file:" + filepath.ToSlash(filepath.Clean(path)) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	logger.Info("SQLite database opened", zap.String("path", path))
	return db, nil
}
