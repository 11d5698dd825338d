package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed sqlite_migrations/*.sql
var sqliteMigrationsFS embed.FS

// Migrate applies the embedded PostgreSQL migrations (N_name.up.sql / N_name.down.sql).
func Migrate(dsn string, logger *zap.Logger) error {
	return runMigrations(migrationsFS, "migrations", dsn, logger)
}

// MigrateSQLite applies the embedded SQLite migrations to the database file at path.
func MigrateSQLite(path string, logger *zap.Logger) error {
	return runMigrations(sqliteMigrationsFS, "sqlite_migrations", "sqlite://"+filepath.ToSlash(filepath.Clean(path)), logger)
}

func runMigrations(fsys fs.FS, dir, databaseURL string, logger *zap.Logger) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("migrations applied", zap.String("source", dir), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
