// Package app wires stores and routes shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-checkin/backend/config"
	"github.com/aura-checkin/backend/internal/emaillogs"
	"github.com/aura-checkin/backend/internal/participants"
	"github.com/aura-checkin/backend/pkg/database"
)

// Stores holds the persistence used by handlers and the email worker.
type Stores struct {
	Participants participants.Store
	EmailLogs    emaillogs.Store
	close        func()
}

// Close releases the underlying database handle.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the configured driver. migrate applies schema migrations first.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, migrate bool, logger *zap.Logger) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if migrate {
			if err := database.Migrate(cfg.DSN(), logger); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := database.NewPostgresPool(ctx, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Participants: participants.NewPostgresRepository(pool),
			EmailLogs:    emaillogs.NewPostgresRepository(pool),
			close:        pool.Close,
		}, nil
	case config.DriverSQLite:
		// The SQLite schema is applied on open.
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Participants: participants.NewSQLiteRepository(db),
			EmailLogs:    emaillogs.NewSQLiteRepository(db),
			close:        func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
