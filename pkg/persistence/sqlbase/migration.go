// Package sqlbase provides the schema migration support shared by SQL session
// stores.
package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

var ErrBadMigrations = errors.New("invalid migration set")

// Migration is one forward-only schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationManager applies pending migrations. Concurrent managers pointed at
// the same database serialize on a Postgres advisory lock.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
	lockKey    int64
}

// NewMigrationManager sorts migrations by version and rejects duplicate or
// non-positive versions.
func NewMigrationManager(logger *slog.Logger, db *sql.DB, lockKey int64, migrations []Migration) (*MigrationManager, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	for i, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("%w: version %d", ErrBadMigrations, m.Version)
		}

		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrBadMigrations, m.Version)
		}
	}

	return &MigrationManager{
		db:         db,
		logger:     logger.With("module", "migrations"),
		migrations: sorted,
		lockKey:    lockKey,
	}, nil
}

// LatestVersion is the highest migration version known to the manager.
func (m *MigrationManager) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// Pending lists the migrations newer than version.
func (m *MigrationManager) Pending(version int) []Migration {
	i, _ := slices.BinarySearchFunc(m.migrations, version+1, func(mig Migration, v int) int { return mig.Version - v })

	return m.migrations[i:]
}

// RunMigrations brings the schema to the latest version.
func (m *MigrationManager) RunMigrations(ctx context.Context) (err error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", m.lockKey); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}

	defer func() {
		_, unlockErr := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", m.lockKey)
		if unlockErr != nil && err == nil {
			err = fmt.Errorf("failed to release migration lock: %w", unlockErr)
		}
	}()

	_, err = conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var current int

	err = conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to query current schema version: %w", err)
	}

	pending := m.Pending(current)
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "Schema is up to date", "version", current)

		return nil
	}

	m.logger.InfoContext(ctx, "Applying migrations", "from", current, "to", m.LatestVersion(), "pending", len(pending))

	for _, migration := range pending {
		if err := m.apply(ctx, conn, migration); err != nil {
			return err
		}
	}

	return nil
}

func (m *MigrationManager) apply(ctx context.Context, conn *sql.Conn, migration Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, strings.TrimSpace(migration.Description))
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	m.logger.InfoContext(ctx, "Migration applied", "version", migration.Version, "description", migration.Description)

	return nil
}
