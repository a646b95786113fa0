// Package postgresql provides PostgreSQL persistence for sessions.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager, err := sqlbase.NewMigrationManager(logger, database, migrationLockKey, migrations())
	if err == nil {
		err = migrationManager.RunMigrations(ctx)
	}

	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// SessionByID returns a session by its ID.
func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	var data []byte

	err := p.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to query session %s: %w", id, err)
	}

	return decode(id, data)
}

// SaveSession upserts a session.
func (p *Persistence) SaveSession(ctx context.Context, session *models.Session) error {
	if !persistence.ValidID(session.ID) {
		return persistence.NewSessionError("SaveSession", session.ID, persistence.ErrInvalidSessionID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	var (
		score    sql.NullInt64
		accepted sql.NullBool
	)

	if session.Result != nil {
		score = sql.NullInt64{Int64: int64(session.Result.Report.Total), Valid: true}
		accepted = sql.NullBool{Bool: session.Result.Accepted, Valid: true}
	}

	query := `
		INSERT INTO sessions (id, phase, initial_request, complexity, data, quality_score, accepted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			complexity = EXCLUDED.complexity,
			data = EXCLUDED.data,
			quality_score = EXCLUDED.quality_score,
			accepted = EXCLUDED.accepted,
			updated_at = EXCLUDED.updated_at
	`

	_, err = p.db.ExecContext(ctx, query,
		session.ID,
		string(session.Phase),
		session.InitialRequest,
		session.Analysis.Score,
		string(data),
		score,
		accepted,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	return nil
}

// Sessions returns all sessions ordered by creation time.
func (p *Persistence) Sessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, data FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	sessions := []*models.Session{}

	for rows.Next() {
		var (
			id   string
			data []byte
		)

		err := rows.Scan(&id, &data)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		session, err := decode(id, data)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

func decode(id string, data []byte) (*models.Session, error) {
	var session models.Session

	err := json.Unmarshal(data, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}

	return &session, nil
}
