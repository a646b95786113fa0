package postgresql_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/log"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/persistencetest"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/postgresql"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"sessions", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("flowmaker_test"),
			postgres.WithUsername("flowmaker"),
			postgres.WithPassword("flowmaker"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	persistence, err := postgresql.NewPersistence(ctx, log.Discard(), databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = persistence.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return persistence, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'sessions')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "sessions table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestNewPersistence_MigrationsAreIdempotent(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	// concurrent starts serialize on the migration lock
	errs := make(chan error, 2)

	for range 2 {
		go func() {
			again, err := postgresql.NewPersistence(ctx, log.Discard(), databaseURL)
			if err == nil {
				err = again.Close(ctx)
			}

			errs <- err
		}()
	}

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
}

func TestPersistence_Contract(t *testing.T) {
	p, _, _ := setupTestDB(t)

	persistencetest.Run(t, p)
}

func TestPersistence_QualityColumns(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	session := testutil.CreateTestSession(testutil.WithResult(testutil.CreateTestDraft(3)))
	require.NoError(t, p.SaveSession(ctx, session))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		_ = db.Close()
	}()

	var (
		phase    string
		score    int
		accepted bool
	)

	err = db.QueryRowContext(ctx, "SELECT phase, quality_score, accepted FROM sessions WHERE id = $1", session.ID).
		Scan(&phase, &score, &accepted)
	require.NoError(t, err)
	assert.Equal(t, "complete", phase)
	assert.Equal(t, 88, score)
	assert.True(t, accepted)
}
