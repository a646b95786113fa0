package postgresql

import "github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/sqlbase"

// migrationLockKey is the advisory lock id guarding session store migrations.
const migrationLockKey int64 = 0x666c6f77

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{
			Version:     1,
			Description: "sessions table",
			SQL: `
				CREATE TABLE sessions (
					id VARCHAR(64) PRIMARY KEY,
					phase VARCHAR(32) NOT NULL,
					initial_request TEXT NOT NULL,
					complexity INT NOT NULL DEFAULT 0,
					data JSONB NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX idx_sessions_phase ON sessions(phase);
				CREATE INDEX idx_sessions_created_at ON sessions(created_at);`,
		},
		{
			Version:     2,
			Description: "quality of the generated workflow",
			SQL: `
				ALTER TABLE sessions
					ADD COLUMN quality_score INT,
					ADD COLUMN accepted BOOLEAN;`,
		},
		{
			Version:     3,
			Description: "idle session lookup",
			SQL:         `CREATE INDEX idx_sessions_updated_at ON sessions(updated_at);`,
		},
	}
}
