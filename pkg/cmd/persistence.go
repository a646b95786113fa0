package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/file"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/memory"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/postgresql"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"memory", "file", "redis", "rediss", "postgres", "postgresql"}

// NewPersistence opens the session store named by the url scheme. A url
// without a known scheme is a directory for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string, ttl time.Duration) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Opening session store", "provider", provider)

	switch provider {
	case "memory":
		return memory.NewPersistence(), nil
	case "redis", "rediss":
		store, err := redis.NewPersistence(ctx, logger, databaseURL, ttl)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "postgres", "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	if databaseURL == "" {
		return "memory"
	}

	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
