// Package persistence provides the storage abstraction for conversation sessions.
package persistence

import (
	"context"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
)

// Persistence stores sessions by id. Implementations hand out copies, so a
// session read from the store is never shared with another caller.
type Persistence interface {
	Sessions(ctx context.Context) ([]*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error
	SessionByID(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// ValidID reports whether id is usable as a storage key: non-empty and free of
// path separators.
func ValidID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
