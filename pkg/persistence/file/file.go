// Package file provides file-based persistence for sessions, one JSON document
// per session.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
)

const sessionsDir = "sessions"

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks that the root directory exists and is writable.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(fp.dir(), 0750)
	if err != nil {
		return fmt.Errorf("session directory unavailable: %w", err)
	}

	return nil
}

func (fp *Persistence) dir() string {
	return filepath.Join(fp.root, sessionsDir)
}

func (fp *Persistence) path(id string) string {
	return filepath.Join(fp.dir(), id+".json")
}

// Sessions returns every stored session ordered by creation time.
func (fp *Persistence) Sessions(ctx context.Context) ([]*models.Session, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(fp.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list session files: %w", err)
	}

	sessions := make([]*models.Session, 0, len(files))

	for _, file := range files {
		session, err := fp.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// SessionByID reads a session from the file system.
func (fp *Persistence) SessionByID(_ context.Context, id string) (*models.Session, error) {
	if !persistence.ValidID(id) {
		return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrInvalidSessionID)
	}

	fp.mu.RLock()
	defer fp.mu.RUnlock()

	return fp.read(id)
}

func (fp *Persistence) read(id string) (*models.Session, error) {
	body, err := os.ReadFile(fp.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}

	var session models.Session

	err = json.Unmarshal(body, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}

	return &session, nil
}

// SaveSession writes a session through a temporary file so readers never see
// a partial document.
func (fp *Persistence) SaveSession(_ context.Context, session *models.Session) error {
	if !persistence.ValidID(session.ID) {
		return persistence.NewSessionError("SaveSession", session.ID, persistence.ErrInvalidSessionID)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err = os.MkdirAll(fp.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	tmp := fp.path(session.ID) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}

	err = os.Rename(tmp, fp.path(session.ID))
	if err != nil {
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}

	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (fp *Persistence) DeleteSession(_ context.Context, id string) error {
	if !persistence.ValidID(id) {
		return persistence.NewSessionError("DeleteSession", id, persistence.ErrInvalidSessionID)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(fp.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	return nil
}
