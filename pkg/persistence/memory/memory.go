// Package memory keeps sessions in process memory. Sessions are held as
// encoded snapshots so callers never share state with the store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
)

type Persistence struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

func NewPersistence() *Persistence {
	return &Persistence{sessions: map[string][]byte{}}
}

func (m *Persistence) Close(_ context.Context) error {
	return nil
}

func (m *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (m *Persistence) Sessions(_ context.Context) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(m.sessions))

	for id, data := range m.sessions {
		session, err := decode(id, data)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}

		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions, nil
}

func (m *Persistence) SessionByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	data, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
	}

	return decode(id, data)
}

func (m *Persistence) SaveSession(_ context.Context, session *models.Session) error {
	if !persistence.ValidID(session.ID) {
		return persistence.NewSessionError("SaveSession", session.ID, persistence.ErrInvalidSessionID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	m.mu.Lock()
	m.sessions[session.ID] = data
	m.mu.Unlock()

	return nil
}

func (m *Persistence) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	return nil
}

func decode(id string, data []byte) (*models.Session, error) {
	var session models.Session

	err := json.Unmarshal(data, &session)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}

	return &session, nil
}
