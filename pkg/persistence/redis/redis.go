// Package redis stores sessions in Redis: one string key per session plus a
// sorted set indexing ids by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "flowmaker:session:"
	indexKey  = "flowmaker:sessions"
)

type Persistence struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

// NewPersistence connects to the Redis server at url (redis://[:password@]host:port/db).
// A positive ttl expires sessions that have not been saved for that long.
func NewPersistence(ctx context.Context, logger *slog.Logger, url string, ttl time.Duration) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return NewWithClient(client, logger, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, logger *slog.Logger, ttl time.Duration) *Persistence {
	return &Persistence{client: client, logger: logger, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) SessionByID(ctx context.Context, id string) (*models.Session, error) {
	data, err := p.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewSessionError("SessionByID", id, persistence.ErrSessionNotFound)
		}

		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}

	return decode(id, data)
}

func (p *Persistence) SaveSession(ctx context.Context, session *models.Session) error {
	if !persistence.ValidID(session.ID) {
		return persistence.NewSessionError("SaveSession", session.ID, persistence.ErrInvalidSessionID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key(session.ID), data, p.ttl)
		pipe.ZAdd(ctx, indexKey, redis.Z{
			Score:  float64(session.CreatedAt.UnixMilli()),
			Member: session.ID,
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.ID, err)
	}

	return nil
}

func (p *Persistence) DeleteSession(ctx context.Context, id string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key(id))
		pipe.ZRem(ctx, indexKey, id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}

	return nil
}

// Sessions lists sessions in creation order. Index entries whose session has
// expired are pruned.
func (p *Persistence) Sessions(ctx context.Context) ([]*models.Session, error) {
	ids, err := p.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(ids) == 0 {
		return []*models.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	sessions := make([]*models.Session, 0, len(ids))

	var expired []any

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])

			continue
		}

		session, err := decode(ids[i], []byte(raw))
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, session)
	}

	if len(expired) > 0 {
		err := p.client.ZRem(ctx, indexKey, expired...).Err()
		if err != nil {
			p.logger.WarnContext(ctx, "Failed to prune expired sessions", "error", err)
		}
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
