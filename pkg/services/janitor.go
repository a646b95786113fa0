package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// Expire deletes sessions last updated before cutoff and returns how many were
// removed. Each session is rechecked under its lock, so a session answered
// while the sweep runs survives.
func (c *Conversation) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	const op = "ExpireSessions"

	sessions, err := c.persistence.Sessions(ctx)
	if err != nil {
		return 0, wrap(op, err)
	}

	removed := 0

	for _, s := range sessions {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}

		ok, err := c.expireOne(ctx, s.ID, cutoff)
		if err != nil {
			return removed, wrap(op, err)
		}

		if ok {
			removed++

			c.metrics.SessionEvent("expired")
		}
	}

	return removed, nil
}

func (c *Conversation) expireOne(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()

	session, err := c.persistence.SessionByID(ctx, id)
	if errors.Is(err, persistence.ErrSessionNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if !session.UpdatedAt.Before(cutoff) {
		return false, nil
	}

	return true, c.persistence.DeleteSession(ctx, id)
}

// Janitor expires idle sessions on a cron schedule.
type Janitor struct {
	conversation *Conversation
	schedule     string
	ttl          time.Duration
	logger       *slog.Logger
	now          func() time.Time

	cron *cron.Cron
}

// NewJanitor checks the schedule; standard five-field expressions and
// descriptors such as "@every 10m" are accepted.
func NewJanitor(conversation *Conversation, schedule string, ttl time.Duration, logger *slog.Logger) (*Janitor, error) {
	if ttl <= 0 {
		return nil, NewValidationError("NewJanitor", "invalid_ttl", "session ttl must be positive", ErrInvalidRequest)
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, NewValidationError("NewJanitor", "invalid_schedule",
			fmt.Sprintf("invalid cron expression %q: %v", schedule, err), ErrInvalidRequest)
	}

	return &Janitor{
		conversation: conversation,
		schedule:     schedule,
		ttl:          ttl,
		logger:       logger.With("module", "session_janitor"),
		now:          time.Now,
	}, nil
}

// Start runs sweeps until ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := j.cron.AddFunc(j.schedule, func() { j.Sweep(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	j.logger.InfoContext(ctx, "Session sweep scheduled", "entry_id", id, "schedule", j.schedule, "ttl", j.ttl)
	j.cron.Start()

	go func() {
		<-ctx.Done()
		j.Stop()
	}()

	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Sweep expires sessions idle for longer than the ttl.
func (j *Janitor) Sweep(ctx context.Context) int {
	removed, err := j.conversation.Expire(ctx, j.now().Add(-j.ttl))
	if err != nil {
		j.logger.ErrorContext(ctx, "Session sweep failed", "removed", removed, "error", err)

		return removed
	}

	if removed > 0 {
		j.logger.InfoContext(ctx, "Expired idle sessions", "removed", removed)
	}

	return removed
}
