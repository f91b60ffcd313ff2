package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "actionlog:session:"

// SessionRepository stores the session id under a TTL key, so the session
// ends after the TTL passes without activity or when the key is deleted.
type SessionRepository struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionRepository creates a Redis-backed session store for one client key.
func NewSessionRepository(client *redis.Client, clientKey string, ttl time.Duration, logger *slog.Logger) *SessionRepository {
	return &SessionRepository{
		client: client,
		key:    sessionKeyPrefix + clientKey,
		ttl:    ttl,
		logger: logger.With("component", "redis_session_repository"),
	}
}

// Load returns the stored session id and slides its expiry forward.
func (r *SessionRepository) Load(ctx context.Context) (string, bool, error) {
	id, err := r.client.GetEx(ctx, r.key, r.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to GETEX session id: %w", err)
	}
	return id, true, nil
}

// Save sets the session id with the configured TTL.
func (r *SessionRepository) Save(ctx context.Context, id string) error {
	if err := r.client.Set(ctx, r.key, id, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET session id: %w", err)
	}
	r.logger.Debug("stored session id", "key", r.key, "ttl", r.ttl)
	return nil
}

// Clear deletes the session key.
func (r *SessionRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to DEL session id: %w", err)
	}
	return nil
}
