package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/irt-tools/cat-service/internal/models"
	"github.com/irt-tools/cat-service/internal/utils"
)

// SessionCache keeps hot session snapshots for fast resume. Postgres stays
// authoritative; a cache miss is not an error.
type SessionCache interface {
	SaveSnapshot(ctx context.Context, session *models.Session) error
	GetSnapshot(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// snapshotTTL bounds how long an idle snapshot survives; a paused session
// past this falls back to the database copy.
const snapshotTTL = 24 * time.Hour

type redisCache struct {
	client *redis.Client
	logger utils.Logger
}

func NewRedisCache(client *redis.Client, logger utils.Logger) SessionCache {
	return &redisCache{client: client, logger: logger}
}

func sessionKey(id string) string {
	return "cat:session:" + id
}

func (r *redisCache) SaveSnapshot(ctx context.Context, session *models.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := r.client.Set(ctx, sessionKey(session.ID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to write session snapshot: %w", err)
	}
	return nil
}

func (r *redisCache) GetSnapshot(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session snapshot: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// A corrupt snapshot must not block resume; the caller falls back
		// to the database copy.
		r.logger.Warn("discarding unreadable session snapshot", "session_id", id, "error", err)
		return nil, nil
	}
	return &session, nil
}

func (r *redisCache) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

// NoopCache disables snapshot caching; every resume reads the database.
type NoopCache struct{}

func (NoopCache) SaveSnapshot(ctx context.Context, session *models.Session) error { return nil }
func (NoopCache) GetSnapshot(ctx context.Context, id string) (*models.Session, error) {
	return nil, nil
}
func (NoopCache) Delete(ctx context.Context, id string) error { return nil }
