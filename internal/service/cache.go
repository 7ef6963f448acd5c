package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/model"
)

// SnapshotCache holds recently built participant snapshots. Entries must
// expire faster than the poll interval, and every write through the services
// invalidates the session's entry.
type SnapshotCache interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*model.SessionSnapshot, bool)
	Set(ctx context.Context, snap *model.SessionSnapshot)
	Invalidate(ctx context.Context, sessionID uuid.UUID)
}

// NewSnapshotCache returns a Redis-backed cache, or a no-op cache when rdb is nil.
func NewSnapshotCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) SnapshotCache {
	if rdb == nil || ttl <= 0 {
		return NopSnapshotCache{}
	}
	return &redisSnapshotCache{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "snapshot_cache").Logger(),
	}
}

// NopSnapshotCache never stores anything.
type NopSnapshotCache struct{}

func (NopSnapshotCache) Get(context.Context, uuid.UUID) (*model.SessionSnapshot, bool) {
	return nil, false
}

func (NopSnapshotCache) Set(context.Context, *model.SessionSnapshot) {}

func (NopSnapshotCache) Invalidate(context.Context, uuid.UUID) {}

type redisSnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func (c *redisSnapshotCache) Get(ctx context.Context, sessionID uuid.UUID) (*model.SessionSnapshot, bool) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("snapshot cache read failed")
		}
		return nil, false
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *redisSnapshotCache) Set(ctx context.Context, snap *model.SessionSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, config.CacheKey.SessionSnapshotKey(snap.SessionID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", snap.SessionID.String()).Msg("snapshot cache write failed")
	}
}

func (c *redisSnapshotCache) Invalidate(ctx context.Context, sessionID uuid.UUID) {
	if err := c.rdb.Del(ctx, config.CacheKey.SessionSnapshotKey(sessionID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("snapshot cache invalidate failed")
	}
}
