package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
)

const scoresPublishedTTL = 7 * 24 * time.Hour

// ScorePublisher hands final standings of a completed exam to persistence.
type ScorePublisher interface {
	PublishStandings(ctx context.Context, sessionID uuid.UUID, standings []scoring.Standing) error
}

// NopScorePublisher drops standings; they stay computable on demand.
type NopScorePublisher struct{}

func (NopScorePublisher) PublishStandings(context.Context, uuid.UUID, []scoring.Standing) error {
	return nil
}

// NewScorePublisher returns a publisher onto the Redis score queue, or a
// no-op publisher when rdb is nil.
func NewScorePublisher(rdb *redis.Client, log zerolog.Logger) ScorePublisher {
	if rdb == nil {
		return NopScorePublisher{}
	}
	return &RedisScorePublisher{
		rdb: rdb,
		log: log.With().Str("component", "score_publisher").Logger(),
	}
}

// RedisScorePublisher pushes one ScoreRecord per participant onto the score
// queue. A marker key makes repeated publication of a session a no-op, even
// across server instances.
type RedisScorePublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

func (p *RedisScorePublisher) PublishStandings(ctx context.Context, sessionID uuid.UUID, standings []scoring.Standing) error {
	first, err := p.rdb.SetNX(ctx, config.CacheKey.SessionScoresPublishedKey(sessionID), 1, scoresPublishedTTL).Result()
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	if !first {
		p.log.Debug().Str("session_id", sessionID.String()).Msg("Standings already published")
		return nil
	}
	if len(standings) == 0 {
		return nil
	}

	pipe := p.rdb.Pipeline()
	for _, st := range standings {
		raw, err := json.Marshal(model.ScoreRecord{
			SessionID:     sessionID,
			ParticipantID: st.ParticipantID,
			Score:         st.Score,
			Total:         st.Total,
			Position:      st.Position,
		})
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue standings: %w", err)
	}

	p.log.Info().
		Str("session_id", sessionID.String()).
		Int("participants", len(standings)).
		Msg("Standings queued for persistence")
	return nil
}
