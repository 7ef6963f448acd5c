package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/config"
	"github.com/stemsi/exstem-live/internal/model"
)

const (
	ScoreBatchSize    = 50
	ScoreBatchTimeout = 2 * time.Second
	ScorePollTimeout  = 1 * time.Second
)

// ScoreQueue is the slice of the Redis client the worker uses.
type ScoreQueue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// ScoreSink persists final standings. SaveScores upserts, so replays are harmless.
type ScoreSink interface {
	SaveScores(ctx context.Context, records []model.ScoreRecord) error
}

// ScoringWorker drains the score queue filled when exam sessions complete
// and writes the standings in batches.
type ScoringWorker struct {
	queue ScoreQueue
	sink  ScoreSink
	log   zerolog.Logger
}

func NewScoringWorker(queue ScoreQueue, sink ScoreSink, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		queue: queue,
		sink:  sink,
		log:   log.With().Str("component", "scoring_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ScoringWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ScoringWorker started")

	batch := make([]model.ScoreRecord, 0, ScoreBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ScoreBatchSize || time.Since(lastFlush) >= ScoreBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.queue.BLPop(ctx, ScorePollTimeout, config.WorkerKey.PersistScoresQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var rec model.ScoreRecord
			if err := json.Unmarshal([]byte(item[1]), &rec); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, rec)
		}
	}
}

// ----------------------------------------------------------------
// Batch write with per-record fallback
// ----------------------------------------------------------------

func (w *ScoringWorker) flushSafe(ctx context.Context, batch []model.ScoreRecord) {
	if len(batch) == 0 {
		return
	}

	if err := w.sink.SaveScores(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("records", len(batch)).Msg("Bulk score write failed, using fallback")

		for _, rec := range batch {
			if err := w.sink.SaveScores(ctx, []model.ScoreRecord{rec}); err != nil {
				w.log.Error().Err(err).
					Str("session_id", rec.SessionID.String()).
					Str("participant_id", rec.ParticipantID.String()).
					Msg("Single score write failed, requeueing")
				raw, _ := json.Marshal(rec)
				w.queue.RPush(ctx, config.WorkerKey.PersistScoresQueue, raw)
			}
		}
		return
	}

	w.log.Debug().Int("records", len(batch)).Msg("Scores persisted")
}
