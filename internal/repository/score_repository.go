package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/model"
)

// ScoreRepository writes final exam standings to participant_scores.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// SaveScores upserts a batch of standings in one statement.
func (r *ScoreRepository) SaveScores(ctx context.Context, records []model.ScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	sessionIDs := make([]uuid.UUID, 0, n)
	participantIDs := make([]uuid.UUID, 0, n)
	scores := make([]int32, 0, n)
	totals := make([]int32, 0, n)
	positions := make([]int32, 0, n)
	for _, rec := range records {
		sessionIDs = append(sessionIDs, rec.SessionID)
		participantIDs = append(participantIDs, rec.ParticipantID)
		scores = append(scores, int32(rec.Score))
		totals = append(totals, int32(rec.Total))
		positions = append(positions, int32(rec.Position))
	}

	query := `
		INSERT INTO participant_scores (session_id, participant_id, score, total, position, scored_at)
		SELECT u.session_id, u.participant_id, u.score, u.total, u.position, NOW()
		FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::int[],
			$4::int[],
			$5::int[]
		) AS u (session_id, participant_id, score, total, position)
		ON CONFLICT (session_id, participant_id) DO UPDATE
		SET score = EXCLUDED.score,
		    total = EXCLUDED.total,
		    position = EXCLUDED.position,
		    scored_at = EXCLUDED.scored_at
	`

	if _, err := r.pool.Exec(ctx, query, sessionIDs, participantIDs, scores, totals, positions); err != nil {
		return fmt.Errorf("upsert scores: %w", err)
	}
	return nil
}
