package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// ResponseRepository handles interaction response data access.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

// InsertResponse records an answer. The (participant_id, question_id) unique
// key turns a second submit into store.ErrDuplicate; nothing is overwritten.
func (r *ResponseRepository) InsertResponse(ctx context.Context, resp *model.InteractionResponse) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO interaction_responses (session_id, question_id, participant_id, answer, timed_out)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (participant_id, question_id) DO NOTHING
		 RETURNING id, submitted_at`,
		resp.SessionID, resp.QuestionID, resp.ParticipantID, resp.Answer, resp.TimedOut,
	).Scan(&resp.ID, &resp.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrDuplicate
	}
	return err
}

// ListResponses retrieves responses of a session in submission order.
func (r *ResponseRepository) ListResponses(ctx context.Context, f store.ResponseFilter) ([]model.InteractionResponse, error) {
	query := `SELECT id, session_id, question_id, participant_id, answer, timed_out, submitted_at
		FROM interaction_responses WHERE session_id = $1`
	args := []any{f.SessionID}

	if f.QuestionID != nil {
		args = append(args, *f.QuestionID)
		query += fmt.Sprintf(" AND question_id = $%d", len(args))
	}
	if f.ParticipantID != nil {
		args = append(args, *f.ParticipantID)
		query += fmt.Sprintf(" AND participant_id = $%d", len(args))
	}
	query += " ORDER BY seq"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.InteractionResponse
	for rows.Next() {
		var resp model.InteractionResponse
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.ParticipantID,
			&resp.Answer, &resp.TimedOut, &resp.SubmittedAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
