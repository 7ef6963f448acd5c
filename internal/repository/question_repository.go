package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListQuestions retrieves all questions for a session, ordered by order_num.
func (r *QuestionRepository) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]model.InteractionQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, text, type, options, correct_option_id, duration_seconds, order_num
		 FROM interaction_questions WHERE session_id = $1
		 ORDER BY order_num, id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.InteractionQuestion
	for rows.Next() {
		var (
			q        model.InteractionQuestion
			duration *int32
		)
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Type, &q.Options, &q.CorrectOptionID, &duration, &q.OrderNum); err != nil {
			return nil, err
		}
		if duration != nil {
			d := int(*duration)
			q.DurationSeconds = &d
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuestion inserts a new question.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *model.InteractionQuestion) error {
	options := q.Options
	if options == nil {
		options = []model.Option{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO interaction_questions
		 (session_id, text, type, options, correct_option_id, duration_seconds, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		q.SessionID, q.Text, q.Type, options, q.CorrectOptionID, q.DurationSeconds, q.OrderNum,
	).Scan(&q.ID)
	return mapForeignKey(err)
}

// mapForeignKey turns a missing-parent violation into store.ErrNotFound.
func mapForeignKey(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return store.ErrNotFound
	}
	return err
}
