package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

const sessionColumns = `id, name, type, status, required_fields, current_question_index,
	started_at, completed_at, created_at, updated_at`

// SessionRepository handles interaction session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// CreateSession inserts a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, s *model.InteractionSession) error {
	fields := s.RequiredFields
	if fields == nil {
		fields = []string{}
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO interaction_sessions (name, type, status, required_fields)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.Name, s.Type, s.Status, fields,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetSession retrieves a session by its UUID, without questions.
func (r *SessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM interaction_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return s, err
}

// ListSessions retrieves sessions in creation order, optionally by status.
func (r *SessionRepository) ListSessions(ctx context.Context, f store.SessionFilter) ([]model.InteractionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interaction_sessions`
	var args []any
	if f.Status != nil {
		query += ` WHERE status = $1`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.InteractionSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSession applies a partial update.
func (r *SessionRepository) UpdateSession(ctx context.Context, id uuid.UUID, p store.SessionPatch) error {
	sets := []string{"updated_at = NOW()"}
	var args []any

	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.SetQuestionIndex {
		add("current_question_index", p.QuestionIndex)
	}
	if p.StartedAt != nil {
		add("started_at", *p.StartedAt)
	}
	if p.CompletedAt != nil {
		add("completed_at", *p.CompletedAt)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE interaction_sessions SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ActivateExclusive deactivates every other active session and activates id
// inside one transaction. The partial unique index on status='active'
// backs the same invariant at the schema level; when a concurrent activation
// commits first the index rejects this one with store.ErrConflict.
func (r *SessionRepository) ActivateExclusive(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`UPDATE interaction_sessions SET status = $1, updated_at = NOW()
		 WHERE status = $2 AND id <> $3`,
		model.SessionStatusInactive, model.SessionStatusActive, id,
	); err != nil {
		return fmt.Errorf("deactivate others: %w", mapUniqueViolation(err))
	}

	tag, err := tx.Exec(ctx,
		`UPDATE interaction_sessions SET status = $1, updated_at = NOW() WHERE id = $2`,
		model.SessionStatusActive, id,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", mapUniqueViolation(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", mapUniqueViolation(err))
	}
	return nil
}

// mapUniqueViolation turns a unique-index rejection into store.ErrConflict.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrConflict)
	}
	return err
}

func scanSession(row pgx.Row) (*model.InteractionSession, error) {
	var (
		s     model.InteractionSession
		index *int32
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Type, &s.Status, &s.RequiredFields, &index,
		&s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if index != nil {
		v := int(*index)
		s.CurrentQuestionIndex = &v
	}
	return &s, nil
}
