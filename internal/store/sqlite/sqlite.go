// Package sqlite is the single-machine Store backend built on go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// Store implements store.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers; a single connection also keeps ":memory:"
	// databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	log.Info().Str("path", path).Msg("SQLite store ready")
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Sessions ───────────────────────────────────────────────────────

const sessionColumns = `id, name, type, status, required_fields, current_question_index,
	started_at, completed_at, created_at, updated_at`

func (s *Store) CreateSession(ctx context.Context, sess *model.InteractionSession) error {
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	fields, err := json.Marshal(nonNilStrings(sess.RequiredFields))
	if err != nil {
		return fmt.Errorf("marshal required fields: %w", err)
	}
	now := time.Now().UTC()
	sess.CreatedAt, sess.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interaction_sessions (`+sessionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Type, sess.Status, string(fields), sess.CurrentQuestionIndex,
		sess.StartedAt, sess.CompletedAt, sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM interaction_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return sess, err
}

func (s *Store) ListSessions(ctx context.Context, f store.SessionFilter) ([]model.InteractionSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM interaction_sessions`
	var args []any
	if f.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, *f.Status)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.InteractionSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSession(ctx context.Context, id uuid.UUID, p store.SessionPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if p.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.SetQuestionIndex {
		sets = append(sets, "current_question_index = ?")
		args = append(args, p.QuestionIndex)
	}
	if p.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *p.StartedAt)
	}
	if p.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *p.CompletedAt)
	}

	query := "UPDATE interaction_sessions SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *Store) ActivateExclusive(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE interaction_sessions SET status = ?, updated_at = ?
		 WHERE status = ? AND id <> ?`,
		model.SessionStatusInactive, now, model.SessionStatusActive, id,
	); err != nil {
		return fmt.Errorf("deactivate others: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE interaction_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		model.SessionStatusActive, now, id,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if err := requireOneRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.InteractionSession, error) {
	var (
		sess        model.InteractionSession
		fields      string
		index       sql.NullInt64
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Type, &sess.Status, &fields, &index,
		&startedAt, &completedAt, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &sess.RequiredFields); err != nil {
		return nil, fmt.Errorf("decode required fields: %w", err)
	}
	if index.Valid {
		v := int(index.Int64)
		sess.CurrentQuestionIndex = &v
	}
	if startedAt.Valid {
		sess.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	return &sess, nil
}

// ─── Questions ──────────────────────────────────────────────────────

func (s *Store) CreateQuestion(ctx context.Context, q *model.InteractionQuestion) error {
	if _, err := s.GetSession(ctx, q.SessionID); err != nil {
		return err
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO interaction_questions
		 (id, session_id, text, type, options, correct_option_id, duration_seconds, order_num)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.SessionID, q.Text, q.Type, string(opts), q.CorrectOptionID, q.DurationSeconds, q.OrderNum,
	)
	return err
}

func (s *Store) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]model.InteractionQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, text, type, options, correct_option_id, duration_seconds, order_num
		 FROM interaction_questions WHERE session_id = ?
		 ORDER BY order_num, rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.InteractionQuestion
	for rows.Next() {
		var (
			q        model.InteractionQuestion
			opts     string
			duration sql.NullInt64
		)
		if err := rows.Scan(&q.ID, &q.SessionID, &q.Text, &q.Type, &opts, &q.CorrectOptionID, &duration, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		if duration.Valid {
			d := int(duration.Int64)
			q.DurationSeconds = &d
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ─── Participants ───────────────────────────────────────────────────

func (s *Store) CreateParticipant(ctx context.Context, p *model.Participant) error {
	if _, err := s.GetSession(ctx, p.SessionID); err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO participants (id, session_id, name, fields, joined_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.SessionID, p.Name, string(fields), p.JoinedAt,
	)
	return err
}

func (s *Store) GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error) {
	p, err := scanParticipant(s.db.QueryRowContext(ctx,
		`SELECT id, session_id, name, fields, joined_at FROM participants WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return p, err
}

func (s *Store) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, name, fields, joined_at FROM participants
		 WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func scanParticipant(row rowScanner) (*model.Participant, error) {
	var (
		p      model.Participant
		fields string
	)
	if err := row.Scan(&p.ID, &p.SessionID, &p.Name, &fields, &p.JoinedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &p, nil
}

// ─── Responses ──────────────────────────────────────────────────────

func (s *Store) InsertResponse(ctx context.Context, r *model.InteractionResponse) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interaction_responses
		 (id, session_id, question_id, participant_id, answer, timed_out, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (participant_id, question_id) DO NOTHING`,
		r.ID, r.SessionID, r.QuestionID, r.ParticipantID, r.Answer, r.TimedOut, r.SubmittedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (s *Store) ListResponses(ctx context.Context, f store.ResponseFilter) ([]model.InteractionResponse, error) {
	query := `SELECT id, session_id, question_id, participant_id, answer, timed_out, submitted_at
		FROM interaction_responses WHERE session_id = ?`
	args := []any{f.SessionID}
	if f.QuestionID != nil {
		query += ` AND question_id = ?`
		args = append(args, *f.QuestionID)
	}
	if f.ParticipantID != nil {
		query += ` AND participant_id = ?`
		args = append(args, *f.ParticipantID)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.InteractionResponse
	for rows.Next() {
		var r model.InteractionResponse
		if err := rows.Scan(&r.ID, &r.SessionID, &r.QuestionID, &r.ParticipantID, &r.Answer, &r.TimedOut, &r.SubmittedAt); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
