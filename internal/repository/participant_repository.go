package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// ParticipantRepository handles participant data access.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// CreateParticipant inserts a participant (join).
func (r *ParticipantRepository) CreateParticipant(ctx context.Context, p *model.Participant) error {
	fields := p.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO participants (session_id, name, fields)
		 VALUES ($1, $2, $3)
		 RETURNING id, joined_at`,
		p.SessionID, p.Name, fields,
	).Scan(&p.ID, &p.JoinedAt)
	return mapForeignKey(err)
}

// GetParticipant retrieves a participant by its UUID.
func (r *ParticipantRepository) GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, name, fields, joined_at FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.SessionID, &p.Name, &p.Fields, &p.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListParticipants retrieves the roster of a session in join order.
func (r *ParticipantRepository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, name, fields, joined_at FROM participants
		 WHERE session_id = $1
		 ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.Name, &p.Fields, &p.JoinedAt); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}
