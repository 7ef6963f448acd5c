package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-live/internal/store"
)

// Store bundles the PostgreSQL repositories into a store.Store.
type Store struct {
	*SessionRepository
	*QuestionRepository
	*ParticipantRepository
	*ResponseRepository
}

var _ store.Store = (*Store)(nil)

// NewStore creates a PostgreSQL-backed store on pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		SessionRepository:     NewSessionRepository(pool),
		QuestionRepository:    NewQuestionRepository(pool),
		ParticipantRepository: NewParticipantRepository(pool),
		ResponseRepository:    NewResponseRepository(pool),
	}
}
