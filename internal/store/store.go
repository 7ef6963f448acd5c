// Package store defines the shared state contract the engine is built on:
// predicate-filtered reads, inserts and partial updates, without
// cross-record transactions. Backends live in this package (memory),
// store/sqlite and repository (PostgreSQL).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert would break a unique key.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a concurrent write won a race the caller
	// may retry.
	ErrConflict = errors.New("conflicting concurrent write")
)

// SessionFilter selects sessions. Zero value matches everything.
type SessionFilter struct {
	Status *model.SessionStatus
}

// Match reports whether s satisfies the filter.
func (f SessionFilter) Match(s *model.InteractionSession) bool {
	return f.Status == nil || s.Status == *f.Status
}

// SessionPatch is a partial update. Nil fields are left untouched.
// SetQuestionIndex writes QuestionIndex, including nil to clear it.
type SessionPatch struct {
	Name             *string
	Status           *model.SessionStatus
	SetQuestionIndex bool
	QuestionIndex    *int
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// ResponseFilter selects responses within one session.
type ResponseFilter struct {
	SessionID     uuid.UUID
	QuestionID    *uuid.UUID
	ParticipantID *uuid.UUID
}

// Match reports whether r satisfies the filter.
func (f ResponseFilter) Match(r *model.InteractionResponse) bool {
	if r.SessionID != f.SessionID {
		return false
	}
	if f.QuestionID != nil && r.QuestionID != *f.QuestionID {
		return false
	}
	if f.ParticipantID != nil && r.ParticipantID != *f.ParticipantID {
		return false
	}
	return true
}

// SessionStore persists sessions. GetSession does not load questions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.InteractionSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]model.InteractionSession, error)
	UpdateSession(ctx context.Context, id uuid.UUID, p SessionPatch) error
	// ActivateExclusive marks id active and every other active session
	// inactive as one step; no reader observes two active sessions. It returns
	// ErrConflict when a concurrent activation committed first.
	ActivateExclusive(ctx context.Context, id uuid.UUID) error
}

// QuestionStore persists questions. ListQuestions returns them by OrderNum.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *model.InteractionQuestion) error
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]model.InteractionQuestion, error)
}

// ParticipantStore persists participants. ListParticipants returns join order.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p *model.Participant) error
	GetParticipant(ctx context.Context, id uuid.UUID) (*model.Participant, error)
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
}

// ResponseStore persists responses. InsertResponse returns ErrDuplicate
// when the (participant, question) pair already has a response.
type ResponseStore interface {
	InsertResponse(ctx context.Context, r *model.InteractionResponse) error
	ListResponses(ctx context.Context, f ResponseFilter) ([]model.InteractionResponse, error)
}

// Store is the full shared state contract.
type Store interface {
	SessionStore
	QuestionStore
	ParticipantStore
	ResponseStore
}
