package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
	"github.com/stemsi/exstem-live/internal/store"
)

// SessionResults is the full result sheet of a session.
type SessionResults struct {
	SessionID uuid.UUID               `json:"session_id"`
	Type      model.SessionType       `json:"type"`
	Status    model.SessionStatus     `json:"status"`
	Tallies   []scoring.QuestionTally `json:"tallies"`
	Standings []scoring.Standing      `json:"standings,omitempty"`
}

// ResultsService aggregates responses into tallies and standings.
type ResultsService struct {
	sessions *SessionService
	store    store.Store
}

// NewResultsService creates a new ResultsService.
func NewResultsService(sessions *SessionService) *ResultsService {
	return &ResultsService{sessions: sessions, store: sessions.store}
}

// LiveTally aggregates the responses to the question currently showing.
func (r *ResultsService) LiveTally(ctx context.Context, sessionID uuid.UUID) (*scoring.QuestionTally, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	q := sess.CurrentQuestion()
	if q == nil {
		return nil, ErrNoCurrentQuestion
	}
	return r.tally(ctx, q)
}

// QuestionTally aggregates the responses to one question of a session.
func (r *ResultsService) QuestionTally(ctx context.Context, sessionID, questionID uuid.UUID) (*scoring.QuestionTally, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range sess.Questions {
		if sess.Questions[i].ID == questionID {
			return r.tally(ctx, &sess.Questions[i])
		}
	}
	return nil, fmt.Errorf("question: %w", ErrNotFound)
}

func (r *ResultsService) tally(ctx context.Context, q *model.InteractionQuestion) (*scoring.QuestionTally, error) {
	participants, err := r.store.ListParticipants(ctx, q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	responses, err := r.store.ListResponses(ctx, store.ResponseFilter{SessionID: q.SessionID, QuestionID: &q.ID})
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	t := scoring.Tally(q, participants, responses)
	return &t, nil
}

// Standings ranks every participant of an exam session.
func (r *ResultsService) Standings(ctx context.Context, sessionID uuid.UUID) ([]scoring.Standing, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Type != model.SessionTypeExam {
		return nil, ErrNotScored
	}
	return r.rank(ctx, sess)
}

// Standing returns one participant's row of the exam standings.
func (r *ResultsService) Standing(ctx context.Context, sessionID, participantID uuid.UUID) (*scoring.Standing, error) {
	standings, err := r.Standings(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		if standings[i].ParticipantID == participantID {
			return &standings[i], nil
		}
	}
	return nil, fmt.Errorf("participant: %w", ErrNotFound)
}

// Results tallies every question, and ranks participants for exams.
func (r *ResultsService) Results(ctx context.Context, sessionID uuid.UUID) (*SessionResults, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	participants, err := r.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	responses, err := r.store.ListResponses(ctx, store.ResponseFilter{SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}

	res := &SessionResults{
		SessionID: sess.ID,
		Type:      sess.Type,
		Status:    sess.Status,
		Tallies:   make([]scoring.QuestionTally, 0, len(sess.Questions)),
	}
	for i := range sess.Questions {
		res.Tallies = append(res.Tallies, scoring.Tally(&sess.Questions[i], participants, responses))
	}

	if sess.Type == model.SessionTypeExam {
		res.Standings = scoring.Rank(sess.Questions, participants, responses)
	}
	return res, nil
}

func (r *ResultsService) rank(ctx context.Context, sess *model.InteractionSession) ([]scoring.Standing, error) {
	participants, err := r.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	responses, err := r.store.ListResponses(ctx, store.ResponseFilter{SessionID: sess.ID})
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return scoring.Rank(sess.Questions, participants, responses), nil
}
