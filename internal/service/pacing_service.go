package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// PacingService moves the host pointer of a running session. It is the only
// writer of CurrentQuestionIndex while a session is in progress.
type PacingService struct {
	sessions *SessionService
	log      zerolog.Logger
}

// NewPacingService creates a new PacingService.
func NewPacingService(sessions *SessionService, log zerolog.Logger) *PacingService {
	return &PacingService{
		sessions: sessions,
		log:      log.With().Str("component", "pacing_service").Logger(),
	}
}

// Next shows the following question, or completes the session when the
// last question is showing.
func (p *PacingService) Next(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	unlock := p.sessions.locks.Lock(id)
	defer unlock()

	sess, err := p.running(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.advanceLocked(ctx, sess)
}

// Previous shows the preceding question. The first question is a floor.
// Responses already recorded are kept.
func (p *PacingService) Previous(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	unlock := p.sessions.locks.Lock(id)
	defer unlock()

	sess, err := p.running(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := currentIndex(sess) - 1
	if idx < 0 {
		idx = 0
	}
	if err := p.moveTo(ctx, sess, idx); err != nil {
		return nil, err
	}
	return sess, nil
}

// AdvanceFrom advances only while question from is still showing. A manual
// Next and a countdown expiry racing on the same question advance once.
// A session that is no longer running is reported as not advanced.
func (p *PacingService) AdvanceFrom(ctx context.Context, id uuid.UUID, from int) (*model.InteractionSession, bool, error) {
	unlock := p.sessions.locks.Lock(id)
	defer unlock()

	sess, err := p.sessions.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if sess.Status != model.SessionStatusInProgress || currentIndex(sess) != from {
		return sess, false, nil
	}

	sess, err = p.advanceLocked(ctx, sess)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (p *PacingService) running(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	sess, err := p.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, ErrSessionNotRunning
	}
	return sess, nil
}

func (p *PacingService) advanceLocked(ctx context.Context, sess *model.InteractionSession) (*model.InteractionSession, error) {
	idx := currentIndex(sess)
	if idx >= len(sess.Questions)-1 {
		return p.sessions.completeLocked(ctx, sess)
	}
	if err := p.moveTo(ctx, sess, idx+1); err != nil {
		return nil, err
	}
	return sess, nil
}

func (p *PacingService) moveTo(ctx context.Context, sess *model.InteractionSession, idx int) error {
	if err := p.sessions.store.UpdateSession(ctx, sess.ID, store.SessionPatch{
		SetQuestionIndex: true,
		QuestionIndex:    &idx,
	}); err != nil {
		return fmt.Errorf("move question pointer: %w", err)
	}
	p.sessions.cache.Invalidate(ctx, sess.ID)
	sess.CurrentQuestionIndex = &idx

	p.log.Debug().
		Str("session_id", sess.ID.String()).
		Int("question_index", idx).
		Msg("Question pointer moved")
	return nil
}

// currentIndex treats a missing pointer on a running session as the first question.
func currentIndex(sess *model.InteractionSession) int {
	if sess.CurrentQuestionIndex == nil {
		return 0
	}
	return *sess.CurrentQuestionIndex
}
