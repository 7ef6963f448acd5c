package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

// AnswerService records participant answers. A response is write-once.
type AnswerService struct {
	store store.Store
	cache SnapshotCache
	log   zerolog.Logger
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(st store.Store, cache SnapshotCache, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		store: st,
		cache: cache,
		log:   log.With().Str("component", "answer_service").Logger(),
	}
}

// Submit validates in and stores it. A second answer for the same
// participant and question returns ErrDuplicateSubmission and leaves the
// first in place.
func (s *AnswerService) Submit(ctx context.Context, in model.SubmitInput) (*model.InteractionResponse, error) {
	sess, err := s.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, notFound("session", err)
	}
	if sess.Status != model.SessionStatusInProgress {
		return nil, ErrSessionNotRunning
	}

	p, err := s.store.GetParticipant(ctx, in.ParticipantID)
	if err != nil {
		return nil, notFound("participant", err)
	}
	if p.SessionID != sess.ID {
		return nil, fmt.Errorf("participant: %w", ErrNotFound)
	}

	q, err := s.question(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := checkAnswer(q, in); err != nil {
		return nil, err
	}

	resp := &model.InteractionResponse{
		SessionID:     in.SessionID,
		QuestionID:    in.QuestionID,
		ParticipantID: in.ParticipantID,
		Answer:        in.Answer,
		TimedOut:      in.TimedOut,
	}
	if err := s.store.InsertResponse(ctx, resp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateSubmission
		}
		return nil, fmt.Errorf("insert response: %w", err)
	}
	s.cache.Invalidate(ctx, in.SessionID)

	s.log.Debug().
		Str("session_id", in.SessionID.String()).
		Str("question_id", in.QuestionID.String()).
		Str("participant_id", in.ParticipantID.String()).
		Bool("timed_out", in.TimedOut).
		Msg("Response recorded")
	return resp, nil
}

func (s *AnswerService) question(ctx context.Context, in model.SubmitInput) (*model.InteractionQuestion, error) {
	questions, err := s.store.ListQuestions(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	for i := range questions {
		if questions[i].ID == in.QuestionID {
			return &questions[i], nil
		}
	}
	return nil, fmt.Errorf("question: %w", ErrNotFound)
}

// checkAnswer accepts an option id for multiple choice, or the no-answer
// sentinel when the countdown ran out. Text questions take any string.
func checkAnswer(q *model.InteractionQuestion, in model.SubmitInput) error {
	if q.Type != model.QuestionTypeMultipleChoice {
		return nil
	}
	if in.Answer == model.NoAnswer {
		if in.TimedOut {
			return nil
		}
		return &ValidationError{Fields: map[string]string{"answer": "answer is required"}}
	}
	if !q.HasOption(in.Answer) {
		return &ValidationError{Fields: map[string]string{"answer": "answer must be one of the question's option ids"}}
	}
	return nil
}
