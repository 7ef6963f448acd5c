package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
	"github.com/stemsi/exstem-live/internal/store"
)

// LifecycleHook is told when a session starts running and when it stops.
// Implementations must not block.
type LifecycleHook interface {
	SessionStarted(s *model.InteractionSession)
	SessionStopped(sessionID uuid.UUID)
}

// SessionService owns the session state machine and the question list.
type SessionService struct {
	store  store.Store
	locks  *SessionLocks
	cache  SnapshotCache
	scores ScorePublisher
	hooks  []LifecycleHook
	log    zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	st store.Store,
	locks *SessionLocks,
	cache SnapshotCache,
	scores ScorePublisher,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:  st,
		locks:  locks,
		cache:  cache,
		scores: scores,
		log:    log.With().Str("component", "session_service").Logger(),
	}
}

// AddHook registers h for start and stop notifications. Call before serving.
func (s *SessionService) AddHook(h LifecycleHook) {
	s.hooks = append(s.hooks, h)
}

// Create inserts a new session as draft.
func (s *SessionService) Create(ctx context.Context, req model.CreateSessionRequest) (*model.InteractionSession, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "name is required"}}
	}

	sess := &model.InteractionSession{
		Name:           name,
		Type:           model.SessionType(req.Type),
		Status:         model.SessionStatusDraft,
		RequiredFields: normalizeFields(req.RequiredFields),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("type", string(sess.Type)).
		Msg("Session created")
	return sess, nil
}

// normalizeFields trims, drops blanks and duplicates, and leaves out the
// name field, which is always required.
func normalizeFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || f == model.NameField || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// AddQuestion appends a question to a session that has not started yet.
func (s *SessionService) AddQuestion(ctx context.Context, sessionID uuid.UUID, req model.AddQuestionRequest) (*model.InteractionQuestion, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Started() {
		return nil, ErrQuestionsLocked
	}

	q, err := buildQuestion(req)
	if err != nil {
		return nil, err
	}
	q.SessionID = sessionID
	q.OrderNum = len(sess.Questions)

	if err := s.store.CreateQuestion(ctx, q); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound("session", err)
		}
		return nil, fmt.Errorf("create question: %w", err)
	}
	s.cache.Invalidate(ctx, sessionID)

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Int("order_num", q.OrderNum).
		Msg("Question added")
	return q, nil
}

// buildQuestion checks the option rules binding tags cannot express.
func buildQuestion(req model.AddQuestionRequest) (*model.InteractionQuestion, error) {
	v := &ValidationError{}
	q := &model.InteractionQuestion{
		Text:            strings.TrimSpace(req.Text),
		Type:            model.QuestionType(req.Type),
		DurationSeconds: req.DurationSeconds,
	}
	if q.Text == "" {
		v.add("text", "text is required")
	}

	switch q.Type {
	case model.QuestionTypeMultipleChoice:
		if len(req.Options) < 2 {
			v.add("options", "multiple choice questions need at least 2 options")
		}
		seen := make(map[string]bool, len(req.Options))
		for _, o := range req.Options {
			id := strings.TrimSpace(o.ID)
			if id == "" || seen[id] {
				v.add("options", "option ids must be unique and non-empty")
				break
			}
			seen[id] = true
			q.Options = append(q.Options, model.Option{ID: id, Text: strings.TrimSpace(o.Text)})
		}
		if req.CorrectOptionID != "" {
			if !seen[req.CorrectOptionID] {
				v.add("correct_option_id", "correct_option_id must name one of the options")
			}
			q.CorrectOptionID = req.CorrectOptionID
		}
	case model.QuestionTypeText:
		if len(req.Options) > 0 {
			v.add("options", "text questions take no options")
		}
		if req.CorrectOptionID != "" {
			v.add("correct_option_id", "text questions take no correct option")
		}
	default:
		v.add("type", "type must be multiple_choice or text")
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return q, nil
}

// Get retrieves a session with its questions.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, notFound("session", err)
	}
	if sess.Questions, err = s.store.ListQuestions(ctx, id); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return sess, nil
}

// List retrieves sessions in creation order, without questions.
func (s *SessionService) List(ctx context.Context, f store.SessionFilter) ([]model.InteractionSession, error) {
	sessions, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.InteractionSession{}
	}
	return sessions, nil
}

// ActiveSession returns the session currently open for joining.
func (s *SessionService) ActiveSession(ctx context.Context) (*model.InteractionSession, error) {
	active := model.SessionStatusActive
	sessions, err := s.store.ListSessions(ctx, store.SessionFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNothingToJoin
	}
	return s.Get(ctx, sessions[0].ID)
}

// activateAttempts bounds retries when another activation commits first.
const activateAttempts = 3

// Activate makes id the single active session. Any other active session
// becomes inactive in the same store step. Activating an active session is a no-op.
func (s *SessionService) Activate(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	for attempt := 1; ; attempt++ {
		sess, err := s.activateOnce(ctx, id)
		if !errors.Is(err, store.ErrConflict) {
			return sess, err
		}
		if attempt == activateAttempts {
			return nil, fmt.Errorf("activate: %v: %w", err, ErrInvalidTransition)
		}
		s.log.Warn().Err(err).Str("session_id", id.String()).Int("attempt", attempt).Msg("Activation raced another, retrying")
	}
}

// activateOnce holds the locks of id and of every session it retires, so a
// concurrent Start of a retired session sees it inactive.
func (s *SessionService) activateOnce(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	active := model.SessionStatusActive
	previous, err := s.store.ListSessions(ctx, store.SessionFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	locked := map[uuid.UUID]bool{id: true}
	ids := []uuid.UUID{id}
	for _, p := range previous {
		locked[p.ID] = true
		ids = append(ids, p.ID)
	}
	unlock := s.locks.LockAll(ids...)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusActive {
		return sess, nil
	}
	if !sess.CanActivate() {
		return nil, fmt.Errorf("activate from %s: %w", sess.Status, ErrInvalidTransition)
	}

	// Re-read under the locks; a session activated since must be locked too.
	previous, err = s.store.ListSessions(ctx, store.SessionFilter{Status: &active})
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	for _, p := range previous {
		if !locked[p.ID] {
			return nil, fmt.Errorf("session %s became active: %w", p.ID, store.ErrConflict)
		}
	}

	if err := s.store.ActivateExclusive(ctx, id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, notFound("session", err)
		case errors.Is(err, store.ErrConflict):
			return nil, err
		}
		return nil, fmt.Errorf("activate: %w", err)
	}

	for _, p := range previous {
		s.cache.Invalidate(ctx, p.ID)
		s.log.Info().Str("session_id", p.ID.String()).Msg("Session deactivated by activation of another")
	}
	s.cache.Invalidate(ctx, id)

	sess.Status = model.SessionStatusActive
	s.log.Info().Str("session_id", id.String()).Msg("Session activated")
	return sess, nil
}

// Start moves an active session to in_progress with the first question shown.
func (s *SessionService) Start(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusActive {
		return nil, fmt.Errorf("start from %s: %w", sess.Status, ErrInvalidTransition)
	}
	if len(sess.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	now := time.Now().UTC()
	status := model.SessionStatusInProgress
	first := 0
	if err := s.store.UpdateSession(ctx, id, store.SessionPatch{
		Status:           &status,
		SetQuestionIndex: true,
		QuestionIndex:    &first,
		StartedAt:        &now,
	}); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.cache.Invalidate(ctx, id)

	sess.Status = status
	sess.CurrentQuestionIndex = &first
	sess.StartedAt = &now

	s.log.Info().
		Str("session_id", id.String()).
		Int("questions", len(sess.Questions)).
		Msg("Session started")

	for _, h := range s.hooks {
		h.SessionStarted(sess)
	}
	return sess, nil
}

// Complete ends a running session. Completing a completed session returns
// it unchanged.
func (s *SessionService) Complete(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.completeLocked(ctx, sess)
}

// completeLocked expects the caller to hold the session lock.
func (s *SessionService) completeLocked(ctx context.Context, sess *model.InteractionSession) (*model.InteractionSession, error) {
	switch sess.Status {
	case model.SessionStatusCompleted:
		return sess, nil
	case model.SessionStatusInProgress:
	default:
		return nil, fmt.Errorf("complete from %s: %w", sess.Status, ErrInvalidTransition)
	}

	now := time.Now().UTC()
	status := model.SessionStatusCompleted
	if err := s.store.UpdateSession(ctx, sess.ID, store.SessionPatch{
		Status:           &status,
		SetQuestionIndex: true,
		QuestionIndex:    nil,
		CompletedAt:      &now,
	}); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	s.cache.Invalidate(ctx, sess.ID)

	sess.Status = status
	sess.CurrentQuestionIndex = nil
	sess.CompletedAt = &now

	s.log.Info().Str("session_id", sess.ID.String()).Msg("Session completed")

	if sess.Type == model.SessionTypeExam {
		s.publishStandings(ctx, sess)
	}
	for _, h := range s.hooks {
		h.SessionStopped(sess.ID)
	}
	return sess, nil
}

// publishStandings never fails the completion; standings stay computable.
func (s *SessionService) publishStandings(ctx context.Context, sess *model.InteractionSession) {
	participants, err := s.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to load participants for scoring")
		return
	}
	responses, err := s.store.ListResponses(ctx, store.ResponseFilter{SessionID: sess.ID})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to load responses for scoring")
		return
	}

	standings := scoring.Rank(sess.Questions, participants, responses)
	if err := s.scores.PublishStandings(ctx, sess.ID, standings); err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to publish standings")
	}
}

// Deactivate retires an active or running session.
func (s *SessionService) Deactivate(ctx context.Context, id uuid.UUID) (*model.InteractionSession, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == model.SessionStatusInactive {
		return sess, nil
	}
	if !sess.Status.CanTransitionTo(model.SessionStatusInactive) {
		return nil, fmt.Errorf("deactivate from %s: %w", sess.Status, ErrInvalidTransition)
	}

	status := model.SessionStatusInactive
	if err := s.store.UpdateSession(ctx, id, store.SessionPatch{
		Status:           &status,
		SetQuestionIndex: true,
		QuestionIndex:    nil,
	}); err != nil {
		return nil, fmt.Errorf("deactivate session: %w", err)
	}
	s.cache.Invalidate(ctx, id)

	wasRunning := sess.Status == model.SessionStatusInProgress
	sess.Status = status
	sess.CurrentQuestionIndex = nil

	s.log.Info().Str("session_id", id.String()).Msg("Session deactivated")

	if wasRunning {
		for _, h := range s.hooks {
			h.SessionStopped(id)
		}
	}
	return sess, nil
}
