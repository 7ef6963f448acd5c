package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/scoring"
	"github.com/stemsi/exstem-live/internal/store"
)

// recordingPublisher captures published standings.
type recordingPublisher struct {
	mu    sync.Mutex
	calls map[uuid.UUID][][]scoring.Standing
}

func (p *recordingPublisher) PublishStandings(_ context.Context, id uuid.UUID, st []scoring.Standing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[uuid.UUID][][]scoring.Standing)
	}
	p.calls[id] = append(p.calls[id], st)
	return nil
}

func (p *recordingPublisher) count(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls[id])
}

// recordingHook captures lifecycle notifications.
type recordingHook struct {
	mu      sync.Mutex
	started []uuid.UUID
	stopped []uuid.UUID
}

func (h *recordingHook) SessionStarted(s *model.InteractionSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, s.ID)
}

func (h *recordingHook) SessionStopped(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = append(h.stopped, id)
}

type fixture struct {
	store     *store.Memory
	locks     *SessionLocks
	publisher *recordingPublisher
	hook      *recordingHook
	sessions  *SessionService
	pacing    *PacingService
	join      *JoinService
	answers   *AnswerService
	results   *ResultsService
	sync      *SyncService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	f := &fixture{
		store:     store.NewMemory(),
		publisher: &recordingPublisher{},
		hook:      &recordingHook{},
		locks:     NewSessionLocks(),
	}
	f.sessions = NewSessionService(f.store, f.locks, NopSnapshotCache{}, f.publisher, log)
	f.sessions.AddHook(f.hook)
	f.pacing = NewPacingService(f.sessions, log)
	f.join = NewJoinService(f.sessions, "https://live.example.test/join", log)
	f.answers = NewAnswerService(f.store, NopSnapshotCache{}, log)
	f.results = NewResultsService(f.sessions)
	f.sync = NewSyncService(f.sessions)
	return f
}

func (f *fixture) createSession(t *testing.T, typ model.SessionType, fields ...string) *model.InteractionSession {
	t.Helper()
	sess, err := f.sessions.Create(context.Background(), model.CreateSessionRequest{
		Name:           "Session " + string(typ),
		Type:           string(typ),
		RequiredFields: fields,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

func (f *fixture) addChoice(t *testing.T, sessionID uuid.UUID, correct string, options ...string) *model.InteractionQuestion {
	t.Helper()
	req := model.AddQuestionRequest{Text: "Pick one", Type: string(model.QuestionTypeMultipleChoice), CorrectOptionID: correct}
	for _, o := range options {
		req.Options = append(req.Options, model.OptionInput{ID: o, Text: "Option " + o})
	}
	q, err := f.sessions.AddQuestion(context.Background(), sessionID, req)
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	return q
}

// running creates a session with the given questions and starts it.
func (f *fixture) running(t *testing.T, typ model.SessionType, questions int) (*model.InteractionSession, []*model.InteractionQuestion) {
	t.Helper()
	ctx := context.Background()
	sess := f.createSession(t, typ)
	qs := make([]*model.InteractionQuestion, questions)
	for i := range qs {
		qs[i] = f.addChoice(t, sess.ID, "a", "a", "b")
	}
	if _, err := f.sessions.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	started, err := f.sessions.Start(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return started, qs
}

func (f *fixture) joinAs(t *testing.T, sessionID uuid.UUID, name string) *model.Participant {
	t.Helper()
	p, _, err := f.join.Join(context.Background(), model.JoinRequest{
		SessionID: &sessionID,
		Fields:    map[string]string{model.NameField: name},
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return p
}

func (f *fixture) submit(t *testing.T, sessionID uuid.UUID, q *model.InteractionQuestion, p *model.Participant, answer string) {
	t.Helper()
	_, err := f.answers.Submit(context.Background(), model.SubmitInput{
		SessionID:     sessionID,
		QuestionID:    q.ID,
		ParticipantID: p.ID,
		Answer:        answer,
		TimedOut:      answer == model.NoAnswer,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func activeCount(t *testing.T, st store.Store) int {
	t.Helper()
	active := model.SessionStatusActive
	sessions, err := st.ListSessions(context.Background(), store.SessionFilter{Status: &active})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	return len(sessions)
}
