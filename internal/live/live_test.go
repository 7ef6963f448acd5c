package live

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/service"
	"github.com/stemsi/exstem-live/internal/store"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

type env struct {
	clock    fakeClock
	store    *store.Memory
	sessions *service.SessionService
	pacing   *service.PacingService
	join     *service.JoinService
	answers  *service.AnswerService
	results  *service.ResultsService
	sync     *service.SyncService
	cfg      LoopConfig
}

func newEnv(t *testing.T, policy AutoAdvancePolicy) *env {
	t.Helper()
	log := zerolog.Nop()
	e := &env{
		clock: clockwork.NewFakeClock(),
		store: store.NewMemory(),
	}
	e.sessions = service.NewSessionService(e.store, service.NewSessionLocks(), service.NopSnapshotCache{}, service.NopScorePublisher{}, log)
	e.pacing = service.NewPacingService(e.sessions, log)
	e.join = service.NewJoinService(e.sessions, "http://localhost:3000/join", log)
	e.answers = service.NewAnswerService(e.store, service.NopSnapshotCache{}, log)
	e.results = service.NewResultsService(e.sessions)
	e.sync = service.NewSyncService(e.sessions)
	e.cfg = LoopConfig{Clock: e.clock, PollInterval: 1500 * time.Millisecond, Policy: policy}
	return e
}

// prepare creates an active session with one choice question per duration.
// A zero duration leaves the question untimed.
func (e *env) prepare(t *testing.T, typ model.SessionType, durations ...int) (*model.InteractionSession, []*model.InteractionQuestion) {
	t.Helper()
	ctx := context.Background()
	sess, err := e.sessions.Create(ctx, model.CreateSessionRequest{Name: "Live " + string(typ), Type: string(typ)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	qs := make([]*model.InteractionQuestion, len(durations))
	for i, d := range durations {
		req := model.AddQuestionRequest{
			Text:            "Pick one",
			Type:            string(model.QuestionTypeMultipleChoice),
			Options:         []model.OptionInput{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}},
			CorrectOptionID: "a",
		}
		if d > 0 {
			secs := d
			req.DurationSeconds = &secs
		}
		if qs[i], err = e.sessions.AddQuestion(ctx, sess.ID, req); err != nil {
			t.Fatalf("AddQuestion: %v", err)
		}
	}
	if _, err := e.sessions.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	return sess, qs
}

// start prepares a session and starts it.
func (e *env) start(t *testing.T, typ model.SessionType, durations ...int) (*model.InteractionSession, []*model.InteractionQuestion) {
	t.Helper()
	sess, qs := e.prepare(t, typ, durations...)
	if _, err := e.sessions.Start(context.Background(), sess.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return sess, qs
}

func (e *env) joinAs(t *testing.T, sessionID uuid.UUID, name string) *model.Participant {
	t.Helper()
	p, _, err := e.join.Join(context.Background(), model.JoinRequest{
		SessionID: &sessionID,
		Fields:    map[string]string{model.NameField: name},
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return p
}

func (e *env) session(t *testing.T, id uuid.UUID) *model.InteractionSession {
	t.Helper()
	sess, err := e.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	return sess
}

func (e *env) responses(t *testing.T, sessionID, participantID uuid.UUID) []model.InteractionResponse {
	t.Helper()
	rs, err := e.store.ListResponses(context.Background(), store.ResponseFilter{SessionID: sessionID, ParticipantID: &participantID})
	if err != nil {
		t.Fatalf("ListResponses: %v", err)
	}
	return rs
}

func indexOf(sess *model.InteractionSession) int {
	if sess.CurrentQuestionIndex == nil {
		return -1
	}
	return *sess.CurrentQuestionIndex
}

// fired drains one expiry from c, failing if none is pending.
func fired(t *testing.T, c *Countdown) {
	t.Helper()
	select {
	case <-c.C():
	default:
		t.Fatal("countdown did not fire")
	}
}
