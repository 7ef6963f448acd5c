package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
	"github.com/stemsi/exstem-live/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess := &model.InteractionSession{
		Name:           "Town hall",
		Type:           model.SessionTypePoll,
		Status:         model.SessionStatusDraft,
		RequiredFields: []string{"email"},
	}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	idx := 1
	if err := s.UpdateSession(ctx, sess.ID, store.SessionPatch{SetQuestionIndex: true, QuestionIndex: &idx}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Town hall" || got.Type != model.SessionTypePoll {
		t.Errorf("unexpected session %+v", got)
	}
	if len(got.RequiredFields) != 1 || got.RequiredFields[0] != "email" {
		t.Errorf("required fields = %v", got.RequiredFields)
	}
	if got.CurrentQuestionIndex == nil || *got.CurrentQuestionIndex != 1 {
		t.Errorf("index = %v, want 1", got.CurrentQuestionIndex)
	}

	if _, err := s.GetSession(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestActivateExclusive(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first := &model.InteractionSession{Name: "one", Type: model.SessionTypeExam, Status: model.SessionStatusDraft}
	second := &model.InteractionSession{Name: "two", Type: model.SessionTypeExam, Status: model.SessionStatusDraft}
	for _, sess := range []*model.InteractionSession{first, second} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := s.ActivateExclusive(ctx, first.ID); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if err := s.ActivateExclusive(ctx, second.ID); err != nil {
		t.Fatalf("activate second: %v", err)
	}

	active := model.SessionStatusActive
	got, err := s.ListSessions(ctx, store.SessionFilter{Status: &active})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != second.ID {
		t.Fatalf("expected only second active, got %+v", got)
	}

	if err := s.ActivateExclusive(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// The failed call must not have deactivated the current one.
	got, _ = s.ListSessions(ctx, store.SessionFilter{Status: &active})
	if len(got) != 1 {
		t.Fatalf("rollback failed, %d active", len(got))
	}
}

func TestQuestionsParticipantsResponses(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	sess := &model.InteractionSession{Name: "quiz", Type: model.SessionTypeExam, Status: model.SessionStatusInProgress}
	if err := s.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	dur := 30
	q := &model.InteractionQuestion{
		SessionID:       sess.ID,
		Text:            "2+2?",
		Type:            model.QuestionTypeMultipleChoice,
		Options:         []model.Option{{ID: "A", Text: "4"}, {ID: "B", Text: "5"}},
		CorrectOptionID: "A",
		DurationSeconds: &dur,
	}
	if err := s.CreateQuestion(ctx, q); err != nil {
		t.Fatalf("create question: %v", err)
	}
	qs, err := s.ListQuestions(ctx, sess.ID)
	if err != nil || len(qs) != 1 {
		t.Fatalf("list questions: %v (%d)", err, len(qs))
	}
	if len(qs[0].Options) != 2 || qs[0].DurationSeconds == nil || *qs[0].DurationSeconds != 30 {
		t.Errorf("question not round-tripped: %+v", qs[0])
	}

	p := &model.Participant{SessionID: sess.ID, Name: "Sari", Fields: map[string]string{"email": "sari@example.com"}}
	if err := s.CreateParticipant(ctx, p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	gotP, err := s.GetParticipant(ctx, p.ID)
	if err != nil || gotP.Fields["email"] != "sari@example.com" {
		t.Fatalf("get participant: %v %+v", err, gotP)
	}

	r := &model.InteractionResponse{SessionID: sess.ID, QuestionID: q.ID, ParticipantID: p.ID, Answer: "A"}
	if err := s.InsertResponse(ctx, r); err != nil {
		t.Fatalf("insert response: %v", err)
	}
	dup := &model.InteractionResponse{SessionID: sess.ID, QuestionID: q.ID, ParticipantID: p.ID, Answer: "B"}
	if err := s.InsertResponse(ctx, dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	rs, err := s.ListResponses(ctx, store.ResponseFilter{SessionID: sess.ID, QuestionID: &q.ID})
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(rs) != 1 || rs[0].Answer != "A" {
		t.Fatalf("unexpected responses %+v", rs)
	}
}
