package service

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.join.Resolve(ctx, nil); !errors.Is(err, ErrNothingToJoin) {
		t.Fatalf("no active session: err = %v, want ErrNothingToJoin", err)
	}

	draft := f.createSession(t, model.SessionTypePoll)
	active := f.createSession(t, model.SessionTypePoll)
	if _, err := f.sessions.Activate(ctx, active.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	got, err := f.join.Resolve(ctx, nil)
	if err != nil || got.ID != active.ID {
		t.Errorf("fallback = %v, %v; want active session", got, err)
	}

	// An explicit id wins even over the active session, whatever its status.
	got, err = f.join.Resolve(ctx, &draft.ID)
	if err != nil || got.ID != draft.ID {
		t.Errorf("explicit = %v, %v; want draft session", got, err)
	}

	unknown := uuid.New()
	if _, err := f.join.Resolve(ctx, &unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown: err = %v, want ErrNotFound", err)
	}
}

func TestJoinRequiredFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.createSession(t, model.SessionTypeSurvey, "email")

	_, _, err := f.join.Join(ctx, model.JoinRequest{
		SessionID: &sess.ID,
		Fields:    map[string]string{"name": "Ana", "email": "   "},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := ve.Fields["email"]; !ok || len(ve.Fields) != 1 {
		t.Errorf("Fields = %v, want only email", ve.Fields)
	}

	roster, _ := f.store.ListParticipants(ctx, sess.ID)
	if len(roster) != 0 {
		t.Fatalf("participants = %d after failed join, want 0", len(roster))
	}

	_, _, err = f.join.Join(ctx, model.JoinRequest{SessionID: &sess.ID, Fields: map[string]string{}})
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Errorf("empty join: err = %v, want name and email missing", err)
	}
}

func TestJoinCreatesParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.createSession(t, model.SessionTypeSurvey, "email")

	p, joined, err := f.join.Join(ctx, model.JoinRequest{
		SessionID: &sess.ID,
		Fields:    map[string]string{"name": " Ana ", "email": "ana@example.test", "extra": "dropped"},
	})
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.ID != sess.ID || p.SessionID != sess.ID {
		t.Errorf("joined session = %s, participant session = %s", joined.ID, p.SessionID)
	}
	if p.Name != "Ana" {
		t.Errorf("Name = %q, want trimmed", p.Name)
	}
	if p.Fields["email"] != "ana@example.test" {
		t.Errorf("Fields = %v", p.Fields)
	}
	if _, ok := p.Fields["extra"]; ok {
		t.Errorf("unrequested field kept: %v", p.Fields)
	}
}

func TestJoinSameNameTwice(t *testing.T) {
	f := newFixture(t)
	sess := f.createSession(t, model.SessionTypePoll)

	a := f.joinAs(t, sess.ID, "Ana")
	b := f.joinAs(t, sess.ID, "Ana")
	if a.ID == b.ID {
		t.Fatal("same name joined twice produced one participant")
	}
}

func TestJoinLink(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	withID, err := f.join.JoinLink(&id)
	if err != nil {
		t.Fatalf("JoinLink: %v", err)
	}
	u, err := url.Parse(withID)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Query().Get(JoinLinkParam) != id.String() {
		t.Errorf("link %q lacks session id", withID)
	}

	bare, err := f.join.JoinLink(nil)
	if err != nil {
		t.Fatalf("JoinLink(nil): %v", err)
	}
	if bare != "https://live.example.test/join" {
		t.Errorf("bare link = %q", bare)
	}
}
