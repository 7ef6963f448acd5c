package live

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-live/internal/model"
)

// eventually polls cond in real time; the loops run on their own goroutines.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSupervisorAdvancesExamWithoutHostDevice(t *testing.T) {
	e := newEnv(t, AutoAdvanceExam)
	sup := NewSupervisor(e.sync, e.pacing, e.cfg, zerolog.Nop())
	e.sessions.AddHook(sup)
	defer sup.Shutdown(context.Background()) //nolint:errcheck

	sess, _ := e.start(t, model.SessionTypeExam, 10, 10)
	if !sup.Running(sess.ID) {
		t.Fatal("console not started by the start hook")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for ticker and countdown: %v", err)
	}
	if left, ok := sup.Remaining(sess.ID); !ok || left != 10*time.Second {
		t.Errorf("Remaining = %v, %v", left, ok)
	}

	e.clock.Advance(10 * time.Second)
	eventually(t, "question 1", func() bool { return indexOf(e.session(t, sess.ID)) == 1 })

	if err := e.clock.BlockUntilContext(ctx, 2); err != nil {
		t.Fatalf("waiting for rearm: %v", err)
	}
	e.clock.Advance(10 * time.Second)
	eventually(t, "completion", func() bool {
		return e.session(t, sess.ID).Status == model.SessionStatusCompleted
	})
	eventually(t, "console exit", func() bool { return !sup.Running(sess.ID) })
}

func TestSupervisorResumeAndShutdown(t *testing.T) {
	e := newEnv(t, AutoAdvanceExam)
	first, _ := e.start(t, model.SessionTypeExam, 10)
	sup := NewSupervisor(e.sync, e.pacing, e.cfg, zerolog.Nop())

	if err := sup.Resume(context.Background(), e.sessions); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !sup.Running(first.ID) {
		t.Fatal("in-progress session not resumed")
	}
	sup.Start(first.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sup.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if sup.Running(first.ID) {
		t.Error("console still registered after shutdown")
	}

	sup.Start(uuid.New())
	if n := len(sup.hosts); n != 0 {
		t.Errorf("%d consoles started after shutdown", n)
	}
}

func TestSupervisorStopOnDeactivate(t *testing.T) {
	e := newEnv(t, AutoAdvanceExam)
	sup := NewSupervisor(e.sync, e.pacing, e.cfg, zerolog.Nop())
	e.sessions.AddHook(sup)
	defer sup.Shutdown(context.Background()) //nolint:errcheck

	sess, _ := e.start(t, model.SessionTypeExam, 10)
	if _, err := e.sessions.Deactivate(context.Background(), sess.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if sup.Running(sess.ID) {
		t.Error("console still running after deactivate")
	}
	if _, ok := sup.Remaining(sess.ID); ok {
		t.Error("Remaining reported a countdown for a stopped console")
	}
}
