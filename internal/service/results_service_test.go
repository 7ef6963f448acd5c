package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stemsi/exstem-live/internal/model"
)

// Two-question exam: correct on the first, the second expires unanswered.
func TestExamScoreWithExpiredQuestion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, qs := f.running(t, model.SessionTypeExam, 2)
	p := f.joinAs(t, sess.ID, "Ana")

	f.submit(t, sess.ID, qs[0], p, "a")
	if _, _, err := f.pacing.AdvanceFrom(ctx, sess.ID, 0); err != nil {
		t.Fatalf("AdvanceFrom 0: %v", err)
	}
	f.submit(t, sess.ID, qs[1], p, model.NoAnswer)
	done, _, err := f.pacing.AdvanceFrom(ctx, sess.ID, 1)
	if err != nil {
		t.Fatalf("AdvanceFrom 1: %v", err)
	}
	if done.Status != model.SessionStatusCompleted {
		t.Fatalf("Status = %s, want completed", done.Status)
	}

	st, err := f.results.Standing(ctx, sess.ID, p.ID)
	if err != nil {
		t.Fatalf("Standing: %v", err)
	}
	if st.Score != 1 || st.Total != 2 || st.Position != 1 {
		t.Errorf("standing = %+v, want 1/2 position 1", st)
	}
	if n := f.publisher.count(sess.ID); n != 1 {
		t.Errorf("standings published %d times, want 1", n)
	}
}

// Three participants split 2:1 on a poll.
func TestPollLiveTally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.createSession(t, model.SessionTypePoll)
	q := f.addChoice(t, sess.ID, "", "x", "y")
	if _, err := f.sessions.Activate(ctx, sess.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if _, err := f.sessions.Start(ctx, sess.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for name, answer := range map[string]string{"p1": "x", "p2": "x", "p3": "y"} {
		f.submit(t, sess.ID, q, f.joinAs(t, sess.ID, name), answer)
	}

	tally, err := f.results.LiveTally(ctx, sess.ID)
	if err != nil {
		t.Fatalf("LiveTally: %v", err)
	}
	if tally.Total != 3 {
		t.Fatalf("Total = %d", tally.Total)
	}
	if tally.Buckets[0].Percentage != 66.7 || tally.Buckets[1].Percentage != 33.3 {
		t.Errorf("percentages = %v, %v; want 66.7, 33.3", tally.Buckets[0].Percentage, tally.Buckets[1].Percentage)
	}

	byID, err := f.results.QuestionTally(ctx, sess.ID, q.ID)
	if err != nil || byID.Total != 3 {
		t.Errorf("QuestionTally = %+v, %v", byID, err)
	}

	if _, err := f.results.Standings(ctx, sess.ID); !errors.Is(err, ErrNotScored) {
		t.Errorf("Standings on poll: err = %v, want ErrNotScored", err)
	}

	res, err := f.results.Results(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(res.Tallies) != 1 || res.Standings != nil {
		t.Fatalf("Results = %+v", res)
	}
	names := map[string][]string{}
	for _, b := range res.Tallies[0].Buckets {
		for _, v := range b.Participants {
			names[b.Answer] = append(names[b.Answer], v.Name)
		}
	}
	sort.Strings(names["x"])
	if got := strings.Join(names["x"], ","); got != "p1,p2" {
		t.Errorf("voters for x = %q, want p1,p2", got)
	}
	if got := strings.Join(names["y"], ","); got != "p3" {
		t.Errorf("voters for y = %q, want p3", got)
	}
}

func TestLiveTallyWithoutCurrentQuestion(t *testing.T) {
	f := newFixture(t)
	sess := f.createSession(t, model.SessionTypePoll)

	if _, err := f.results.LiveTally(context.Background(), sess.ID); !errors.Is(err, ErrNoCurrentQuestion) {
		t.Fatalf("err = %v, want ErrNoCurrentQuestion", err)
	}
}

func TestStandingsTieKeepsJoinOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, qs := f.running(t, model.SessionTypeExam, 1)
	first := f.joinAs(t, sess.ID, "first")
	second := f.joinAs(t, sess.ID, "second")

	f.submit(t, sess.ID, qs[0], second, "a")
	f.submit(t, sess.ID, qs[0], first, "a")

	standings, err := f.results.Standings(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	if standings[0].ParticipantID != first.ID || standings[1].ParticipantID != second.ID {
		t.Errorf("order = %s, %s; want join order", standings[0].Name, standings[1].Name)
	}
	if standings[0].Position != 1 || standings[1].Position != 2 {
		t.Errorf("positions = %d, %d", standings[0].Position, standings[1].Position)
	}
}
