package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

func mcQuestion(correct string, options ...string) model.InteractionQuestion {
	q := model.InteractionQuestion{
		ID:              uuid.New(),
		Type:            model.QuestionTypeMultipleChoice,
		CorrectOptionID: correct,
	}
	for _, o := range options {
		q.Options = append(q.Options, model.Option{ID: o, Text: "Option " + o})
	}
	return q
}

func respond(q model.InteractionQuestion, p model.Participant, answer string) model.InteractionResponse {
	return model.InteractionResponse{
		ID:            uuid.New(),
		QuestionID:    q.ID,
		ParticipantID: p.ID,
		Answer:        answer,
		TimedOut:      answer == model.NoAnswer,
	}
}

func participants(names ...string) []model.Participant {
	out := make([]model.Participant, len(names))
	for i, n := range names {
		out[i] = model.Participant{ID: uuid.New(), Name: n}
	}
	return out
}

func TestTallyPollSplit(t *testing.T) {
	q := mcQuestion("", "x", "y")
	ps := participants("p1", "p2", "p3")
	rs := []model.InteractionResponse{
		respond(q, ps[0], "x"),
		respond(q, ps[1], "x"),
		respond(q, ps[2], "y"),
	}

	got := Tally(&q, ps, rs)
	if got.Total != 3 {
		t.Fatalf("Total = %d, want 3", got.Total)
	}
	if len(got.Buckets) != 2 {
		t.Fatalf("len(Buckets) = %d, want 2", len(got.Buckets))
	}
	want := []struct {
		answer string
		count  int
		pct    float64
	}{
		{"x", 2, 66.7},
		{"y", 1, 33.3},
	}
	for i, w := range want {
		b := got.Buckets[i]
		if b.Answer != w.answer || b.Count != w.count || b.Percentage != w.pct {
			t.Errorf("bucket %d = {%s %d %.1f}, want {%s %d %.1f}",
				i, b.Answer, b.Count, b.Percentage, w.answer, w.count, w.pct)
		}
	}
}

func TestTallyNamesVoters(t *testing.T) {
	q := mcQuestion("", "x", "y")
	ps := participants("Ana", "Ben", "Cy")
	stranger := model.Participant{ID: uuid.New(), Name: "not joined"}

	got := Tally(&q, ps, []model.InteractionResponse{
		respond(q, ps[0], "x"),
		respond(q, ps[2], "x"),
		respond(q, ps[1], "y"),
		respond(q, stranger, "y"),
	})

	want := [][]Voter{
		{{ID: ps[0].ID, Name: "Ana"}, {ID: ps[2].ID, Name: "Cy"}},
		{{ID: ps[1].ID, Name: "Ben"}, {ID: stranger.ID}},
	}
	for i, w := range want {
		b := got.Buckets[i]
		if len(b.Participants) != len(w) {
			t.Fatalf("bucket %s voters = %+v, want %+v", b.Answer, b.Participants, w)
		}
		for j := range w {
			if b.Participants[j] != w[j] {
				t.Errorf("bucket %s voter %d = %+v, want %+v", b.Answer, j, b.Participants[j], w[j])
			}
		}
	}
}

func TestTallyListsUnchosenOptions(t *testing.T) {
	q := mcQuestion("b", "a", "b", "c")
	ps := participants("p1")

	got := Tally(&q, ps, []model.InteractionResponse{respond(q, ps[0], "b")})
	if len(got.Buckets) != 3 {
		t.Fatalf("len(Buckets) = %d, want 3", len(got.Buckets))
	}
	if got.Buckets[0].Count != 0 || got.Buckets[0].Percentage != 0 {
		t.Errorf("unchosen bucket = %+v", got.Buckets[0])
	}
	if !got.Buckets[1].Correct || got.Buckets[1].Percentage != 100 {
		t.Errorf("correct bucket = %+v", got.Buckets[1])
	}
}

func TestTallyNoAnswerBucketTrails(t *testing.T) {
	q := mcQuestion("a", "a", "b")
	ps := participants("p1", "p2")

	got := Tally(&q, ps, []model.InteractionResponse{
		respond(q, ps[0], model.NoAnswer),
		respond(q, ps[1], "a"),
	})
	last := got.Buckets[len(got.Buckets)-1]
	if last.Answer != model.NoAnswer || last.Label != NoAnswerLabel || last.Count != 1 {
		t.Errorf("last bucket = %+v, want the no-answer bucket", last)
	}
	if last.Percentage != 50 {
		t.Errorf("no-answer percentage = %v, want 50", last.Percentage)
	}
}

func TestTallyTextFirstSeenOrder(t *testing.T) {
	q := model.InteractionQuestion{ID: uuid.New(), Type: model.QuestionTypeText}
	ps := participants("p1", "p2", "p3")

	got := Tally(&q, ps, []model.InteractionResponse{
		respond(q, ps[0], "blue"),
		respond(q, ps[1], "red"),
		respond(q, ps[2], "blue"),
	})
	if len(got.Buckets) != 2 || got.Buckets[0].Answer != "blue" || got.Buckets[0].Count != 2 {
		t.Fatalf("Buckets = %+v", got.Buckets)
	}
}

func TestTallyEmpty(t *testing.T) {
	q := mcQuestion("", "a", "b")
	got := Tally(&q, nil, nil)
	if got.Total != 0 {
		t.Fatalf("Total = %d", got.Total)
	}
	for _, b := range got.Buckets {
		if b.Percentage != 0 {
			t.Errorf("bucket %s percentage = %v, want 0", b.Answer, b.Percentage)
		}
	}
}

func TestTallyIgnoresOtherQuestions(t *testing.T) {
	q1 := mcQuestion("", "a")
	q2 := mcQuestion("", "a")
	ps := participants("p1")

	got := Tally(&q1, ps, []model.InteractionResponse{respond(q2, ps[0], "a")})
	if got.Total != 0 {
		t.Errorf("Total = %d, want 0", got.Total)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		count, total int
		want         float64
	}{
		{0, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{1, 8, 12.5},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := Percentage(tt.count, tt.total); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %v, want %v", tt.count, tt.total, got, tt.want)
		}
	}
}

// Two-question exam where the participant gets the first right and lets the
// second expire.
func TestScoreTimedOutQuestionDoesNotCount(t *testing.T) {
	q1 := mcQuestion("a", "a", "b")
	q2 := mcQuestion("b", "a", "b")
	ps := participants("p1")
	qs := []model.InteractionQuestion{q1, q2}
	rs := []model.InteractionResponse{
		respond(q1, ps[0], "a"),
		respond(q2, ps[0], model.NoAnswer),
	}

	if got := scores(qs, rs)[ps[0].ID]; got != 1 {
		t.Errorf("score = %d, want 1", got)
	}

	standings := Rank(qs, ps, rs)
	if len(standings) != 1 || standings[0].Score != 1 || standings[0].Total != 2 {
		t.Errorf("standings = %+v", standings)
	}
}

func TestRankOrdersByScoreThenJoinOrder(t *testing.T) {
	q1 := mcQuestion("a", "a", "b")
	q2 := mcQuestion("a", "a", "b")
	qs := []model.InteractionQuestion{q1, q2}
	ps := participants("first", "second", "third", "fourth")
	rs := []model.InteractionResponse{
		respond(q1, ps[0], "b"),
		respond(q1, ps[1], "a"),
		respond(q2, ps[1], "a"),
		respond(q1, ps[2], "b"),
		respond(q1, ps[3], "a"),
	}

	got := Rank(qs, ps, rs)
	wantNames := []string{"second", "fourth", "first", "third"}
	wantScores := []int{2, 1, 0, 0}
	for i := range got {
		if got[i].Name != wantNames[i] || got[i].Score != wantScores[i] || got[i].Position != i+1 {
			t.Errorf("standing %d = %+v, want %s score %d position %d",
				i, got[i], wantNames[i], wantScores[i], i+1)
		}
	}
}

func TestRankIgnoresUnscoredQuestions(t *testing.T) {
	poll := mcQuestion("", "a", "b")
	text := model.InteractionQuestion{ID: uuid.New(), Type: model.QuestionTypeText}
	ps := participants("p1")

	got := Rank([]model.InteractionQuestion{poll, text}, ps, []model.InteractionResponse{
		respond(poll, ps[0], "a"),
		respond(text, ps[0], "anything"),
	})
	if got[0].Score != 0 {
		t.Errorf("Score = %d, want 0", got[0].Score)
	}
}
