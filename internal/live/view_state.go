package live

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

// ViewState is what a participant device shows. Exactly one of Joining,
// Waiting, Questioning or Finished.
type ViewState interface {
	viewState()
	Name() string
}

// Joining: the device has no participant yet.
type Joining struct{}

// Waiting: joined, and the host has not started or is between states.
type Waiting struct {
	Status model.SessionStatus
}

// Questioning: a question is showing. Deadline is zero for untimed questions.
type Questioning struct {
	Index      int
	QuestionID uuid.UUID
	Question   model.QuestionForParticipant
	Deadline   time.Time
	Answered   bool
}

// Finished: the session is over. Score is set for exam sessions.
type Finished struct {
	Status model.SessionStatus
	Score  *int
	Total  int
}

func (Joining) viewState()     {}
func (Waiting) viewState()     {}
func (Questioning) viewState() {}
func (Finished) viewState()    {}

func (Joining) Name() string     { return "joining" }
func (Waiting) Name() string     { return "waiting" }
func (Questioning) Name() string { return "questioning" }
func (Finished) Name() string    { return "finished" }

// Key identifies the showing the state is for.
func (q Questioning) Key() QuestionKey {
	return QuestionKey{QuestionID: q.QuestionID, Index: q.Index}
}

// Timed reports whether the showing has a deadline.
func (q Questioning) Timed() bool {
	return !q.Deadline.IsZero()
}

// Transition derives the next view from a fresh snapshot. A question that is
// still showing keeps its state, so the deadline and the answered flag survive
// polls. A new showing starts unanswered with its deadline counted from now.
func Transition(prev ViewState, snap *model.SessionSnapshot, now time.Time) ViewState {
	if snap == nil {
		return prev
	}

	switch {
	case snap.Closed():
		if f, ok := prev.(Finished); ok {
			return f
		}
		return Finished{Status: snap.Status, Total: snap.QuestionCount}
	case snap.Running() && snap.CurrentQuestion != nil && snap.QuestionIndex != nil:
		key := QuestionKey{QuestionID: snap.CurrentQuestion.ID, Index: *snap.QuestionIndex}
		if q, ok := prev.(Questioning); ok && q.Key() == key {
			return q
		}
		next := Questioning{
			Index:      key.Index,
			QuestionID: key.QuestionID,
			Question:   *snap.CurrentQuestion,
		}
		if d := durationOf(snap.CurrentQuestion); d > 0 {
			next.Deadline = now.Add(d)
		}
		return next
	default:
		return Waiting{Status: snap.Status}
	}
}

func durationOf(q *model.QuestionForParticipant) time.Duration {
	if q.DurationSeconds == nil || *q.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(*q.DurationSeconds) * time.Second
}
