// Package scoring turns raw responses into per-question tallies and final
// standings. Everything here is pure: callers load the records and pass them in.
package scoring

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-live/internal/model"
)

// NoAnswerLabel labels the bucket of countdown expiries with nothing selected.
const NoAnswerLabel = "No answer"

// Voter is a participant who gave a bucket's answer.
type Voter struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Bucket is one distinct answer and who gave it.
type Bucket struct {
	Answer       string  `json:"answer"`
	Label        string  `json:"label"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
	Correct      bool    `json:"correct,omitempty"`
	Participants []Voter `json:"participants,omitempty"`
}

// QuestionTally aggregates every response to one question.
type QuestionTally struct {
	QuestionID uuid.UUID          `json:"question_id"`
	Type       model.QuestionType `json:"type"`
	Total      int                `json:"total"`
	Buckets    []Bucket           `json:"buckets"`
}

// Standing is one participant's final position.
type Standing struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	Position      int       `json:"position"`
}

// Tally groups the responses to q by answer. Responses to other questions are
// ignored. Multiple-choice tallies list every option in option order, then a
// trailing no-answer bucket if any participant timed out with nothing selected.
// Text tallies bucket by exact string in first-seen order. Voter names come
// from participants; a responder missing from it keeps an empty name.
func Tally(q *model.InteractionQuestion, participants []model.Participant, responses []model.InteractionResponse) QuestionTally {
	t := QuestionTally{QuestionID: q.ID, Type: q.Type, Buckets: []Bucket{}}

	names := make(map[uuid.UUID]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}

	index := make(map[string]int)
	if q.Type == model.QuestionTypeMultipleChoice {
		for _, o := range q.Options {
			index[o.ID] = len(t.Buckets)
			t.Buckets = append(t.Buckets, Bucket{
				Answer:  o.ID,
				Label:   o.Text,
				Correct: q.CorrectOptionID != "" && o.ID == q.CorrectOptionID,
			})
		}
	}

	for _, r := range responses {
		if r.QuestionID != q.ID {
			continue
		}
		t.Total++

		i, ok := index[r.Answer]
		if !ok {
			label := r.Answer
			if r.Answer == model.NoAnswer {
				label = NoAnswerLabel
			}
			i = len(t.Buckets)
			index[r.Answer] = i
			t.Buckets = append(t.Buckets, Bucket{Answer: r.Answer, Label: label})
		}
		t.Buckets[i].Count++
		t.Buckets[i].Participants = append(t.Buckets[i].Participants, Voter{ID: r.ParticipantID, Name: names[r.ParticipantID]})
	}

	if q.Type == model.QuestionTypeMultipleChoice {
		moveNoAnswerLast(t.Buckets)
	}

	for i := range t.Buckets {
		t.Buckets[i].Percentage = Percentage(t.Buckets[i].Count, t.Total)
	}
	return t
}

// moveNoAnswerLast keeps the sentinel bucket behind any stray answers that
// were bucketed after it.
func moveNoAnswerLast(buckets []Bucket) {
	for i, b := range buckets {
		if b.Answer == model.NoAnswer {
			copy(buckets[i:], buckets[i+1:])
			buckets[len(buckets)-1] = b
			return
		}
	}
}

// Percentage returns count/total as a percentage rounded to one decimal,
// or 0 when total is 0.
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}

// scores counts, per participant, the questions answered with the correct
// option. Questions without a correct option never score.
func scores(questions []model.InteractionQuestion, responses []model.InteractionResponse) map[uuid.UUID]int {
	correct := answerKey(questions)

	out := make(map[uuid.UUID]int)
	for _, r := range responses {
		if want, ok := correct[r.QuestionID]; ok && r.Answer == want {
			out[r.ParticipantID]++
		}
	}
	return out
}

// Rank scores every participant and orders them by score, highest first.
// Equal scores keep participant order, and positions run 1..n without sharing.
func Rank(questions []model.InteractionQuestion, participants []model.Participant, responses []model.InteractionResponse) []Standing {
	byID := scores(questions, responses)

	standings := make([]Standing, len(participants))
	for i, p := range participants {
		standings[i] = Standing{
			ParticipantID: p.ID,
			Name:          p.Name,
			Score:         byID[p.ID],
			Total:         len(questions),
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}

// answerKey maps each scorable question to its correct option id.
func answerKey(questions []model.InteractionQuestion) map[uuid.UUID]string {
	key := make(map[uuid.UUID]string, len(questions))
	for _, q := range questions {
		if q.Type == model.QuestionTypeMultipleChoice && q.CorrectOptionID != "" {
			key[q.ID] = q.CorrectOptionID
		}
	}
	return key
}
